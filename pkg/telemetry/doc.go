// Package telemetry configures OpenTelemetry tracing for the gateway and
// instruments incoming HTTP requests with server spans.
package telemetry
