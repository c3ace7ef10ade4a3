// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package vsphere

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Credential is a username/password pair used to open a remote session.
type Credential struct {
	Username string
	Password string
}

// String redacts the password so credentials can be logged safely.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{Username:%q}", c.Username)
}

// Status is the connection state reported by a Session.
type Status int

const (
	// StatusDisconnected means the remote side no longer accepts the session.
	StatusDisconnected Status = iota
	// StatusConnected means the session is authenticated and usable.
	StatusConnected
	// StatusLoggedOut means the session was closed by the gateway.
	StatusLoggedOut
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusLoggedOut:
		return "logged_out"
	default:
		return "disconnected"
	}
}

// OpenOptions are passed through to Connector.Open.
type OpenOptions struct {
	// IgnoreSSL disables TLS certificate verification for the remote endpoint.
	IgnoreSSL bool
	// MaxRetries is the number of additional open attempts made on transient
	// failures. Zero means a single attempt.
	MaxRetries int
}

// TypeDefinition describes one managed-entity type known to the remote schema.
type TypeDefinition struct {
	Name       string   `json:"name"`
	Base       string   `json:"base,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// EntityQuery selects entities of one type.
//
// An empty Properties slice requests every property of the type. Callers
// that want a narrow fetch must list the properties explicitly.
type EntityQuery struct {
	Type       string
	IDs        []string
	Properties []string
}

// AllProperties reports whether the query asks for every property.
func (q EntityQuery) AllProperties() bool {
	return len(q.Properties) == 0
}

// Entity is a managed object returned by a search.
type Entity struct {
	ID         string
	Type       string
	Properties map[string]any
}

// MarshalJSON renders the entity as a flat object with its id alongside the
// requested properties.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		out[k] = v
	}
	out["id"] = e.ID
	return json.Marshal(out)
}

// Lookup returns the value at path. An exact property key wins, so flat
// vSphere paths such as "summary.config.name" resolve when requested as-is;
// otherwise path is evaluated as a gjson dotted path over the properties.
func (e Entity) Lookup(path string) gjson.Result {
	if path == "" {
		return gjson.Result{}
	}
	if v, ok := e.Properties[path]; ok {
		return toResult(v)
	}
	if path == "id" {
		return toResult(e.ID)
	}
	if !strings.Contains(path, ".") {
		return gjson.Result{}
	}
	raw, err := json.Marshal(e.Properties)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}

func toResult(v any) gjson.Result {
	raw, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

// DestroyResult is returned by Session.Destroy.
type DestroyResult struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Task  string `json:"task,omitempty"`
	State string `json:"state,omitempty"`
}
