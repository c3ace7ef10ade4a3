// Package vsphere holds the domain model shared by the vsphere-rest gateway.
//
// The gateway never speaks the vSphere wire protocol itself. Everything it
// needs from the remote side is expressed through three small interfaces
// defined here:
//
//   - Connector opens an authenticated Session for a (host, username) pair.
//   - Session searches and destroys managed entities and reports its status.
//   - SchemaRegistry returns the managed-entity type catalog for an API version.
//
// A govmomi-backed implementation lives in the govmomi subpackage; tests use
// the gomock doubles in the mocks subpackage.
//
// # Errors
//
// The error taxonomy (ErrBadRequest, ErrUnauthenticated, ErrNotFound,
// ErrUpstream) carries HTTP status codes through httperr so that any layer can
// wrap them with %w without losing the status. Upstream faults that know their
// own status are reported as *Fault.
package vsphere
