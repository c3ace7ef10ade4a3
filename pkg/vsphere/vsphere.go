// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package vsphere

import "context"

//go:generate mockgen -destination=mocks/mock_vsphere.go -package=mocks -source=vsphere.go Connector,Session,SchemaRegistry

// Connector opens authenticated sessions against a remote vSphere endpoint.
type Connector interface {
	// Open logs in to host and returns a connected session.
	Open(ctx context.Context, host, username, password string, opts OpenOptions) (Session, error)
}

// Session is an authenticated handle for one (host, username) pair.
type Session interface {
	// Status reports the last known connection state. It must not perform
	// network I/O.
	Status() Status
	// APIVersion returns the API version negotiated at login.
	APIVersion() string
	// Search returns entities matching q. An empty q.Properties means all
	// properties; an empty q.IDs means every entity of q.Type.
	Search(ctx context.Context, q EntityQuery) ([]Entity, error)
	// Destroy removes the entity identified by typ and id.
	Destroy(ctx context.Context, typ, id string) (*DestroyResult, error)
	// Logout closes the remote session.
	Logout(ctx context.Context) error
}

// SchemaRegistry returns the managed-entity type catalog for an API version.
type SchemaRegistry interface {
	Schema(ctx context.Context, apiVersion string) (map[string]TypeDefinition, error)
}
