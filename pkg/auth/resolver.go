// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves the vSphere credential used for a gateway request.
package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

const basicScheme = "basic"

// Resolver produces the credential for a request. A process-wide override,
// when configured, always wins over whatever the request carries.
type Resolver struct {
	override *vsphere.Credential
}

// NewResolver creates a Resolver. override may be nil, in which case every
// request must carry an HTTP Basic Authorization header.
func NewResolver(override *vsphere.Credential) *Resolver {
	if override != nil {
		c := *override
		override = &c
	}
	return &Resolver{override: override}
}

// HasOverride reports whether a process-wide credential is configured.
func (r *Resolver) HasOverride() bool {
	return r.override != nil
}

// Resolve returns the credential for a request whose Authorization header
// value is header (empty when absent).
func (r *Resolver) Resolve(header string) (vsphere.Credential, error) {
	if r.override != nil {
		return *r.override, nil
	}
	return ParseBasic(header)
}

// ParseBasic decodes an HTTP Basic Authorization header value. The decoded
// payload must contain exactly one colon; either side may be empty.
func ParseBasic(header string) (vsphere.Credential, error) {
	if header == "" {
		return vsphere.Credential{}, fmt.Errorf("%w: missing authorization header", vsphere.ErrUnauthenticated)
	}

	scheme, payload, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, basicScheme) {
		return vsphere.Credential{}, fmt.Errorf("%w: authorization scheme must be basic", vsphere.ErrUnauthenticated)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return vsphere.Credential{}, fmt.Errorf("%w: malformed basic credential", vsphere.ErrUnauthenticated)
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 2 {
		return vsphere.Credential{}, fmt.Errorf("%w: malformed basic credential", vsphere.ErrUnauthenticated)
	}

	return vsphere.Credential{Username: parts[0], Password: parts[1]}, nil
}
