// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package vsphere

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

// Domain errors. Check them with errors.Is; the HTTP status is recovered
// with httperr.Code even after wrapping.
var (
	// ErrBadRequest indicates the request is missing something the gateway needs,
	// such as the target host.
	ErrBadRequest = httperr.WithCode(errors.New("bad request"), http.StatusBadRequest)

	// ErrUnauthenticated indicates a missing or malformed credential, or a
	// session open rejected by the remote side.
	ErrUnauthenticated = httperr.WithCode(errors.New("unauthenticated"), http.StatusUnauthorized)

	// ErrNotFound indicates an unresolvable entity type or a missing entity.
	ErrNotFound = httperr.WithCode(errors.New("not found"), http.StatusNotFound)

	// ErrUpstream indicates a remote failure that carries no status of its own.
	ErrUpstream = httperr.WithCode(errors.New("upstream failure"), http.StatusInternalServerError)
)

// Fault is an upstream error that knows its own status code and message.
// Adapters return it when the remote side reports a classified failure.
type Fault struct {
	Code    int
	Message string
	Err     error
}

// Error returns the fault message.
func (f *Fault) Error() string {
	if f.Err != nil && f.Message == "" {
		return f.Err.Error()
	}
	return f.Message
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault creates a Fault with the given status code.
func NewFault(code int, message string, err error) *Fault {
	return &Fault{Code: code, Message: message, Err: err}
}

// AsUpstream converts a remote error into one that carries an HTTP status.
// A *Fault anywhere in the chain keeps its code and message; anything else
// becomes fallback, which must itself carry a code.
func AsUpstream(err error, fallback error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) && f.Code != 0 {
		return httperr.WithCode(fmt.Errorf("%s", f.Error()), f.Code)
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
