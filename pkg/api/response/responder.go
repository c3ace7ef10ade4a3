// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package response frames gateway results for HTTP clients.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Responder emits the single response of a request.
type Responder interface {
	Respond(status int, body any)
}

// HTTPResponder writes JSON bodies to an http.ResponseWriter. Only the first
// call to Respond has an effect.
type HTTPResponder struct {
	w      http.ResponseWriter
	logger *slog.Logger
	sent   atomic.Bool
}

// NewHTTPResponder wraps w.
func NewHTTPResponder(w http.ResponseWriter, logger *slog.Logger) *HTTPResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPResponder{w: w, logger: logger}
}

// Respond encodes body as JSON with the given status.
func (r *HTTPResponder) Respond(status int, body any) {
	if !r.sent.CompareAndSwap(false, true) {
		r.logger.Warn("response already sent, dropping", "status", status)
		return
	}
	r.w.Header().Set("Content-Type", "application/json")
	r.w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(r.w).Encode(body); err != nil {
		r.logger.Error("failed to encode response", "status", status, "error", err)
	}
}
