// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mux mounts the entity routes on a standard library ServeMux.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stacklok/vsphere-rest/pkg/api/response"
	"github.com/stacklok/vsphere-rest/pkg/gateway"
)

// EntityService runs gateway requests. *gateway.Gateway implements it.
type EntityService interface {
	Get(ctx context.Context, req gateway.Request, w response.Responder)
	Delete(ctx context.Context, req gateway.Request, w response.Responder)
}

// Register adds the entity routes to m under prefix.
func Register(m *http.ServeMux, prefix string, service EntityService, params gateway.RouteParams, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSuffix(prefix, "/")

	request := func(r *http.Request) gateway.Request {
		return gateway.Request{
			Host:          r.PathValue(params.Host),
			Type:          r.PathValue(params.Type),
			ID:            r.PathValue(params.ID),
			Authorization: r.Header.Get("Authorization"),
			Query:         r.URL.Query(),
		}
	}
	get := func(w http.ResponseWriter, r *http.Request) {
		service.Get(r.Context(), request(r), response.NewHTTPResponder(w, logger))
	}

	m.HandleFunc("GET "+prefix+params.CollectionPattern(), get)
	m.HandleFunc("GET "+prefix+params.ItemPattern(), get)
	m.HandleFunc("DELETE "+prefix+params.ItemPattern(), func(w http.ResponseWriter, r *http.Request) {
		service.Delete(r.Context(), request(r), response.NewHTTPResponder(w, logger))
	})
}
