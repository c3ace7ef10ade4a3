// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/vsphere-rest/pkg/api/response"
	"github.com/stacklok/vsphere-rest/pkg/gateway"
)

// EntityService runs gateway requests. *gateway.Gateway implements it.
type EntityService interface {
	Get(ctx context.Context, req gateway.Request, w response.Responder)
	Delete(ctx context.Context, req gateway.Request, w response.Responder)
}

// EntitiesRoutes defines the routes for vSphere entity access.
type EntitiesRoutes struct {
	service EntityService
	params  gateway.RouteParams
	logger  *slog.Logger
}

// EntitiesRouter creates a router serving
//
//	GET    /{host}/{type}
//	GET    /{host}/{type}/{id}
//	DELETE /{host}/{type}/{id}
//
// with the path parameter names taken from params.
func EntitiesRouter(service EntityService, params gateway.RouteParams, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	routes := EntitiesRoutes{
		service: service,
		params:  params,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Get(params.CollectionPattern(), routes.getEntities)
	r.Get(params.ItemPattern(), routes.getEntities)
	r.Delete(params.ItemPattern(), routes.deleteEntity)
	return r
}

// getEntities returns entities of one type, or a single entity by id.
//
//	@Summary		List or get entities
//	@Tags			entities
//	@Produce		json
//	@Param			host			path		string	true	"vCenter or ESXi host"
//	@Param			type			path		string	true	"Entity type or alias"
//	@Param			fields			query		string	false	"Comma separated properties, or all"
//	@Param			search.field	query		string	false	"Property to match"
//	@Param			search.value	query		string	false	"Regular expression"
//	@Param			limit			query		int		false	"Page size"
//	@Param			offset			query		int		false	"Page offset"
//	@Success		200				{array}		object
//	@Failure		400				{object}	errors.Body
//	@Failure		401				{object}	errors.Body
//	@Failure		404				{object}	errors.Body
//	@Router			/{host}/{type} [get]
func (e *EntitiesRoutes) getEntities(w http.ResponseWriter, r *http.Request) {
	e.service.Get(r.Context(), e.request(r), response.NewHTTPResponder(w, e.logger))
}

// deleteEntity destroys one entity.
//
//	@Summary		Destroy an entity
//	@Tags			entities
//	@Produce		json
//	@Param			host	path		string	true	"vCenter or ESXi host"
//	@Param			type	path		string	true	"Entity type or alias"
//	@Param			id		path		string	true	"Managed object id"
//	@Success		201		{object}	vsphere.DestroyResult
//	@Failure		401		{object}	errors.Body
//	@Failure		404		{object}	errors.Body
//	@Router			/{host}/{type}/{id} [delete]
func (e *EntitiesRoutes) deleteEntity(w http.ResponseWriter, r *http.Request) {
	e.service.Delete(r.Context(), e.request(r), response.NewHTTPResponder(w, e.logger))
}

func (e *EntitiesRoutes) request(r *http.Request) gateway.Request {
	return gateway.Request{
		Host:          chi.URLParam(r, e.params.Host),
		Type:          chi.URLParam(r, e.params.Type),
		ID:            chi.URLParam(r, e.params.ID),
		Authorization: r.Header.Get("Authorization"),
		Query:         r.URL.Query(),
	}
}
