// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway runs the request pipeline shared by every HTTP front-end:
// credential resolution, session lookup, type resolution, query execution
// and response framing.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/stacklok/toolhive-core/httperr"

	apierrors "github.com/stacklok/vsphere-rest/pkg/api/errors"
	"github.com/stacklok/vsphere-rest/pkg/api/response"
	"github.com/stacklok/vsphere-rest/pkg/auth"
	"github.com/stacklok/vsphere-rest/pkg/query"
	"github.com/stacklok/vsphere-rest/pkg/session"
	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// Params names the query parameters the gateway reads.
type Params struct {
	Fields      string
	SearchField string
	SearchValue string
	Limit       string
	Offset      string
	IgnoreSSL   string
}

// DefaultParams returns the standard query parameter names.
func DefaultParams() Params {
	return Params{
		Fields:      "fields",
		SearchField: "search.field",
		SearchValue: "search.value",
		Limit:       "limit",
		Offset:      "offset",
		IgnoreSSL:   "ignoressl",
	}
}

// Config holds the request pipeline settings.
type Config struct {
	Params Params
	// DefaultLimit is the page size for list responses without a limit.
	DefaultLimit int
	// IgnoreSSL is the TLS verification default when the request does not
	// set the ignore parameter.
	IgnoreSSL bool
	// MaxRetries is passed to the connector when opening sessions.
	MaxRetries int
}

// Request is a framework-neutral gateway request.
type Request struct {
	Host          string
	Type          string
	ID            string
	Authorization string
	Query         url.Values
}

// Gateway serves entity reads and deletes.
type Gateway struct {
	cfg      Config
	resolver *auth.Resolver
	sessions *session.Cache
	engine   *query.Engine
	logger   *slog.Logger
}

// New creates a Gateway.
func New(cfg Config, resolver *auth.Resolver, sessions *session.Cache, engine *query.Engine, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = response.DefaultLimit
	}
	return &Gateway{
		cfg:      cfg,
		resolver: resolver,
		sessions: sessions,
		engine:   engine,
		logger:   logger,
	}
}

// Get reads one entity when req.ID is set, otherwise a page of entities.
func (g *Gateway) Get(ctx context.Context, req Request, w response.Responder) {
	logger := g.requestLogger(req)
	defer g.recoverInto(w, logger)

	rec, typ, err := g.prepare(ctx, req)
	if err != nil {
		apierrors.Respond(w, logger, err)
		return
	}

	fields, all := query.ParseFields(req.Query[g.cfg.Params.Fields])
	entities, err := g.engine.Find(ctx, rec.Session(), query.Request{
		Type:        typ,
		ID:          req.ID,
		Fields:      fields,
		AllFields:   all,
		SearchField: req.Query.Get(g.cfg.Params.SearchField),
		SearchValue: req.Query.Get(g.cfg.Params.SearchValue),
	})
	if err != nil {
		g.queryFailed(ctx, rec, w, logger, err)
		return
	}

	if req.ID != "" {
		if len(entities) == 0 {
			apierrors.Respond(w, logger, fmt.Errorf("%w: %s %q", vsphere.ErrNotFound, typ, req.ID))
			return
		}
		w.Respond(http.StatusOK, entities[0])
		return
	}

	page := response.ParsePage(req.Query, g.cfg.Params.Limit, g.cfg.Params.Offset,
		response.Page{Limit: g.cfg.DefaultLimit})
	w.Respond(http.StatusOK, response.Paginate(entities, page))
}

// Delete destroys the entity named by req.
func (g *Gateway) Delete(ctx context.Context, req Request, w response.Responder) {
	logger := g.requestLogger(req)
	defer g.recoverInto(w, logger)

	if req.ID == "" {
		apierrors.Respond(w, logger, fmt.Errorf("%w: no id specified", vsphere.ErrBadRequest))
		return
	}

	rec, typ, err := g.prepare(ctx, req)
	if err != nil {
		apierrors.Respond(w, logger, err)
		return
	}

	result, err := g.engine.Delete(ctx, rec.Session(), typ, req.ID)
	if err != nil {
		g.queryFailed(ctx, rec, w, logger, err)
		return
	}
	logger.Info("entity destroyed", "id", req.ID, "task", result.Task)
	w.Respond(http.StatusCreated, result)
}

// prepare resolves the credential, session and canonical type of req.
func (g *Gateway) prepare(ctx context.Context, req Request) (*session.Record, string, error) {
	cred, err := g.resolver.Resolve(req.Authorization)
	if err != nil {
		return nil, "", err
	}

	rec, err := g.sessions.Get(ctx, req.Host, &cred, g.openOptions(req.Query))
	if err != nil {
		return nil, "", err
	}

	typ, err := rec.Types().Resolve(req.Type)
	if err != nil {
		return nil, "", err
	}
	return rec, typ, nil
}

// queryFailed responds with err. A 401 means the remote side no longer
// accepts the cached session, so it is evicted and the next request logs in
// again.
func (g *Gateway) queryFailed(ctx context.Context, rec *session.Record, w response.Responder, logger *slog.Logger, err error) {
	if httperr.Code(err) == http.StatusUnauthorized && g.sessions.Evict(ctx, rec) {
		logger.Info("session rejected by remote, evicted", "user", rec.Key().Username)
	}
	apierrors.Respond(w, logger, err)
}

func (g *Gateway) openOptions(values url.Values) vsphere.OpenOptions {
	opts := vsphere.OpenOptions{IgnoreSSL: g.cfg.IgnoreSSL, MaxRetries: g.cfg.MaxRetries}
	if raw := values.Get(g.cfg.Params.IgnoreSSL); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			opts.IgnoreSSL = v
		}
	}
	return opts
}

func (g *Gateway) requestLogger(req Request) *slog.Logger {
	attrs := []any{"host", req.Host, "type", req.Type}
	if req.ID != "" {
		attrs = append(attrs, "id", req.ID)
	}
	return g.logger.With(attrs...)
}

func (*Gateway) recoverInto(w response.Responder, logger *slog.Logger) {
	if p := recover(); p != nil {
		apierrors.Respond(w, logger, httperr.WithCode(
			fmt.Errorf("internal error: %v", p), http.StatusInternalServerError))
	}
}
