// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package query runs entity reads and deletes against a vSphere session.
//
// Filtered reads run in two phases. The first fetches only the searched
// property of every entity of the type and matches it client-side; the
// second fetches the requested properties for the matching ids alone.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

var tracer = otel.Tracer("github.com/stacklok/vsphere-rest/pkg/query")

// DefaultMaxPatternLength bounds the length of search expressions.
const DefaultMaxPatternLength = 1024

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxPatternLength bounds search expressions. Zero disables the limit.
func WithMaxPatternLength(n int) Option {
	return func(e *Engine) {
		e.maxPatternLength = n
	}
}

// Engine executes entity queries against sessions. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	logger           *slog.Logger
	maxPatternLength int
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:           slog.Default(),
		maxPatternLength: DefaultMaxPatternLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search passes q straight to the session.
func (e *Engine) Search(ctx context.Context, sess vsphere.Session, q vsphere.EntityQuery) ([]vsphere.Entity, error) {
	ctx, span := tracer.Start(ctx, "query.Search", trace.WithAttributes(
		attribute.String("type", q.Type),
		attribute.Int("ids", len(q.IDs)),
		attribute.Bool("all_properties", q.AllProperties()),
	))
	defer span.End()

	entities, err := sess.Search(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, vsphere.AsUpstream(fmt.Errorf("searching %s: %w", q.Type, err), vsphere.ErrUpstream)
	}
	span.SetAttributes(attribute.Int("results", len(entities)))
	return entities, nil
}

// Delete destroys one entity.
func (*Engine) Delete(ctx context.Context, sess vsphere.Session, typ, id string) (*vsphere.DestroyResult, error) {
	ctx, span := tracer.Start(ctx, "query.Delete", trace.WithAttributes(
		attribute.String("type", typ),
		attribute.String("id", id),
	))
	defer span.End()

	result, err := sess.Destroy(ctx, typ, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, vsphere.AsUpstream(fmt.Errorf("destroying %s %s: %w", typ, id, err), vsphere.ErrUpstream)
	}
	deletes.Inc()
	return result, nil
}

// Find executes req. Requests with a search field and value but no id run
// the two-phase search; everything else is a single fetch.
func (e *Engine) Find(ctx context.Context, sess vsphere.Session, req Request) ([]vsphere.Entity, error) {
	ctx, span := tracer.Start(ctx, "query.Find", trace.WithAttributes(
		attribute.String("type", req.Type),
		attribute.Bool("search", req.Searching()),
	))
	defer span.End()

	q := vsphere.EntityQuery{Type: req.Type, Properties: req.Properties()}
	if req.ID != "" {
		q.IDs = []string{req.ID}
	}

	if !req.Searching() {
		return e.Search(ctx, sess, q)
	}

	rx, err := e.compile(req.SearchValue)
	if err != nil {
		return nil, err
	}

	matches, err := e.matchIDs(ctx, sess, req.Type, req.SearchField, rx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	if len(matches) == 0 {
		searchShortCircuits.Inc()
		return []vsphere.Entity{}, nil
	}

	searchRefetches.Inc()
	q.IDs = matches
	return e.Search(ctx, sess, q)
}

// matchIDs is the first search phase. It returns ids of entities whose field
// value is present, non-empty and matches rx, in the order the session
// returned them.
func (e *Engine) matchIDs(ctx context.Context, sess vsphere.Session, typ, field string, rx *regexp.Regexp) ([]string, error) {
	searchScans.Inc()
	candidates, err := e.Search(ctx, sess, vsphere.EntityQuery{Type: typ, Properties: []string{field}})
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0)
	for _, entity := range candidates {
		if Matches(entity, field, rx) {
			matches = append(matches, entity.ID)
		}
	}
	e.logger.Debug("search phase one complete", "type", typ, "field", field,
		"candidates", len(candidates), "matches", len(matches))
	return matches, nil
}

func (e *Engine) compile(pattern string) (*regexp.Regexp, error) {
	if e.maxPatternLength > 0 && len(pattern) > e.maxPatternLength {
		return nil, fmt.Errorf("%w: search value longer than %d characters", vsphere.ErrBadRequest, e.maxPatternLength)
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid search value: %w", vsphere.ErrBadRequest, err)
	}
	return rx, nil
}

// Matches reports whether entity has a present, non-empty value at field
// that rx matches.
func Matches(entity vsphere.Entity, field string, rx *regexp.Regexp) bool {
	v := entity.Lookup(field)
	if !v.Exists() || v.Type == gjson.Null {
		return false
	}
	s := v.String()
	if s == "" {
		return false
	}
	return rx.MatchString(s)
}
