// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session caches authenticated vSphere sessions per (host, username).
//
// A cached session is reused for as long as it reports itself connected.
// Anything else forces a fresh login that replaces the entry. Concurrent
// requests that miss on the same key share one login through singleflight
// instead of racing to open duplicate sessions.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/stacklok/vsphere-rest/pkg/schema"
	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

var tracer = otel.Tracer("github.com/stacklok/vsphere-rest/pkg/session")

// Key identifies a cached session. Both fields are lower-cased.
type Key struct {
	Host     string
	Username string
}

// NewKey builds a normalised Key.
func NewKey(host, username string) Key {
	return Key{Host: strings.ToLower(host), Username: strings.ToLower(username)}
}

// String renders the key as host/username.
func (k Key) String() string {
	return k.Host + "/" + k.Username
}

// Record is a cached session together with the type index built for it.
type Record struct {
	key     Key
	session vsphere.Session
	types   *schema.Index
	digest  string
}

// Key returns the cache key of the record.
func (r *Record) Key() Key {
	return r.key
}

// Session returns the remote session handle.
func (r *Record) Session() vsphere.Session {
	return r.session
}

// Types returns the type index snapshotted when the session was opened.
func (r *Record) Types() *schema.Index {
	return r.types
}

func (r *Record) usable(digest string) bool {
	return r.session.Status() == vsphere.StatusConnected && r.digest == digest
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used by the cache.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOpenLimiter throttles remote logins. A nil limiter disables throttling.
func WithOpenLimiter(l *rate.Limiter) Option {
	return func(c *Cache) {
		c.limiter = l
	}
}

// WithTypeAliases adds extra path aliases (for example "vm") to every type
// index the cache builds.
func WithTypeAliases(aliases map[string]string) Option {
	return func(c *Cache) {
		c.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			c.aliases[k] = v
		}
	}
}

// Cache maps (host, username) to a live session.
type Cache struct {
	connector vsphere.Connector
	registry  vsphere.SchemaRegistry
	logger    *slog.Logger
	limiter   *rate.Limiter
	aliases   map[string]string

	mu      sync.RWMutex
	records map[Key]*Record

	// flights coalesces concurrent logins for the same key and password.
	flights singleflight.Group
}

// NewCache creates an empty cache that opens sessions with connector and
// snapshots type catalogs from registry.
func NewCache(connector vsphere.Connector, registry vsphere.SchemaRegistry, opts ...Option) *Cache {
	c := &Cache{
		connector: connector,
		registry:  registry,
		logger:    slog.Default(),
		records:   make(map[Key]*Record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a connected session for host and cred, logging in when the
// cache holds nothing usable for the key.
func (c *Cache) Get(ctx context.Context, host string, cred *vsphere.Credential, opts vsphere.OpenOptions) (*Record, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: no host specified", vsphere.ErrBadRequest)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential", vsphere.ErrUnauthenticated)
	}

	key := NewKey(host, cred.Username)
	digest := passwordDigest(cred.Password)

	if rec := c.lookup(key, digest); rec != nil {
		cacheHits.Inc()
		return rec, nil
	}
	cacheMisses.Inc()

	flightKey := key.Host + "\x00" + key.Username + "\x00" + digest
	result, err, shared := c.flights.Do(flightKey, func() (any, error) {
		// Another flight may have stored a record while this one was queued.
		if rec := c.lookup(key, digest); rec != nil {
			return rec, nil
		}
		return c.open(ctx, key, digest, cred, opts)
	})
	if shared {
		sharedOpens.Inc()
	}
	if err != nil {
		return nil, err
	}
	return result.(*Record), nil
}

func (c *Cache) lookup(key Key, digest string) *Record {
	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()
	if !ok || !rec.usable(digest) {
		return nil
	}
	return rec
}

func (c *Cache) open(ctx context.Context, key Key, digest string, cred *vsphere.Credential, opts vsphere.OpenOptions) (*Record, error) {
	ctx, span := tracer.Start(ctx, "session.open", trace.WithAttributes(
		attribute.String("host", key.Host),
		attribute.Bool("ignore_ssl", opts.IgnoreSSL),
	))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to open session: %w", err)
		}
	}

	c.logger.Debug("opening session", "host", key.Host, "user", key.Username)
	opens.Inc()

	sess, err := c.connector.Open(ctx, key.Host, cred.Username, cred.Password, opts)
	if err != nil {
		openFailures.Inc()
		span.RecordError(err)
		c.logger.Debug("session open failed", "host", key.Host, "user", key.Username, "error", err)
		return nil, vsphere.AsUpstream(err, vsphere.ErrUnauthenticated)
	}

	types, err := c.registry.Schema(ctx, sess.APIVersion())
	if err != nil {
		span.RecordError(err)
		if logoutErr := sess.Logout(ctx); logoutErr != nil {
			c.logger.Debug("logout after schema failure", "host", key.Host, "error", logoutErr)
		}
		return nil, vsphere.AsUpstream(fmt.Errorf("loading schema: %w", err), vsphere.ErrUpstream)
	}

	rec := &Record{
		key:     key,
		session: sess,
		types:   schema.NewIndex(types, c.aliases),
		digest:  digest,
	}

	c.mu.Lock()
	stale := c.records[key]
	c.records[key] = rec
	size := len(c.records)
	c.mu.Unlock()
	cachedSessions.Set(float64(size))

	if stale != nil {
		c.logger.Debug("replaced stale session", "host", key.Host, "user", key.Username,
			"status", stale.session.Status().String())
		c.logoutQuietly(ctx, stale)
	}

	c.logger.Info("session opened", "host", key.Host, "user", key.Username,
		"api_version", sess.APIVersion(), "types", rec.types.Len())
	return rec, nil
}

// Evict drops rec and logs it out, provided rec is still the session cached
// for its key. A record that has already been replaced is left alone. It
// reports whether an entry was removed.
func (c *Cache) Evict(ctx context.Context, rec *Record) bool {
	if rec == nil {
		return false
	}

	c.mu.Lock()
	current, ok := c.records[rec.key]
	ok = ok && current == rec
	if ok {
		delete(c.records, rec.key)
	}
	size := len(c.records)
	c.mu.Unlock()

	if !ok {
		return false
	}
	cachedSessions.Set(float64(size))
	c.logger.Debug("evicted session", "host", rec.key.Host, "user", rec.key.Username)
	c.logoutQuietly(ctx, rec)
	return true
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Close logs out every cached session and empties the cache.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	records := c.records
	c.records = make(map[Key]*Record)
	c.mu.Unlock()
	cachedSessions.Set(0)

	var errs []error
	for key, rec := range records {
		if rec.session.Status() != vsphere.StatusConnected {
			continue
		}
		if err := rec.session.Logout(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logout %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) logoutQuietly(ctx context.Context, rec *Record) {
	if err := rec.session.Logout(ctx); err != nil {
		c.logger.Debug("logout failed", "host", rec.key.Host, "user", rec.key.Username, "error", err)
	}
}

func passwordDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
