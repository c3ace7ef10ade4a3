// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package govmomi implements the vsphere collaborator interfaces on top of
// github.com/vmware/govmomi.
package govmomi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

const defaultInitialInterval = 500 * time.Millisecond

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used by the connector and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInitialInterval sets the first retry delay of a failed login.
func WithInitialInterval(d time.Duration) Option {
	return func(c *Connector) {
		c.initialInterval = d
	}
}

// Connector opens SOAP sessions against vCenter or ESXi endpoints.
type Connector struct {
	logger          *slog.Logger
	initialInterval time.Duration
}

var _ vsphere.Connector = (*Connector)(nil)

// NewConnector creates a Connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		logger:          slog.Default(),
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open logs in to host. host may be a bare name, host:port, or a full URL;
// the SDK path is added when missing. Transient failures are retried up to
// opts.MaxRetries times; rejected credentials are not.
func (c *Connector) Open(ctx context.Context, host, username, password string, opts vsphere.OpenOptions) (vsphere.Session, error) {
	u, err := soap.ParseURL(host)
	if err != nil {
		return nil, vsphere.NewFault(http.StatusBadRequest, fmt.Sprintf("invalid host %q", host), err)
	}
	if u == nil {
		return nil, vsphere.NewFault(http.StatusBadRequest, "no host specified", nil)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialInterval
	expBackoff.Reset()

	attempt := 0
	operation := func() (*Session, error) {
		attempt++
		sess, err := c.login(ctx, u, username, password, opts.IgnoreSSL)
		if err == nil {
			return sess, nil
		}
		c.logger.Debug("login attempt failed", "host", u.Host, "user", username,
			"attempt", attempt, "error", err)
		if f := classify(err); f != nil && f.Code < http.StatusInternalServerError {
			return nil, backoff.Permanent(f)
		}
		return nil, err
	}

	sess, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(max(opts.MaxRetries, 0)+1)), // #nosec G115 -- +1 because it includes the initial attempt
	)
	if err != nil {
		return nil, fmt.Errorf("login to %s failed: %w", u.Host, err)
	}
	return sess, nil
}

func (c *Connector) login(ctx context.Context, u *url.URL, username, password string, insecure bool) (*Session, error) {
	vc, err := vim25.NewClient(ctx, soap.NewClient(u, insecure))
	if err != nil {
		return nil, err
	}
	manager := session.NewManager(vc)
	if err := manager.Login(ctx, url.UserPassword(username, password)); err != nil {
		return nil, err
	}
	return newSession(vc, manager, c.logger.With("host", u.Host, "user", username)), nil
}
