// Package api serves the vSphere REST gateway over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/stacklok/vsphere-rest/pkg/api/v1"
	"github.com/stacklok/vsphere-rest/pkg/config"
	"github.com/stacklok/vsphere-rest/pkg/session"
	"github.com/stacklok/vsphere-rest/pkg/telemetry"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	maxRequestBody    = 1 << 20
	socketPermissions = 0660 // Socket file permissions (owner/group read-write)
	unixAddressPrefix = "unix:"
)

func setupListener(address string) (net.Listener, string, error) {
	path, ok := strings.CutPrefix(address, unixAddressPrefix)
	if !ok {
		l, err := net.Listen("tcp", address)
		return l, "HTTP", err
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, "", fmt.Errorf("failed to remove existing socket: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, "", fmt.Errorf("failed to create socket directory: %w", err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create UNIX socket listener: %w", err)
	}
	if err := os.Chmod(path, socketPermissions); err != nil {
		_ = l.Close()
		return nil, "", fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return l, "UNIX socket", nil
}

func cleanupUnixSocket(address string) {
	path, ok := strings.CutPrefix(address, unixAddressPrefix)
	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove socket file", "path", path, "error", err)
	}
}

func requestBodySizeLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request served",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

// NewRouter builds the HTTP handler: health, version and metrics endpoints
// plus the entity routes mounted under the configured prefix.
func NewRouter(cfg *config.Config, service v1.EntityService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		telemetry.Middleware,
		requestLogMiddleware(logger),
		middleware.Recoverer,
		middleware.Timeout(middlewareTimeout),
		requestBodySizeLimitMiddleware(maxRequestBody),
	)

	r.Mount("/health", v1.HealthcheckRouter())
	r.Mount("/version", v1.VersionRouter())
	r.Handle("/metrics", promhttp.Handler())
	r.Mount(cfg.Routes.Prefix, v1.EntitiesRouter(service, cfg.RouteParams(), logger))
	return r
}

// Serve listens on cfg.Address until ctx is cancelled, then shuts the server
// down and logs out every cached session. An address of the form
// unix:/path serves on a UNIX socket.
func Serve(ctx context.Context, cfg *config.Config, service v1.EntityService, sessions *session.Cache) error {
	logger := slog.Default().With("address", cfg.Address)

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           NewRouter(cfg, service, slog.Default()),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, addrType, err := setupListener(cfg.Address)
	if err != nil {
		return err
	}
	defer cleanupUnixSocket(cfg.Address)

	logger.Info(fmt.Sprintf("starting %s server", addrType))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("closing sessions: %w", err))
	}
	if err := <-serveErr; err != nil {
		errs = append(errs, err)
	}

	logger.Info(fmt.Sprintf("%s server stopped", addrType))
	return errors.Join(errs...)
}
