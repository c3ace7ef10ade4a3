// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the vsphere-rest command-line application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-core/logging"

	"github.com/stacklok/vsphere-rest/pkg/api"
	"github.com/stacklok/vsphere-rest/pkg/auth"
	"github.com/stacklok/vsphere-rest/pkg/config"
	"github.com/stacklok/vsphere-rest/pkg/gateway"
	"github.com/stacklok/vsphere-rest/pkg/query"
	"github.com/stacklok/vsphere-rest/pkg/session"
	"github.com/stacklok/vsphere-rest/pkg/telemetry"
	"github.com/stacklok/vsphere-rest/pkg/versions"
	"github.com/stacklok/vsphere-rest/pkg/vsphere/govmomi"
)

const (
	envPrefix                = "VSPHERE_REST"
	telemetryShutdownTimeout = 5 * time.Second
)

// NewRootCmd creates a new root command for the vsphere-rest CLI.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "vsphere-rest",
		DisableAutoGenTag: true,
		Short:             "REST gateway for the vSphere inventory",
		Long: `vsphere-rest exposes vCenter and ESXi inventory over a small REST surface.

Requests name the target host and entity type in the path, authenticate with
HTTP Basic credentials that are forwarded to vSphere, and may select
properties, filter by a regular expression and paginate the result.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error(fmt.Sprintf("Error displaying help: %v", err))
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(v))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the gateway configuration file")
	for _, name := range []string{"debug", "config"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error(fmt.Sprintf("Error binding %s flag: %v", name, err))
		}
	}

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newLogger(v *viper.Viper) *slog.Logger {
	var opts []logging.Option
	if v.GetBool("debug") {
		opts = append(opts, logging.WithLevel(slog.LevelDebug))
	}
	return logging.New(opts...)
}

// newServeCmd creates the serve command for starting the gateway
func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway using the configuration file given by --config, or the
built-in defaults when none is given. --address and VSPHERE_REST_ADDRESS
override the configured listen address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
	cmd.Flags().String("address", "", "Listen address (host:port or unix:/path)")
	cmd.Flags().Bool("ignore-ssl", false, "Skip TLS verification of vSphere endpoints by default")
	for _, name := range []string{"address", "ignore-ssl"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			slog.Error(fmt.Sprintf("Error binding %s flag: %v", name, err))
		}
	}
	return cmd
}

// newValidateCmd creates the validate command for checking configuration
func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the gateway configuration file.

This command checks:
- YAML syntax and unknown keys
- Route and query parameter names
- Session and credential settings`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v.GetString("config") == "" {
				return fmt.Errorf("no configuration file specified, use --config flag")
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			cmd.Printf("Configuration is valid\n")
			cmd.Printf("  Address: %s\n", cfg.Address)
			cmd.Printf("  Routes: %s%s\n", strings.TrimSuffix(cfg.Routes.Prefix, "/"), cfg.RouteParams().ItemPattern())
			cmd.Printf("  Override credential: %t\n", cfg.OverrideCredential() != nil)
			cmd.Printf("  Type aliases: %d\n", len(cfg.TypeAliases))
			return nil
		},
	}
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()
			cmd.Printf("vsphere-rest %s (commit %s, built %s, %s %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}

// loadConfig loads the file named by --config, applies flag and environment
// overrides and validates the result.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	cfg, err := config.NewYAMLLoader(path, nil).Load()
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	if address := v.GetString("address"); address != "" {
		cfg.Address = address
	}
	if v.GetBool("ignore-ssl") {
		cfg.Session.IgnoreSSL = true
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	logger := slog.Default()

	provider, err := telemetry.NewProvider(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry setup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), telemetryShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	cacheOpts := []session.Option{
		session.WithLogger(logger),
		session.WithTypeAliases(cfg.TypeAliases),
	}
	if cfg.Session.OpenLimited() {
		cacheOpts = append(cacheOpts, session.WithOpenLimiter(rate.NewLimiter(rate.Limit(cfg.Session.OpenRate), cfg.Session.OpenBurst)))
	}
	sessions := session.NewCache(govmomi.NewConnector(govmomi.WithLogger(logger)), govmomi.NewRegistry(), cacheOpts...)

	engine := query.NewEngine(query.WithLogger(logger), query.WithMaxPatternLength(cfg.PatternLimit()))
	resolver := auth.NewResolver(cfg.OverrideCredential())
	gw := gateway.New(cfg.Gateway(), resolver, sessions, engine, logger)

	logger.Info("configuration loaded",
		"routes_prefix", cfg.Routes.Prefix,
		"override_credential", resolver.HasOverride(),
		"ignore_ssl", cfg.Session.IgnoreSSL,
		"tracing", cfg.Telemetry.Endpoint != "")

	return api.Serve(cmd.Context(), cfg, gw, sessions)
}
