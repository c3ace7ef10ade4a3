// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Path wildcards must be Go identifiers to be accepted by http.ServeMux.
var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultValidator checks a Config before the server starts.
type DefaultValidator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *DefaultValidator {
	return &DefaultValidator{}
}

// Validate reports every problem found in cfg as one error wrapping
// ErrInvalidConfig.
func (v *DefaultValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalidConfig)
	}

	var errors []string
	errors = append(errors, v.validateBasicFields(cfg)...)
	errors = append(errors, v.validateCredential(cfg.Credential)...)
	errors = append(errors, v.validateSession(cfg.Session)...)
	errors = append(errors, v.validateRoutes(cfg.Routes)...)
	errors = append(errors, v.validateQuery(cfg.Query)...)
	errors = append(errors, v.validateTypeAliases(cfg.TypeAliases)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errors = append(errors, "telemetry: "+err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errors, "\n  - "))
	}
	return nil
}

func (*DefaultValidator) validateBasicFields(cfg *Config) []string {
	if strings.TrimSpace(cfg.Address) == "" {
		return []string{"address is required"}
	}
	return nil
}

func (*DefaultValidator) validateCredential(cred *CredentialConfig) []string {
	if cred == nil {
		return nil
	}
	var errs []string
	if cred.Username == "" {
		errs = append(errs, "credential.username is required when a credential is configured")
	}
	if cred.Password == "" {
		errs = append(errs, "credential.password or credential.passwordEnv is required")
	}
	return errs
}

func (*DefaultValidator) validateSession(s SessionConfig) []string {
	var errs []string
	if s.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("session.maxRetries must be non-negative, got %d", s.MaxRetries))
	}
	if s.OpenLimited() && s.OpenBurst < 1 {
		errs = append(errs, fmt.Sprintf("session.openBurst must be at least 1 when openRate is set, got %d", s.OpenBurst))
	}
	return errs
}

func (*DefaultValidator) validateRoutes(r RoutesConfig) []string {
	var errs []string
	if !strings.HasPrefix(r.Prefix, "/") {
		errs = append(errs, fmt.Sprintf("routes.prefix must start with '/', got %q", r.Prefix))
	}
	errs = append(errs, validateNames("routes", map[string]string{
		"hostParam": r.HostParam,
		"typeParam": r.TypeParam,
		"idParam":   r.IDParam,
	}, paramNamePattern)...)
	return errs
}

func (*DefaultValidator) validateQuery(q QueryConfig) []string {
	errs := validateNames("query", map[string]string{
		"fields":      q.Fields,
		"searchField": q.SearchField,
		"searchValue": q.SearchValue,
		"limit":       q.Limit,
		"offset":      q.Offset,
		"ignoreSSL":   q.IgnoreSSL,
	}, nil)
	if q.DefaultLimit <= 0 {
		errs = append(errs, fmt.Sprintf("query.defaultLimit must be positive, got %d", q.DefaultLimit))
	}
	return errs
}

func (*DefaultValidator) validateTypeAliases(aliases map[string]string) []string {
	var errs []string
	for alias, target := range aliases {
		if strings.TrimSpace(alias) == "" {
			errs = append(errs, "typeAliases contains an empty alias")
		}
		if strings.TrimSpace(target) == "" {
			errs = append(errs, fmt.Sprintf("typeAliases.%s has no target type", alias))
		}
	}
	sort.Strings(errs)
	return errs
}

// validateNames rejects empty and duplicate parameter names and, when
// pattern is set, names that do not match it.
func validateNames(section string, names map[string]string, pattern *regexp.Regexp) []string {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []string
	owners := make(map[string]string, len(names))
	for _, key := range keys {
		name := names[key]
		switch {
		case name == "":
			errs = append(errs, fmt.Sprintf("%s.%s must not be empty", section, key))
			continue
		case pattern != nil && !pattern.MatchString(name):
			errs = append(errs, fmt.Sprintf("%s.%s %q is not a valid parameter name", section, key, name))
		}
		if prev, dup := owners[name]; dup {
			errs = append(errs, fmt.Sprintf("%s.%s duplicates %s.%s (%q)", section, key, section, prev, name))
			continue
		}
		owners[name] = key
	}
	return errs
}
