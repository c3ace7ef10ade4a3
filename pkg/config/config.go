// Package config provides the configuration model for the vSphere REST
// gateway.
package config

import (
	"github.com/stacklok/vsphere-rest/pkg/gateway"
	"github.com/stacklok/vsphere-rest/pkg/telemetry"
	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// Config is the gateway configuration.
type Config struct {
	// Address is the listen address, host:port or unix:/path/to/socket.
	Address string `yaml:"address"`

	// Credential, when set, is used for every request regardless of the
	// Authorization header.
	Credential *CredentialConfig `yaml:"credential,omitempty"`

	Session SessionConfig `yaml:"session"`
	Routes  RoutesConfig  `yaml:"routes"`
	Query   QueryConfig   `yaml:"query"`

	Telemetry telemetry.Config `yaml:"telemetry"`

	// TypeAliases maps extra lower-case type tokens to canonical type names.
	TypeAliases map[string]string `yaml:"typeAliases,omitempty"`
}

// CredentialConfig is the process-wide override credential.
type CredentialConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	// PasswordEnv names an environment variable holding the password. It is
	// read at load time when Password is empty.
	PasswordEnv string `yaml:"passwordEnv,omitempty"`
}

// SessionConfig controls how remote sessions are opened.
type SessionConfig struct {
	// MaxRetries is the number of additional login attempts on transient failures.
	MaxRetries int `yaml:"maxRetries"`
	// IgnoreSSL is the default for requests that do not set the ignore parameter.
	IgnoreSSL bool `yaml:"ignoreSSL"`
	// OpenRate limits new logins per second across all hosts. A negative
	// value disables the limit.
	OpenRate float64 `yaml:"openRate"`
	// OpenBurst is the limiter burst size.
	OpenBurst int `yaml:"openBurst"`
}

// OpenLimited reports whether session logins are rate limited.
func (s SessionConfig) OpenLimited() bool {
	return s.OpenRate > 0
}

// RoutesConfig names the HTTP routes and their path parameters.
type RoutesConfig struct {
	Prefix    string `yaml:"prefix"`
	HostParam string `yaml:"hostParam"`
	TypeParam string `yaml:"typeParam"`
	IDParam   string `yaml:"idParam"`
}

// QueryConfig names the query parameters and sets query limits.
type QueryConfig struct {
	Fields      string `yaml:"fields"`
	SearchField string `yaml:"searchField"`
	SearchValue string `yaml:"searchValue"`
	Limit       string `yaml:"limit"`
	Offset      string `yaml:"offset"`
	IgnoreSSL   string `yaml:"ignoreSSL"`

	DefaultLimit int `yaml:"defaultLimit"`
	// MaxPatternLength caps search expressions. A negative value disables the cap.
	MaxPatternLength int `yaml:"maxPatternLength"`
}

// OverrideCredential returns the configured credential, or nil.
func (c *Config) OverrideCredential() *vsphere.Credential {
	if c.Credential == nil || c.Credential.Username == "" {
		return nil
	}
	return &vsphere.Credential{Username: c.Credential.Username, Password: c.Credential.Password}
}

// RouteParams returns the path parameter names.
func (c *Config) RouteParams() gateway.RouteParams {
	return gateway.RouteParams{
		Host: c.Routes.HostParam,
		Type: c.Routes.TypeParam,
		ID:   c.Routes.IDParam,
	}
}

// Gateway returns the request pipeline settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		Params: gateway.Params{
			Fields:      c.Query.Fields,
			SearchField: c.Query.SearchField,
			SearchValue: c.Query.SearchValue,
			Limit:       c.Query.Limit,
			Offset:      c.Query.Offset,
			IgnoreSSL:   c.Query.IgnoreSSL,
		},
		DefaultLimit: c.Query.DefaultLimit,
		IgnoreSSL:    c.Session.IgnoreSSL,
		MaxRetries:   c.Session.MaxRetries,
	}
}

// PatternLimit returns the search expression cap for the query engine,
// where zero means unlimited.
func (c *Config) PatternLimit() int {
	return max(c.Query.MaxPatternLength, 0)
}
