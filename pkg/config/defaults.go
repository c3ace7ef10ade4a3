package config

import (
	"dario.cat/mergo"

	"github.com/stacklok/vsphere-rest/pkg/api/response"
	"github.com/stacklok/vsphere-rest/pkg/gateway"
	"github.com/stacklok/vsphere-rest/pkg/query"
	"github.com/stacklok/vsphere-rest/pkg/telemetry"
)

const (
	// defaultAddress is the listen address when none is configured.
	defaultAddress = "127.0.0.1:8080"

	// defaultPrefix mounts the entity routes at the root.
	defaultPrefix = "/"

	// defaultOpenRate and defaultOpenBurst bound logins per second.
	defaultOpenRate  = 10
	defaultOpenBurst = 5
)

// DefaultTypeAliases returns the built-in short names for common types.
func DefaultTypeAliases() map[string]string {
	return map[string]string{
		"vm":         "VirtualMachine",
		"host":       "HostSystem",
		"cluster":    "ClusterComputeResource",
		"datacenter": "Datacenter",
		"datastore":  "Datastore",
		"network":    "Network",
		"dvs":        "DistributedVirtualSwitch",
		"portgroup":  "DistributedVirtualPortgroup",
		"folder":     "Folder",
		"pool":       "ResourcePool",
		"vapp":       "VirtualApp",
	}
}

// Default returns a fully populated Config.
func Default() *Config {
	routes := gateway.DefaultRouteParams()
	params := gateway.DefaultParams()
	return &Config{
		Address: defaultAddress,
		Session: SessionConfig{
			OpenRate:  defaultOpenRate,
			OpenBurst: defaultOpenBurst,
		},
		Routes: RoutesConfig{
			Prefix:    defaultPrefix,
			HostParam: routes.Host,
			TypeParam: routes.Type,
			IDParam:   routes.ID,
		},
		Query: QueryConfig{
			Fields:           params.Fields,
			SearchField:      params.SearchField,
			SearchValue:      params.SearchValue,
			Limit:            params.Limit,
			Offset:           params.Offset,
			IgnoreSSL:        params.IgnoreSSL,
			DefaultLimit:     response.DefaultLimit,
			MaxPatternLength: query.DefaultMaxPatternLength,
		},
		Telemetry:   telemetry.DefaultConfig(),
		TypeAliases: DefaultTypeAliases(),
	}
}

// EnsureDefaults fills zero values in c from Default, preserving anything
// the user set. Type aliases are merged key by key.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	// Merge only fails on mismatched types, which cannot happen here.
	_ = mergo.Merge(c, Default())
}
