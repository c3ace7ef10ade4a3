package govmomi

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/vmware/govmomi/vim25/mo"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// inventoryTypes are the managed-entity types served by the gateway.
var inventoryTypes = []any{
	mo.ManagedEntity{},
	mo.Folder{},
	mo.Datacenter{},
	mo.ComputeResource{},
	mo.ClusterComputeResource{},
	mo.HostSystem{},
	mo.ResourcePool{},
	mo.VirtualApp{},
	mo.VirtualMachine{},
	mo.Datastore{},
	mo.StoragePod{},
	mo.Network{},
	mo.OpaqueNetwork{},
	mo.DistributedVirtualPortgroup{},
	mo.DistributedVirtualSwitch{},
	mo.VmwareDistributedVirtualSwitch{},
}

var catalog = sync.OnceValue(func() map[string]vsphere.TypeDefinition {
	out := make(map[string]vsphere.TypeDefinition, len(inventoryTypes))
	for _, v := range inventoryTypes {
		def := describe(reflect.TypeOf(v))
		out[def.Name] = def
	}
	return out
})

// Registry serves the managed-entity catalog. The catalog is derived from
// the govmomi object model and is the same for every API version.
type Registry struct{}

var _ vsphere.SchemaRegistry = (*Registry)(nil)

// NewRegistry creates a Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Schema returns a copy of the catalog.
func (*Registry) Schema(_ context.Context, _ string) (map[string]vsphere.TypeDefinition, error) {
	src := catalog()
	out := make(map[string]vsphere.TypeDefinition, len(src))
	for name, def := range src {
		def.Properties = append([]string(nil), def.Properties...)
		out[name] = def
	}
	return out, nil
}

// describe reads the property names of a mo struct from its field tags,
// following embedded base types.
func describe(t reflect.Type) vsphere.TypeDefinition {
	def := vsphere.TypeDefinition{Name: t.Name()}
	seen := make(map[string]struct{})
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				if def.Base == "" {
					def.Base = f.Type.Name()
				}
				walk(f.Type)
				continue
			}
			name := propertyName(f.Tag)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			def.Properties = append(def.Properties, name)
		}
	}
	walk(t)
	sort.Strings(def.Properties)
	return def
}

// propertyName returns the vSphere property a mo field is collected into.
// Older govmomi releases tag fields with `mo`, newer ones with `json`.
func propertyName(tag reflect.StructTag) string {
	name, ok := tag.Lookup("mo")
	if !ok {
		name = tag.Get("json")
	}
	name, _, _ = strings.Cut(name, ",")
	if name == "-" {
		return ""
	}
	return name
}
