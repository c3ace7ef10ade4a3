package govmomi

import (
	"github.com/vmware/govmomi/vim25/types"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

func toEntity(oc types.ObjectContent) vsphere.Entity {
	props := make(map[string]any, len(oc.PropSet))
	for _, p := range oc.PropSet {
		props[p.Name] = normalize(p.Val)
	}
	return vsphere.Entity{ID: oc.Obj.Value, Type: oc.Obj.Type, Properties: props}
}

// normalize flattens the SOAP array wrappers and references into plain
// values so they render as JSON arrays and id strings.
func normalize(v types.AnyType) any {
	switch val := v.(type) {
	case types.ManagedObjectReference:
		return val.Value
	case *types.ManagedObjectReference:
		if val == nil {
			return nil
		}
		return val.Value
	case types.ArrayOfManagedObjectReference:
		ids := make([]string, 0, len(val.ManagedObjectReference))
		for _, ref := range val.ManagedObjectReference {
			ids = append(ids, ref.Value)
		}
		return ids
	case types.ArrayOfString:
		return val.String
	case types.ArrayOfInt:
		return val.Int
	case types.ArrayOfLong:
		return val.Long
	case types.ArrayOfBoolean:
		return val.Boolean
	default:
		return val
	}
}
