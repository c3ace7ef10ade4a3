package govmomi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

func TestRegistrySchema(t *testing.T) {
	t.Parallel()

	schema, err := NewRegistry().Schema(context.Background(), "8.0.2.0")
	require.NoError(t, err)

	vm, ok := schema["VirtualMachine"]
	require.True(t, ok)
	assert.Equal(t, "ManagedEntity", vm.Base)
	assert.Contains(t, vm.Properties, "name")
	assert.Contains(t, vm.Properties, "runtime")
	assert.Contains(t, vm.Properties, "config")
	assert.IsIncreasing(t, vm.Properties)

	assert.Equal(t, "DistributedVirtualSwitch", schema["VmwareDistributedVirtualSwitch"].Base)
	assert.Equal(t, "ComputeResource", schema["ClusterComputeResource"].Base)
	assert.Equal(t, "ResourcePool", schema["VirtualApp"].Base)
	assert.Contains(t, schema, "HostSystem")
	assert.Contains(t, schema, "Datastore")

	// Callers get their own copy.
	vm.Properties[0] = "mutated"
	again, err := NewRegistry().Schema(context.Background(), "7.0")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again["VirtualMachine"].Properties[0])
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fault any
		want  int
	}{
		{fault: types.InvalidLogin{}, want: http.StatusUnauthorized},
		{fault: types.NotAuthenticated{}, want: http.StatusUnauthorized},
		{fault: types.NoPermission{}, want: http.StatusForbidden},
		{fault: types.ManagedObjectNotFound{}, want: http.StatusNotFound},
		{fault: types.InvalidArgument{}, want: http.StatusBadRequest},
		{fault: types.TaskInProgress{}, want: http.StatusConflict},
		{fault: types.SystemError{}, want: http.StatusInternalServerError},
		{fault: &types.InvalidLogin{}, want: http.StatusUnauthorized},
		{fault: &types.NotAuthenticated{}, want: http.StatusUnauthorized},
		{fault: &types.NoPermission{}, want: http.StatusForbidden},
		{fault: &types.ManagedObjectNotFound{}, want: http.StatusNotFound},
		{fault: &types.InvalidProperty{}, want: http.StatusBadRequest},
		{fault: &types.InvalidPowerState{}, want: http.StatusConflict},
		{fault: &types.SystemError{}, want: http.StatusInternalServerError},
		{fault: nil, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.fault), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusFor(tt.fault))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("transport errors carry no fault", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, classify(errors.New("dial tcp: connection refused")))
		assert.Nil(t, classify(nil))
	})

	t.Run("vim fault", func(t *testing.T) {
		t.Parallel()
		f := classify(soap.WrapVimFault(&types.NoPermission{}))
		require.NotNil(t, f)
		assert.Equal(t, http.StatusForbidden, f.Code)
	})

	t.Run("decoded soap fault detail", func(t *testing.T) {
		t.Parallel()
		sf := &soap.Fault{Code: "ServerFaultCode", String: "The object has already been deleted or has not been completely created"}
		sf.Detail.Fault = types.ManagedObjectNotFound{Obj: types.ManagedObjectReference{Type: "VirtualMachine", Value: "vm-404"}}
		f := classify(soap.WrapSoapFault(sf))
		require.NotNil(t, f)
		assert.Equal(t, http.StatusNotFound, f.Code)
	})

	t.Run("task fault keeps the localized message", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("destroy: %w", &taskError{fault: &types.LocalizedMethodFault{
			Fault:            &types.InvalidPowerState{},
			LocalizedMessage: "The attempted operation cannot be performed in the current state (Powered on).",
		}})
		f := classify(err)
		require.NotNil(t, f)
		assert.Equal(t, http.StatusConflict, f.Code)
		assert.Contains(t, f.Error(), "Powered on")
	})

	t.Run("existing fault is kept", func(t *testing.T) {
		t.Parallel()
		orig := vsphere.NewFault(http.StatusNotFound, "gone", nil)
		assert.Same(t, orig, classify(fmt.Errorf("wrapped: %w", orig)))
	})
}

func TestSessionFaultMarksDisconnected(t *testing.T) {
	t.Parallel()

	s := newSession(nil, nil, nil)
	require.Equal(t, vsphere.StatusConnected, s.Status())

	err := s.fault(soap.WrapVimFault(&types.ManagedObjectNotFound{}))
	assert.Equal(t, http.StatusNotFound, vsphereCode(t, err))
	assert.Equal(t, vsphere.StatusConnected, s.Status())

	sf := &soap.Fault{Code: "ServerFaultCode", String: "NotAuthenticated"}
	sf.Detail.Fault = types.NotAuthenticated{}
	err = s.fault(soap.WrapSoapFault(sf))
	assert.Equal(t, http.StatusUnauthorized, vsphereCode(t, err))
	assert.Equal(t, vsphere.StatusDisconnected, s.Status())
}

func TestPropertyName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  reflect.StructTag
		want string
	}{
		{tag: `json:"capability"`, want: "capability"},
		{tag: `json:"summary,omitempty"`, want: "summary"},
		{tag: `json:"-"`, want: ""},
		{tag: `mo:"runtime"`, want: "runtime"},
		{tag: `mo:"guest" json:"ignored"`, want: "guest"},
		{tag: ``, want: ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, propertyName(tt.tag))
		})
	}
}

func vsphereCode(t *testing.T, err error) int {
	t.Helper()
	var f *vsphere.Fault
	require.ErrorAs(t, err, &f)
	return f.Code
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	ref := types.ManagedObjectReference{Type: "HostSystem", Value: "host-12"}
	assert.Equal(t, "host-12", normalize(ref))
	assert.Equal(t, "host-12", normalize(&ref))
	assert.Equal(t, []string{"ds-1", "ds-2"}, normalize(types.ArrayOfManagedObjectReference{
		ManagedObjectReference: []types.ManagedObjectReference{{Type: "Datastore", Value: "ds-1"}, {Type: "Datastore", Value: "ds-2"}},
	}))
	assert.Equal(t, []string{"a", "b"}, normalize(types.ArrayOfString{String: []string{"a", "b"}}))
	assert.Equal(t, "web01", normalize("web01"))

	e := toEntity(types.ObjectContent{
		Obj: types.ManagedObjectReference{Type: "VirtualMachine", Value: "vm-7"},
		PropSet: []types.DynamicProperty{
			{Name: "name", Val: "web07"},
			{Name: "runtime.host", Val: ref},
		},
	})
	assert.Equal(t, vsphere.Entity{
		ID:         "vm-7",
		Type:       "VirtualMachine",
		Properties: map[string]any{"name": "web07", "runtime.host": "host-12"},
	}, e)
}
