package query

import (
	"context"
	"sync"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// fakeSession serves searches from an in-memory inventory and records every
// query it receives.
type fakeSession struct {
	inventory []vsphere.Entity

	mu      sync.Mutex
	queries []vsphere.EntityQuery
}

func (*fakeSession) Status() vsphere.Status { return vsphere.StatusConnected }

func (*fakeSession) APIVersion() string { return "8.0.2.0" }

func (*fakeSession) Logout(context.Context) error { return nil }

func (*fakeSession) Destroy(_ context.Context, typ, id string) (*vsphere.DestroyResult, error) {
	return &vsphere.DestroyResult{Type: typ, ID: id, State: "success"}, nil
}

func (f *fakeSession) Search(_ context.Context, q vsphere.EntityQuery) ([]vsphere.Entity, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	wanted := make(map[string]bool, len(q.IDs))
	for _, id := range q.IDs {
		wanted[id] = true
	}

	out := make([]vsphere.Entity, 0)
	for _, e := range f.inventory {
		if e.Type != q.Type {
			continue
		}
		if len(q.IDs) > 0 && !wanted[e.ID] {
			continue
		}
		props := make(map[string]any)
		if q.AllProperties() {
			for k, v := range e.Properties {
				props[k] = v
			}
		} else {
			// Property paths come back as flat keys, the way the property
			// collector reports them.
			for _, p := range q.Properties {
				if v := e.Lookup(p); v.Exists() {
					props[p] = v.Value()
				}
			}
		}
		out = append(out, vsphere.Entity{ID: e.ID, Type: e.Type, Properties: props})
	}
	return out, nil
}

func (f *fakeSession) recorded() []vsphere.EntityQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vsphere.EntityQuery(nil), f.queries...)
}
