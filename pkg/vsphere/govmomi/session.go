// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package govmomi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// Session is an authenticated SOAP session.
type Session struct {
	client  *vim25.Client
	manager *session.Manager
	logger  *slog.Logger
	status  atomic.Int32
}

var _ vsphere.Session = (*Session)(nil)

func newSession(vc *vim25.Client, manager *session.Manager, logger *slog.Logger) *Session {
	s := &Session{client: vc, manager: manager, logger: logger}
	s.status.Store(int32(vsphere.StatusConnected))
	return s
}

// Status reports the connection state. A NotAuthenticated fault on any call
// marks the session disconnected.
func (s *Session) Status() vsphere.Status {
	return vsphere.Status(s.status.Load())
}

// APIVersion returns the API version advertised by the endpoint.
func (s *Session) APIVersion() string {
	return s.client.ServiceContent.About.ApiVersion
}

// Search retrieves q.Properties of the matching entities through the
// property collector. Without ids, every entity of the type below the root
// folder is considered.
func (s *Session) Search(ctx context.Context, q vsphere.EntityQuery) ([]vsphere.Entity, error) {
	refs, err := s.references(ctx, q)
	if err != nil {
		return nil, s.fault(err)
	}
	if len(refs) == 0 {
		return []vsphere.Entity{}, nil
	}

	var content []types.ObjectContent
	if err := property.DefaultCollector(s.client).Retrieve(ctx, refs, q.Properties, &content); err != nil {
		return nil, s.fault(err)
	}

	entities := make([]vsphere.Entity, 0, len(content))
	for _, oc := range content {
		entities = append(entities, toEntity(oc))
	}
	return entities, nil
}

func (s *Session) references(ctx context.Context, q vsphere.EntityQuery) ([]types.ManagedObjectReference, error) {
	if len(q.IDs) > 0 {
		refs := make([]types.ManagedObjectReference, 0, len(q.IDs))
		for _, id := range q.IDs {
			refs = append(refs, types.ManagedObjectReference{Type: q.Type, Value: id})
		}
		return refs, nil
	}

	v, err := view.NewManager(s.client).CreateContainerView(ctx, s.client.ServiceContent.RootFolder, []string{q.Type}, true)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := v.Destroy(ctx); err != nil {
			s.logger.Debug("failed to destroy container view", "error", err)
		}
	}()
	return v.Find(ctx, []string{q.Type}, nil)
}

// Destroy runs Destroy_Task on the entity and waits for it to finish.
func (s *Session) Destroy(ctx context.Context, typ, id string) (*vsphere.DestroyResult, error) {
	ref := types.ManagedObjectReference{Type: typ, Value: id}
	task, err := object.NewCommon(s.client, ref).Destroy(ctx)
	if err != nil {
		return nil, s.fault(err)
	}

	result := &vsphere.DestroyResult{Type: typ, ID: id, Task: task.Reference().Value}
	info, err := task.WaitForResult(ctx)
	if info != nil {
		result.State = string(info.State)
		if info.Error != nil {
			return nil, s.fault(&taskError{fault: info.Error})
		}
	}
	if err != nil {
		return nil, s.fault(err)
	}
	return result, nil
}

// Logout ends the remote session. The session is unusable afterwards even
// when the remote call fails.
func (s *Session) Logout(ctx context.Context) error {
	defer s.status.Store(int32(vsphere.StatusLoggedOut))
	if err := s.manager.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// fault classifies err and records a lost authentication.
func (s *Session) fault(err error) error {
	f := classify(err)
	if f == nil {
		return err
	}
	if f.Code == http.StatusUnauthorized {
		s.status.CompareAndSwap(int32(vsphere.StatusConnected), int32(vsphere.StatusDisconnected))
	}
	return f
}

// taskError carries the fault of a failed task.
type taskError struct {
	fault *types.LocalizedMethodFault
}

func (e *taskError) Error() string {
	if e.fault.LocalizedMessage != "" {
		return e.fault.LocalizedMessage
	}
	return fmt.Sprintf("task failed: %T", e.fault.Fault)
}

func asTaskError(err error) (*taskError, bool) {
	var te *taskError
	ok := errors.As(err, &te)
	return te, ok
}
