// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-core/httperr"
	"github.com/stacklok/vsphere-rest/pkg/vsphere"
	"github.com/stacklok/vsphere-rest/pkg/vsphere/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSchema = map[string]vsphere.TypeDefinition{
	"VirtualMachine": {Name: "VirtualMachine"},
	"HostSystem":     {Name: "HostSystem"},
}

// newConnectedSession returns a mock session whose status is driven by state.
func newConnectedSession(ctrl *gomock.Controller, state *atomic.Int32) *mocks.MockSession {
	sess := mocks.NewMockSession(ctrl)
	sess.EXPECT().Status().DoAndReturn(func() vsphere.Status {
		return vsphere.Status(state.Load())
	}).AnyTimes()
	sess.EXPECT().APIVersion().Return("8.0.2.0").AnyTimes()
	return sess
}

func connected() *atomic.Int32 {
	s := &atomic.Int32{}
	s.Store(int32(vsphere.StatusConnected))
	return s
}

func TestCacheGet_Validation(t *testing.T) {
	t.Parallel()

	t.Run("empty host is a bad request", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		cache := NewCache(mocks.NewMockConnector(ctrl), mocks.NewMockSchemaRegistry(ctrl))

		rec, err := cache.Get(context.Background(), "", &vsphere.Credential{Username: "root"}, vsphere.OpenOptions{})
		require.Error(t, err)
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, vsphere.ErrBadRequest)
		assert.Contains(t, err.Error(), "no host specified")
	})

	t.Run("empty host is checked before the credential", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		cache := NewCache(mocks.NewMockConnector(ctrl), mocks.NewMockSchemaRegistry(ctrl))

		_, err := cache.Get(context.Background(), "", nil, vsphere.OpenOptions{})
		assert.ErrorIs(t, err, vsphere.ErrBadRequest)
	})

	t.Run("missing credential is unauthenticated", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		cache := NewCache(mocks.NewMockConnector(ctrl), mocks.NewMockSchemaRegistry(ctrl))

		_, err := cache.Get(context.Background(), "vc1", nil, vsphere.OpenOptions{})
		assert.ErrorIs(t, err, vsphere.ErrUnauthenticated)
		assert.Equal(t, 0, cache.Len())
	})
}

func TestCacheGet_HitAfterOpen(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)
	sess := newConnectedSession(ctrl, connected())

	opts := vsphere.OpenOptions{IgnoreSSL: true, MaxRetries: 2}
	connector.EXPECT().Open(gomock.Any(), "vc1.example.com", "Admin", "pw", opts).Return(sess, nil).Times(1)
	registry.EXPECT().Schema(gomock.Any(), "8.0.2.0").Return(testSchema, nil).Times(1)

	cache := NewCache(connector, registry, WithTypeAliases(map[string]string{"vm": "VirtualMachine"}))

	first, err := cache.Get(context.Background(), "VC1.example.com", &vsphere.Credential{Username: "Admin", Password: "pw"}, opts)
	require.NoError(t, err)
	assert.Equal(t, Key{Host: "vc1.example.com", Username: "admin"}, first.Key())
	assert.Same(t, sess, first.Session())

	name, err := first.Types().Resolve("vms")
	require.NoError(t, err)
	assert.Equal(t, "VirtualMachine", name)

	// Different letter case maps to the same key and performs no login.
	second, err := cache.Get(context.Background(), "vc1.EXAMPLE.com", &vsphere.Credential{Username: "admin", Password: "pw"}, opts)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheGet_ReconnectsWhenNotConnected(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)

	oldState := connected()
	oldSess := newConnectedSession(ctrl, oldState)
	newSess := newConnectedSession(ctrl, connected())

	gomock.InOrder(
		connector.EXPECT().Open(gomock.Any(), "vc1", "root", "pw", gomock.Any()).Return(oldSess, nil),
		connector.EXPECT().Open(gomock.Any(), "vc1", "root", "pw", gomock.Any()).Return(newSess, nil),
	)
	registry.EXPECT().Schema(gomock.Any(), gomock.Any()).Return(testSchema, nil).Times(2)
	oldSess.EXPECT().Logout(gomock.Any()).Return(errors.New("not authenticated")).Times(1)

	cache := NewCache(connector, registry)
	cred := &vsphere.Credential{Username: "root", Password: "pw"}

	first, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, oldSess, first.Session())

	oldState.Store(int32(vsphere.StatusDisconnected))

	second, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, newSess, second.Session())
	assert.NotSame(t, first, second)

	// The replaced handle never comes back.
	third, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, second, third)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheGet_PasswordMismatchReopens(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)
	sess := newConnectedSession(ctrl, connected())

	connector.EXPECT().Open(gomock.Any(), "vc1", "root", "right", gomock.Any()).Return(sess, nil).Times(1)
	connector.EXPECT().Open(gomock.Any(), "vc1", "root", "wrong", gomock.Any()).
		Return(nil, errors.New("incorrect user name or password")).Times(1)
	registry.EXPECT().Schema(gomock.Any(), gomock.Any()).Return(testSchema, nil).Times(1)

	cache := NewCache(connector, registry)

	rec, err := cache.Get(context.Background(), "vc1", &vsphere.Credential{Username: "root", Password: "right"}, vsphere.OpenOptions{})
	require.NoError(t, err)

	_, err = cache.Get(context.Background(), "vc1", &vsphere.Credential{Username: "root", Password: "wrong"}, vsphere.OpenOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, vsphere.ErrUnauthenticated)

	// The failed attempt leaves the good record in place.
	again, err := cache.Get(context.Background(), "vc1", &vsphere.Credential{Username: "root", Password: "right"}, vsphere.OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, rec, again)
}

func TestCacheGet_OpenFailures(t *testing.T) {
	t.Parallel()

	t.Run("plain failure maps to 401 and is not cached", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		connector := mocks.NewMockConnector(ctrl)
		connector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("dial tcp: connection refused")).Times(2)

		cache := NewCache(connector, mocks.NewMockSchemaRegistry(ctrl))
		cred := &vsphere.Credential{Username: "root", Password: "pw"}

		for i := 0; i < 2; i++ {
			rec, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.Equal(t, http.StatusUnauthorized, httperr.Code(err))
		}
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("fault code passes through", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		connector := mocks.NewMockConnector(ctrl)
		connector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, vsphere.NewFault(http.StatusServiceUnavailable, "vpxd is starting", nil))

		cache := NewCache(connector, mocks.NewMockSchemaRegistry(ctrl))
		_, err := cache.Get(context.Background(), "vc1", &vsphere.Credential{Username: "root"}, vsphere.OpenOptions{})
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httperr.Code(err))
		assert.Contains(t, err.Error(), "vpxd is starting")
	})

	t.Run("schema failure logs out and is an upstream error", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		connector := mocks.NewMockConnector(ctrl)
		registry := mocks.NewMockSchemaRegistry(ctrl)
		sess := newConnectedSession(ctrl, connected())

		connector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sess, nil)
		registry.EXPECT().Schema(gomock.Any(), "8.0.2.0").Return(nil, errors.New("unsupported api version"))
		sess.EXPECT().Logout(gomock.Any()).Return(nil)

		cache := NewCache(connector, registry)
		_, err := cache.Get(context.Background(), "vc1", &vsphere.Credential{Username: "root"}, vsphere.OpenOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, vsphere.ErrUpstream)
		assert.Equal(t, http.StatusInternalServerError, httperr.Code(err))
		assert.Equal(t, 0, cache.Len())
	})
}

func TestCacheGet_ConcurrentMissOpensOnce(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)
	sess := newConnectedSession(ctrl, connected())

	gate := make(chan struct{})
	connector.EXPECT().Open(gomock.Any(), "vc1", "root", "pw", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, _ string, _ vsphere.OpenOptions) (vsphere.Session, error) {
			<-gate
			return sess, nil
		}).Times(1)
	registry.EXPECT().Schema(gomock.Any(), gomock.Any()).Return(testSchema, nil).Times(1)

	cache := NewCache(connector, registry)
	cred := &vsphere.Credential{Username: "root", Password: "pw"}

	const callers = 25
	records := make([]*Record, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
			assert.NoError(t, err)
			records[i] = rec
		}(i)
	}

	close(gate)
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, records[0], records[i])
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCacheGet_OpenLimiter(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)
	state := connected()
	sess := newConnectedSession(ctrl, state)

	connector.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sess, nil).Times(1)
	registry.EXPECT().Schema(gomock.Any(), gomock.Any()).Return(testSchema, nil).Times(1)

	cache := NewCache(connector, registry, WithOpenLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	cred := &vsphere.Credential{Username: "root", Password: "pw"}

	_, err := cache.Get(context.Background(), "vc1", cred, vsphere.OpenOptions{})
	require.NoError(t, err)

	state.Store(int32(vsphere.StatusDisconnected))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cache.Get(ctx, "vc1", cred, vsphere.OpenOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waiting to open session")
}

func TestCacheEvictAndClose(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	connector := mocks.NewMockConnector(ctrl)
	registry := mocks.NewMockSchemaRegistry(ctrl)
	s1 := newConnectedSession(ctrl, connected())
	s2 := newConnectedSession(ctrl, connected())
	s3 := newConnectedSession(ctrl, connected())
	s4 := newConnectedSession(ctrl, connected())

	gomock.InOrder(
		connector.EXPECT().Open(gomock.Any(), "vc1", "a", gomock.Any(), gomock.Any()).Return(s1, nil),
		connector.EXPECT().Open(gomock.Any(), "vc1", "a", gomock.Any(), gomock.Any()).Return(s4, nil),
	)
	connector.EXPECT().Open(gomock.Any(), "vc1", "b", gomock.Any(), gomock.Any()).Return(s2, nil)
	connector.EXPECT().Open(gomock.Any(), "vc2", "a", gomock.Any(), gomock.Any()).Return(s3, nil)
	registry.EXPECT().Schema(gomock.Any(), gomock.Any()).Return(testSchema, nil).Times(4)

	s1.EXPECT().Logout(gomock.Any()).Return(nil)
	s2.EXPECT().Logout(gomock.Any()).Return(nil)
	s3.EXPECT().Logout(gomock.Any()).Return(errors.New("session gone"))
	s4.EXPECT().Logout(gomock.Any()).Return(nil)

	cache := NewCache(connector, registry)
	ctx := context.Background()
	records := make([]*Record, 0, 3)
	for _, hu := range [][2]string{{"vc1", "a"}, {"vc1", "b"}, {"vc2", "a"}} {
		rec, err := cache.Get(ctx, hu[0], &vsphere.Credential{Username: hu[1]}, vsphere.OpenOptions{})
		require.NoError(t, err)
		records = append(records, rec)
	}
	assert.Equal(t, 3, cache.Len())

	assert.True(t, cache.Evict(ctx, records[0]))
	assert.False(t, cache.Evict(ctx, records[0]))
	assert.False(t, cache.Evict(ctx, nil))
	assert.Equal(t, 2, cache.Len())

	// The next request logs in again; evicting the old record must not
	// touch its replacement.
	fresh, err := cache.Get(ctx, "VC1", &vsphere.Credential{Username: "A"}, vsphere.OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, s4, fresh.Session())
	assert.False(t, cache.Evict(ctx, records[0]))
	assert.Equal(t, 3, cache.Len())

	err = cache.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session gone")
	assert.Equal(t, 0, cache.Len())
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key{Host: "vc1.lab", Username: "administrator@vsphere.local"},
		NewKey("VC1.Lab", "Administrator@VSPHERE.local"))
	assert.Equal(t, "vc1/root", NewKey("vc1", "root").String())
}
