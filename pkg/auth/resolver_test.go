package auth

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-core/httperr"
	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

func basic(payload string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestParseBasic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    vsphere.Credential
		wantErr bool
	}{
		{
			name:   "valid",
			header: basic("administrator@vsphere.local:secret"),
			want:   vsphere.Credential{Username: "administrator@vsphere.local", Password: "secret"},
		},
		{
			name:   "lower case scheme",
			header: "basic " + base64.StdEncoding.EncodeToString([]byte("root:pw")),
			want:   vsphere.Credential{Username: "root", Password: "pw"},
		},
		{
			name:   "empty password",
			header: basic("root:"),
			want:   vsphere.Credential{Username: "root", Password: ""},
		},
		{
			name:   "empty username",
			header: basic(":pw"),
			want:   vsphere.Credential{Username: "", Password: "pw"},
		},
		{name: "missing header", header: "", wantErr: true},
		{name: "bearer scheme", header: "Bearer abc.def", wantErr: true},
		{name: "scheme only", header: "Basic", wantErr: true},
		{name: "not base64", header: "Basic !!!", wantErr: true},
		{name: "no separator", header: basic("rootpw"), wantErr: true},
		{name: "two separators", header: basic("root:pw:extra"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBasic(tt.header)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, vsphere.ErrUnauthenticated)
				assert.Equal(t, http.StatusUnauthorized, httperr.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()

	t.Run("request header without override", func(t *testing.T) {
		t.Parallel()
		r := NewResolver(nil)
		assert.False(t, r.HasOverride())

		cred, err := r.Resolve(basic("alice:pw"))
		require.NoError(t, err)
		assert.Equal(t, "alice", cred.Username)
	})

	t.Run("missing header without override", func(t *testing.T) {
		t.Parallel()
		_, err := NewResolver(nil).Resolve("")
		assert.ErrorIs(t, err, vsphere.ErrUnauthenticated)
	})

	t.Run("override wins over header", func(t *testing.T) {
		t.Parallel()
		override := &vsphere.Credential{Username: "svc", Password: "svc-pw"}
		r := NewResolver(override)
		assert.True(t, r.HasOverride())

		cred, err := r.Resolve(basic("alice:pw"))
		require.NoError(t, err)
		assert.Equal(t, *override, cred)

		cred, err = r.Resolve("garbage")
		require.NoError(t, err)
		assert.Equal(t, *override, cred)
	})

	t.Run("override is copied", func(t *testing.T) {
		t.Parallel()
		override := &vsphere.Credential{Username: "svc", Password: "svc-pw"}
		r := NewResolver(override)
		override.Password = "changed"

		cred, err := r.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "svc-pw", cred.Password)
	})
}
