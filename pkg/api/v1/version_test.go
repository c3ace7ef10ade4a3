package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()
	resp := httptest.NewRecorder()
	getVersion(resp, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var version versionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&version))
	require.Contains(t, version.Version, "build-")
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(HealthcheckRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
