package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/vsphere-rest/pkg/versions"
)

type versionResponse struct {
	Version string `json:"version"`
}

// VersionRouter sets up the version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getVersion)
	return r
}

// getVersion
//
//	@Summary		Get server version
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	versionResponse
//	@Router			/version [get]
func getVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(versionResponse{Version: versions.GetVersionInfo().Version}); err != nil {
		http.Error(w, "Failed to marshal version info", http.StatusInternalServerError)
	}
}
