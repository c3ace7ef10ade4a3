// Package errors converts gateway errors into HTTP error responses.
package errors

import (
	"log/slog"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"

	"github.com/stacklok/vsphere-rest/pkg/api/response"
)

// Body is the JSON error payload.
type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Respond writes err through r. The status comes from httperr.Code, so any
// error wrapped with httperr.WithCode keeps its status; everything else is
// a 500.
//
// 5xx errors are logged at error level, 4xx at debug.
func Respond(r response.Responder, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	code := httperr.Code(err)
	if code < http.StatusBadRequest {
		code = http.StatusInternalServerError
	}

	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "status", code, "error", err)
	} else {
		logger.Debug("request rejected", "status", code, "error", err)
	}

	r.Respond(code, Body{Code: code, Message: err.Error()})
}
