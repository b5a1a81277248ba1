package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filevault/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to its HTTP status and public message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "Call Limit Reached"
	case errors.Is(err, common.ErrQuotaExceeded):
		return http.StatusBadRequest, "Storage limit exceeded"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrPermissionDenied):
		return http.StatusForbidden, "Permission denied"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrStorageIO):
		return http.StatusBadGateway, "Storage unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "route", routeName(r), "error", err)
	} else if common.Retryable(err) {
		s.logger.Info(r.Context(), "request rejected", "route", routeName(r), "reason", err)
	}
	writeJSONError(w, code, msg)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
