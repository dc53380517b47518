package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/service"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT, domain.ETRANSITION:
		return http.StatusConflict // 409
	case domain.EUNSUPPORTED:
		return http.StatusUnprocessableEntity // 422
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EGATEWAY:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData writes a successful envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// writeError writes a failed envelope. message must be safe to show.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Envelope{Success: false, Code: code, Error: message})
}

// writeResult writes a failed facade Result. The facade has already logged
// internal errors, so only client errors are logged here.
func writeResult(w http.ResponseWriter, r *http.Request, logger *slog.Logger, res service.Result) {
	status := ErrorCodeToHTTPStatus(res.Code)
	if status < 500 {
		logger.Info("client error",
			"code", res.Code,
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
		)
	}
	writeError(w, status, res.Code, res.Error)
}

// badRequest rejects a malformed request before it reaches the facade.
func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, domain.EINVALID, message)
}
