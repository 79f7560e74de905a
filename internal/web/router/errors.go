package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/store"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
	Path   string      `json:"path,omitempty"`
	Method string      `json:"method,omitempty"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found", nil)
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Method %s is not allowed for this resource", r.Method), nil)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	resp := ErrorResponse{
		Error:  ErrorDetail{Code: code, Message: message, Details: details},
		Status: status,
		Path:   r.URL.Path,
		Method: r.Method,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// renderError maps known errors to their status and writes them.
func (h *handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed",
			map[string]interface{}{"problems": verr.Problems})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, errBadRequest):
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		h.log.WithError(err).Error("request failed", map[string]interface{}{"path": r.URL.Path})
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred", nil)
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
