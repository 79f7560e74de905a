package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/easyblocks/easyblocks/internal/logger"
)

// Recovery turns a panicking handler into a 500 JSON response and logs the
// panic with its stack.
func Recovery(log logger.Logger) Middleware {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				log.WithError(err).Error("panic recovered", map[string]interface{}{
					"request_id": GetRequestID(r.Context()),
					"path":       r.URL.Path,
					"stack":      string(debug.Stack()),
				})

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{
						"code":    "INTERNAL_ERROR",
						"message": "An unexpected error occurred",
					},
					"status": http.StatusInternalServerError,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
