// Package ratelimit throttles API clients, in process or across replicas
// through redis.
package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/easyblocks/easyblocks/internal/logger"
)

// Limiter decides whether the client identified by key may make another
// request.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info is the limiter state after a decision.
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// KeyFunc derives the client key of a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. A failing limiter
// lets the request through.
func Middleware(limiter Limiter, key KeyFunc, log logger.Logger) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	log = logger.OrNop(log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable", nil)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
			if info.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := time.Until(info.ResetAt).Round(time.Second)
			if retry < time.Second {
				retry = time.Second
			}
			h.Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
			h.Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":  map[string]string{"code": "RATE_LIMITED", "message": "Too many requests"},
				"status": http.StatusTooManyRequests,
			})
		})
	}
}
