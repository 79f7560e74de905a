// Package profiling mounts the pprof endpoints. They expose process
// internals and are off unless the server config enables them.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Config holds profiling configuration
type Config struct {
	// Path is the URL prefix, "/debug/pprof" when empty.
	Path string

	// BlockRate and MutexFraction enable the block and mutex profiles
	// when positive.
	BlockRate     int
	MutexFraction int
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() *Config {
	return &Config{Path: "/debug/pprof"}
}

var profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// RegisterRoutes mounts the pprof handlers on router.
func RegisterRoutes(router chi.Router, config *Config) {
	if config == nil {
		config = DefaultConfig()
	}
	path := config.Path
	if path == "" {
		path = "/debug/pprof"
	}

	if config.BlockRate > 0 {
		runtime.SetBlockProfileRate(config.BlockRate)
	}
	if config.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(config.MutexFraction)
	}

	router.Route(path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		for _, name := range profiles {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
}

// Handler returns a router serving only the profiling endpoints.
func Handler(config *Config) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, config)
	return r
}
