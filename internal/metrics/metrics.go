// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CompilePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_compile_passes_total",
			Help: "Total number of compile passes by outcome",
		},
		[]string{"mode", "outcome"},
	)

	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easyblocks_compile_duration_seconds",
			Help:    "Duration of a compile pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"mode"},
	)

	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_diagnostics_total",
			Help: "Total number of compile diagnostics by code and severity",
		},
		[]string{"code", "severity"},
	)

	ResourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_resource_fetches_total",
			Help: "Total number of resources settled by the resource engine",
		},
		[]string{"type", "status"},
	)

	ResourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "easyblocks_resource_fetch_duration_seconds",
			Help: "Duration of a fetch call in seconds",
		},
		[]string{"fetcher"},
	)

	ResourceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_resource_cache_lookups_total",
			Help: "Resource cache lookups by result",
		},
		[]string{"result"},
	)

	EditorSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyblocks_editor_sessions_active",
			Help: "Number of open editor sessions",
		},
	)

	EditorCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_editor_commands_total",
			Help: "Editor commands applied by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	WebsocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_websocket_messages_total",
			Help: "Websocket messages by direction and type",
		},
		[]string{"direction", "type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "easyblocks_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyblocks_store_operations_total",
			Help: "Document store operations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
