package websocket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/easyblocks/easyblocks/internal/logger"
)

// Config tunes the HTTP upgrade.
type Config struct {
	ReadBufferSize    int
	WriteBufferSize   int
	EnableCompression bool

	// CheckOrigin decides whether an editor window may connect. Nil
	// accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig accepts any origin with 4 KB buffers.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Server is a hub with its HTTP entry point. Every upgraded connection
// becomes a Client with a fresh id.
type Server struct {
	Hub *Hub

	upgrader websocket.Upgrader
}

// NewServer creates a server whose hub already answers ping and status.
func NewServer(ctx context.Context, config *Config, log logger.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	hub := NewHub(ctx, log)
	registerDefaultHandlers(hub)
	return &Server{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
			CheckOrigin:       checkOrigin,
		},
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.Hub.log.WithError(err).Warn("websocket upgrade failed", map[string]interface{}{"remote": r.RemoteAddr})
		return
	}

	client := NewClient(uuid.NewString(), conn, s.Hub)
	s.Hub.register <- client
	go client.WritePump()
	go client.ReadPump()

	s.Hub.log.Debug("client connected", map[string]interface{}{"client": client.ID, "remote": r.RemoteAddr})
}

// Handler returns s as a handler func for routers.
func (s *Server) Handler() http.HandlerFunc {
	return s.ServeHTTP
}

// Start runs the hub in the background.
func (s *Server) Start() {
	go s.Hub.Run()
}

// Shutdown stops the hub and disconnects every client.
func (s *Server) Shutdown() {
	s.Hub.Shutdown()
}
