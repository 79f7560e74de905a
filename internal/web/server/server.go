// Package server runs the easyblocks HTTP server with production timeouts,
// optional TLS and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/easyblocks/easyblocks/internal/logger"
)

// Config describes one HTTP listener.
type Config struct {
	Address string
	Handler http.Handler

	// TLS turns on HTTPS when set.
	TLS *TLSConfig

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	// WriteTimeout must stay zero while websockets are served.
	WriteTimeout time.Duration

	MaxHeaderBytes int
	EnableHTTP2    bool

	Logger logger.Logger
}

// TLSConfig points at a certificate pair or carries a ready tls.Config.
type TLSConfig struct {
	CertFile string
	KeyFile  string

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16

	// Base is cloned when set; CertFile and KeyFile are still loaded into it.
	Base *tls.Config
}

// DefaultConfig returns the timeouts easyblocks serves with.
func DefaultConfig(handler http.Handler) *Config {
	return &Config{
		Address:           ":8080",
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		EnableHTTP2:       true,
	}
}

// Server is an http.Server bound to its own listener, so the real address
// is known before serving starts.
type Server struct {
	config   *Config
	http     *http.Server
	tls      *tls.Config
	listener net.Listener
	log      logger.Logger
}

// New validates config and prepares the server. Certificates are loaded
// here so a bad pair fails before anything listens.
func New(config *Config) (*Server, error) {
	switch {
	case config == nil:
		return nil, errors.New("server config is required")
	case config.Handler == nil:
		return nil, errors.New("server handler is required")
	}

	s := &Server{
		config: config,
		http: &http.Server{
			Handler:           config.Handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
			MaxHeaderBytes:    config.MaxHeaderBytes,
		},
		log: logger.OrNop(config.Logger),
	}
	if config.TLS != nil {
		tc, err := buildTLSConfig(config.TLS, config.EnableHTTP2)
		if err != nil {
			return nil, err
		}
		s.tls = tc
		s.http.TLSConfig = tc
	}
	return s, nil
}

// Listen binds the address. Calling it before Start makes Addr report
// the port chosen for ":0".
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}
	s.listener = ln
	return nil
}

// Start serves until Shutdown or Close, which make it return
// http.ErrServerClosed.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.log.Info("server listening", map[string]interface{}{
		"address": s.Addr(),
		"tls":     s.tls != nil,
	})
	return s.http.Serve(s.listener)
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Close drops every connection at once.
func (s *Server) Close() error {
	return s.http.Close()
}

// Addr is the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Address
	}
	return s.listener.Addr().String()
}

// Scheme is "https" when TLS is on.
func (s *Server) Scheme() string {
	if s.tls != nil {
		return "https"
	}
	return "http"
}

func buildTLSConfig(c *TLSConfig, http2 bool) (*tls.Config, error) {
	tc := &tls.Config{}
	if c.Base != nil {
		tc = c.Base.Clone()
	}
	if c.MinVersion != 0 {
		tc.MinVersion = c.MinVersion
	}
	if tc.MinVersion == 0 {
		tc.MinVersion = tls.VersionTLS12
	}
	if http2 {
		tc.NextProtos = []string{"h2", "http/1.1"}
	}
	if c.CertFile != "" || c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load tls certificate: %w", err)
		}
		tc.Certificates = append(tc.Certificates, cert)
	}
	return tc, nil
}
