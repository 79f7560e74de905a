package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/easyblocks/easyblocks/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(&Config{Address: "127.0.0.1:0", Handler: okHandler()})
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	return srv
}

func TestDefaultShutdownConfig(t *testing.T) {
	config := DefaultShutdownConfig()
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.ElementsMatch(t, []os.Signal{syscall.SIGINT, syscall.SIGTERM}, config.Signals)
}

func TestNewGracefulShutdown_Defaults(t *testing.T) {
	gs := NewGracefulShutdown(newTestServer(t), &ShutdownConfig{})
	assert.Equal(t, 30*time.Second, gs.timeout)
	assert.Len(t, gs.signals, 2)
	assert.NotNil(t, gs.log)

	gs = NewGracefulShutdown(newTestServer(t), nil)
	assert.Equal(t, 30*time.Second, gs.timeout)
}

func TestGracefulShutdown_RunUntilContextDone(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := newTestServer(t)
	gs := NewGracefulShutdown(srv, &ShutdownConfig{
		Timeout: 5 * time.Second,
		Logger:  logger.NewZapAdapter(zap.New(core)),
	})

	var mu sync.Mutex
	var order []string
	hook := func(name string, err error) ShutdownHook {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	gs.RegisterHook(hook("sessions", nil))
	gs.RegisterHook(hook("store", errors.New("close failed")))
	gs.RegisterHook(hook("cache", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	assert.Equal(t, []string{"sessions", "store", "cache"}, order)
	assert.Equal(t, 1, logs.FilterMessage("shutdown hook failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())

	// a second shutdown returns the first result without rerunning hooks
	assert.NoError(t, gs.Shutdown())
	assert.NoError(t, gs.Wait())
	assert.Len(t, order, 3)
}

func TestGracefulShutdown_Signal(t *testing.T) {
	srv := newTestServer(t)
	gs := NewGracefulShutdown(srv, &ShutdownConfig{Timeout: time.Second, Signals: []os.Signal{syscall.SIGUSR1}})

	done := make(chan error, 1)
	go func() { done <- gs.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after signal")
	}
}

func TestGracefulShutdown_ServerError(t *testing.T) {
	first := newTestServer(t)
	defer first.listener.Close()

	second, err := New(&Config{Address: first.Addr(), Handler: okHandler()})
	require.NoError(t, err)
	gs := NewGracefulShutdown(second, nil)

	err = gs.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}
