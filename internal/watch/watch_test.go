package watch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/render"
)

type collector struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *collector) add(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, names)
}

func (c *collector) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.calls...)
}

func TestDebouncer_Coalesces(t *testing.T) {
	var c collector
	d := NewDebouncer(20*time.Millisecond, c.add)
	defer d.Stop()

	d.Add("page.json")
	d.Add("project.yml")
	d.Add("page.json")

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"page.json", "project.yml"}, c.snapshot()[0])

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.snapshot(), 1)
}

func TestDebouncer_Stop(t *testing.T) {
	var c collector
	d := NewDebouncer(20*time.Millisecond, c.add)
	d.Add("page.json")
	d.Stop()
	d.Add("page.json")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.json")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(page, []byte(`{}`), 0o644))

	var c collector
	fw, err := NewFileWatcher([]string{page}, 20*time.Millisecond, c.add, logger.NewNoOpLogger())
	require.NoError(t, err)
	fw.Start()
	defer fw.Stop()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(page, []byte(`{"config":{}}`), 0o644))

	require.Eventually(t, func() bool { return len(c.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	for _, call := range c.snapshot() {
		for _, name := range call {
			assert.Equal(t, "page.json", filepath.Base(name))
		}
	}

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestNewFileWatcher_Errors(t *testing.T) {
	_, err := NewFileWatcher(nil, 0, func([]string) {}, nil)
	assert.Error(t, err)

	_, err = NewFileWatcher([]string{filepath.Join(t.TempDir(), "missing", "page.json")}, 0, func([]string) {}, nil)
	assert.Error(t, err)
}

func TestInjectReload(t *testing.T) {
	out := injectReload("<html><body><p>hi</p></body></html>")
	assert.True(t, strings.HasSuffix(out, "</script></body></html>"))
	assert.Contains(t, out, ReloadPath)

	out = injectReload("<p>fragment</p>")
	assert.True(t, strings.HasPrefix(out, "<p>fragment</p><script>"))
}

func TestLocalOrigin(t *testing.T) {
	tests := map[string]bool{
		"":                      true,
		"http://localhost:4000": true,
		"http://127.0.0.1:4000": true,
		"https://localhost":     true,
		"http://[::1]:4000":     true,
		"https://evil.example":  false,
		"http://localhost.evil": false,
		"::not a url":           false,
	}
	for origin, want := range tests {
		req := httptest.NewRequest(http.MethodGet, ReloadPath, nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, localOrigin(req), origin)
	}
}

func readMessage(t *testing.T, ws *gws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestPreview(t *testing.T) {
	p := NewPreview(context.Background(), logger.NewNoOpLogger())
	defer p.Close()
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ws, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return p.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	p.Publish("<html><body>v1</body></html>", []string{"page.json"}, nil)
	msg := readMessage(t, ws)
	assert.Equal(t, MsgReload, msg["type"])

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "v1")
	assert.Contains(t, string(body), ReloadPath)

	p.PublishError(errors.New("invalid json"), []string{"page.json"})
	msg = readMessage(t, ws)
	assert.Equal(t, MsgError, msg["type"])
	assert.Equal(t, "invalid json", msg["data"].(map[string]any)["message"])

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "v1", "last good page is kept")
}

func TestRebuilder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "page.html")
	fail := false
	var results []error

	r := &Rebuilder{
		Out: out,
		Build: func(ctx context.Context) (*render.Output, error) {
			if fail {
				return nil, errors.New("broken config")
			}
			return &render.Output{
				HTML:        "<p>ok</p>",
				Diagnostics: []cerrors.CompilerError{{Code: cerrors.ErrUnknownToken}},
			}, nil
		},
		OnResult: func(_ *render.Output, _ []string, _ time.Duration, err error) {
			results = append(results, err)
		},
	}

	require.NoError(t, r.Rebuild(context.Background(), nil))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(data))

	fail = true
	assert.EqualError(t, r.Rebuild(context.Background(), []string{"page.json"}), "broken config")
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(data), "failed builds keep the old page")

	require.Len(t, results, 2)
	assert.NoError(t, results[0])
	assert.Error(t, results[1])
}
