package watch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/web/websocket"
)

// ReloadPath is where preview pages open their reload socket.
const ReloadPath = "/__easyblocks/reload"

// Messages pushed to preview pages.
const (
	MsgReload = "reload"
	MsgError  = "error"
)

// reloadScript reconnects to the preview server and reloads the page when
// a new render is ready.
const reloadScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "` + ReloadPath + `");
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "` + MsgReload + `") location.reload();
    if (msg.type === "` + MsgError + `") console.error("easyblocks:", msg.data);
  };
})();
</script>`

// ReloadPayload tells previews what changed.
type ReloadPayload struct {
	Files       []string                `json:"files,omitempty"`
	Diagnostics []cerrors.CompilerError `json:"diagnostics,omitempty"`
}

// ErrorPayload carries a failed render.
type ErrorPayload struct {
	Message string   `json:"message"`
	Files   []string `json:"files,omitempty"`
}

// Preview serves the latest render of a document and reloads open pages
// when it changes.
type Preview struct {
	ws  *websocket.Server
	log logger.Logger

	mu   sync.RWMutex
	page string
}

// NewPreview starts the reload hub. Only local pages may connect.
func NewPreview(ctx context.Context, log logger.Logger) *Preview {
	cfg := websocket.DefaultConfig()
	cfg.CheckOrigin = localOrigin
	p := &Preview{ws: websocket.NewServer(ctx, cfg, log), log: logger.OrNop(log)}
	p.ws.Start()
	return p
}

func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Publish replaces the served page and tells open previews to reload.
func (p *Preview) Publish(html string, files []string, diagnostics []cerrors.CompilerError) {
	p.mu.Lock()
	p.page = injectReload(html)
	p.mu.Unlock()

	p.ws.Hub.Broadcast(&websocket.Message{
		Type:    MsgReload,
		Payload: ReloadPayload{Files: files, Diagnostics: diagnostics},
	})
}

// PublishError keeps the last good page and reports err to open previews.
func (p *Preview) PublishError(err error, files []string) {
	p.ws.Hub.Broadcast(&websocket.Message{
		Type:    MsgError,
		Payload: ErrorPayload{Message: err.Error(), Files: files},
	})
}

// Clients is the number of connected previews.
func (p *Preview) Clients() int {
	return p.ws.Hub.ClientCount()
}

// Handler serves the page and the reload socket.
func (p *Preview) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", p.servePage)
	r.Get(ReloadPath, p.ws.Handler())
	return r
}

func (p *Preview) servePage(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	page := p.page
	p.mu.RUnlock()

	if page == "" {
		http.Error(w, "no render yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, page)
}

// Close disconnects previews.
func (p *Preview) Close() {
	p.ws.Shutdown()
}

func injectReload(html string) string {
	if i := strings.LastIndex(html, "</body>"); i >= 0 {
		return html[:i] + reloadScript + html[i:]
	}
	return html + reloadScript
}
