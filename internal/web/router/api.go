package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/render"
	"github.com/easyblocks/easyblocks/internal/web/cache"
)

// compileRequest is the body of /api/compile and /api/render.
type compileRequest struct {
	Config    json.RawMessage `json:"config"`
	Locale    string          `json:"locale,omitempty"`
	Device    string          `json:"device,omitempty"`
	IsEditing bool            `json:"isEditing,omitempty"`
	Title     string          `json:"title,omitempty"`
}

type compileResponse struct {
	Compiled    *model.CompiledComponentConfig `json:"compiled"`
	Meta        *model.Metadata                `json:"meta"`
	Diagnostics []cerrors.CompilerError        `json:"diagnostics"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	return data, nil
}

func (h *handlers) decodeCompileRequest(w http.ResponseWriter, r *http.Request) (*compileRequest, *model.ComponentConfig, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, nil, err
	}
	var req compileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, badRequest("invalid json: %v", err)
	}
	if len(req.Config) == 0 {
		return nil, nil, badRequest("config is required")
	}
	if err := model.ValidateConfigJSON(req.Config); err != nil {
		return nil, nil, err
	}
	cfg, err := model.ParseConfig(req.Config)
	if err != nil {
		return nil, nil, badRequest("invalid config: %v", err)
	}
	if err := cfg.CheckUniqueIDs(); err != nil {
		return nil, nil, badRequest("%v", err)
	}
	return &req, cfg, nil
}

func (h *handlers) compile(w http.ResponseWriter, r *http.Request) {
	req, cfg, err := h.decodeCompileRequest(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	res, err := h.cfg.Renderer.Compile(r.Context(), cfg, compiler.ContextParams{
		Locale:    req.Locale,
		Device:    req.Device,
		IsEditing: req.IsEditing,
	})
	if err != nil {
		h.renderError(w, r, badRequest("%v", err))
		return
	}
	diagnostics := res.Diagnostics
	if diagnostics == nil {
		diagnostics = []cerrors.CompilerError{}
	}
	writeJSON(w, http.StatusOK, compileResponse{Compiled: res.Compiled, Meta: res.Meta, Diagnostics: diagnostics})
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request) {
	req, cfg, err := h.decodeCompileRequest(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	out, err := h.cfg.Renderer.Render(r.Context(), cfg, render.Options{
		ContextParams: compiler.ContextParams{Locale: req.Locale, Device: req.Device},
		Title:         req.Title,
	})
	if err != nil {
		h.renderError(w, r, badRequest("%v", err))
		return
	}
	writeHTML(w, out.HTML)
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.cfg.Store.List(r.Context(), h.cfg.ProjectID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.cfg.Store.Get(r.Context(), h.cfg.ProjectID, chi.URLParam(r, "documentID"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// putDocument saves a document. The body's version must be the stored
// version, 0 for a new document.
func (h *handlers) putDocument(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		h.renderError(w, r, badRequest("invalid json: %v", err))
		return
	}
	raw["documentId"] = chi.URLParam(r, "documentID")
	raw["projectId"] = h.cfg.ProjectID
	if raw["version"] == nil {
		raw["version"] = 0
	}
	if data, err = json.Marshal(raw); err != nil {
		h.renderError(w, r, err)
		return
	}

	doc, err := model.ParseDocument(data)
	if err != nil {
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			err = badRequest("%v", err)
		}
		h.renderError(w, r, err)
		return
	}
	saved, err := h.cfg.Store.Save(r.Context(), doc)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	status := http.StatusOK
	if saved.Version == 1 {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// renderDocument serves the stored document as a full HTML page. Pages are
// cached per document version, device and locale, and revalidated through
// their ETag.
func (h *handlers) renderDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.cfg.Store.Get(ctx, h.cfg.ProjectID, chi.URLParam(r, "documentID"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	params := compiler.ContextParams{
		Locale: r.URL.Query().Get("locale"),
		Device: r.URL.Query().Get("device"),
	}
	if params.Locale == "" {
		params.Locale = h.cfg.Renderer.Compiler.Global().DefaultLocale()
	}
	if params.Device == "" {
		params.Device = h.cfg.Renderer.Compiler.Global().Devices.Main().ID
	}

	key := cache.RenderKey(doc.ProjectID, doc.DocumentID, doc.Version, params.Device, params.Locale)
	var page []byte
	if h.cfg.Cache != nil {
		page, err = h.cfg.Cache.Get(ctx, key)
		if err != nil && !cache.IsCacheMiss(err) {
			h.log.WithError(err).Warn("render cache lookup failed", map[string]interface{}{"key": key})
		}
	}

	if page == nil {
		out, err := h.cfg.Renderer.Render(ctx, doc.Config, render.Options{ContextParams: params, Title: doc.DocumentID})
		if err != nil {
			h.renderError(w, r, badRequest("%v", err))
			return
		}
		page = []byte(out.HTML)
		if h.cfg.Cache != nil {
			if err := h.cfg.Cache.Set(ctx, key, page, h.cfg.CacheTTL); err != nil {
				h.log.WithError(err).Warn("render cache store failed", map[string]interface{}{"key": key})
			}
		}
	}

	etag := cache.GenerateETag(page)
	cache.SetCacheHeaders(w, etag, doc.UpdatedAt.Truncate(time.Second), "no-cache")
	if cache.CheckConditionalRequest(w, r, etag, doc.UpdatedAt) {
		return
	}
	writeHTML(w, string(page))
}
