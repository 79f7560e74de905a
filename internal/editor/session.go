// Package editor runs edit sessions. A session owns an immutable snapshot
// of a document, applies edit commands to produce the next snapshot,
// recompiles wholesale and publishes the full state to every window of the
// document.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	cerrors "github.com/easyblocks/easyblocks/compiler/errors"
	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/resource"
	"github.com/easyblocks/easyblocks/internal/responsive"
	"github.com/easyblocks/easyblocks/internal/store"
)

// ErrClosed is returned by a closed session.
var ErrClosed = errors.New("session closed")

// State is what the editor edits. It is never mutated; commands produce a
// new State.
type State struct {
	Config *model.ComponentConfig
	Locale string
	Device string
	Focus  []string
}

// Snapshot is the full state published after every pass.
type Snapshot struct {
	DocumentID    string                         `json:"documentId"`
	Revision      uint64                         `json:"revision"`
	Version       int                            `json:"version"`
	Meta          *model.Metadata                `json:"meta"`
	Compiled      *model.CompiledComponentConfig `json:"compiled"`
	ExternalData  map[string]model.Resource      `json:"externalData"`
	FormValues    *model.ComponentConfig         `json:"formValues"`
	Devices       responsive.Devices             `json:"devices"`
	Locale        string                         `json:"locale"`
	Device        string                         `json:"device"`
	FocussedField []string                       `json:"focussedField"`
	Diagnostics   []cerrors.CompilerError        `json:"diagnostics,omitempty"`
	Preview       string                         `json:"preview,omitempty"`
}

// Options are the collaborators of a session. Compiler is required; the
// compiler should read resource state from Engine.
type Options struct {
	Compiler  *compiler.Compiler
	Engine    *resource.Engine
	Runtime   *builder.Registry
	Store     store.Store
	Transport Transport
	Logger    logger.Logger
	NewID     func() string
}

// Session edits one document.
type Session struct {
	ProjectID  string
	DocumentID string

	opts Options
	log  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	version  int
	rootSlot string
	revision uint64
	last     *Snapshot
	// afterAuto is the config of the last pass after auto functions ran.
	afterAuto *model.ComponentConfig
	closed   bool
}

// NewSession starts a session on doc and publishes the first snapshot.
func NewSession(doc *model.Document, opts Options) (*Session, error) {
	if opts.Compiler == nil {
		return nil, fmt.Errorf("session requires a compiler")
	}
	if doc == nil || doc.Config == nil {
		return nil, fmt.Errorf("session requires a document with a config")
	}
	if err := doc.Config.CheckUniqueIDs(); err != nil {
		return nil, err
	}
	if opts.Transport == nil {
		opts.Transport = Discard
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ProjectID:  doc.ProjectID,
		DocumentID: doc.DocumentID,
		opts:       opts,
		log: logger.OrNop(opts.Logger).With(map[string]interface{}{
			"component": "editor",
			"document":  doc.DocumentID,
		}),
		ctx:      ctx,
		cancel:   cancel,
		version:  doc.Version,
		rootSlot: doc.RootContainer,
		state: State{
			Config: doc.Config.Clone(),
			Locale: opts.Compiler.Global().DefaultLocale(),
			Device: opts.Compiler.Global().Devices.Main().ID,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.refreshLocked(); err != nil {
		cancel()
		return nil, err
	}
	metrics.EditorSessionsActive.Inc()
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the last published snapshot.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Apply runs one command and publishes the resulting snapshot. A rejected
// command leaves the state unchanged.
func (s *Session) Apply(ctx context.Context, cmd Command) (*Snapshot, error) {
	if err := cmd.Validate(); err != nil {
		metrics.EditorCommands.WithLabelValues(cmd.Type, "rejected").Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	next, err := s.reduce(s.state, cmd)
	if err != nil {
		metrics.EditorCommands.WithLabelValues(cmd.Type, "rejected").Inc()
		s.log.WithError(err).Debug("command rejected", map[string]interface{}{"type": cmd.Type, "path": cmd.Path})
		return nil, err
	}

	prev := s.state
	s.state = next
	snap, err := s.refreshLocked()
	if err != nil {
		s.state = prev
		metrics.EditorCommands.WithLabelValues(cmd.Type, "failed").Inc()
		return nil, err
	}
	metrics.EditorCommands.WithLabelValues(cmd.Type, "ok").Inc()
	return snap, nil
}

// refreshLocked compiles the current state, publishes it and starts
// fetching whatever the pass found missing. Settled fetches trigger another
// pass unless a newer one happened meanwhile.
func (s *Session) refreshLocked() (*Snapshot, error) {
	s.revision++
	rev := s.revision

	res, err := s.opts.Compiler.Compile(s.state.Config, compiler.ContextParams{
		Locale:    s.state.Locale,
		Device:    s.state.Device,
		IsEditing: true,
	})
	if err != nil {
		return nil, err
	}

	s.afterAuto = res.ConfigAfterAuto

	external := make(map[string]model.Resource, len(res.Meta.Resources))
	for _, r := range res.Meta.Resources {
		external[r.ID] = r
	}
	snap := &Snapshot{
		DocumentID:    s.DocumentID,
		Revision:      rev,
		Version:       s.version,
		Meta:          res.Meta,
		Compiled:      res.Compiled,
		ExternalData:  external,
		FormValues:    s.state.Config,
		Devices:       s.opts.Compiler.Global().Devices,
		Locale:        s.state.Locale,
		Device:        s.state.Device,
		FocussedField: append([]string{}, s.state.Focus...),
		Diagnostics:   res.Diagnostics,
	}

	if s.opts.Runtime != nil {
		b := builder.New(s.opts.Runtime, builder.WithLogger(s.log))
		if el := b.Build(res.Compiled, "", nil, res.Meta); el != nil {
			if html, err := builder.Render(el); err == nil {
				snap.Preview = html
			} else {
				s.log.WithError(err).Warn("preview rendering failed", nil)
			}
		}
		snap.Diagnostics = append(snap.Diagnostics, b.Diagnostics()...)
	}

	s.last = snap
	if err := s.opts.Transport.Publish(s.DocumentID, snap); err != nil {
		s.log.WithError(err).Warn("failed to publish snapshot", map[string]interface{}{"revision": rev})
	}

	if s.opts.Engine != nil {
		started := s.opts.Engine.ResolveAsync(s.ctx, res.Requests, func([]model.Resource) {
			s.settled(rev)
		})
		// A fetch of an older pass may have landed after this pass read
		// the engine; its own callback is dropped, so rerun from here.
		if !started && settledSince(res.Meta.Resources, s.opts.Engine.Snapshot(res.Requests)) {
			go s.settled(rev)
		}
	}
	return snap, nil
}

// settledSince reports whether a resource compiled as loading is settled
// in current.
func settledSince(compiled, current []model.Resource) bool {
	loading := make(map[string]bool)
	for _, r := range compiled {
		if r.Status == model.StatusLoading {
			loading[r.ID] = true
		}
	}
	if len(loading) == 0 {
		return false
	}
	for _, r := range current {
		if loading[r.ID] && r.Status != model.StatusLoading {
			return true
		}
	}
	return false
}

func (s *Session) settled(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || rev != s.revision {
		return
	}
	if _, err := s.refreshLocked(); err != nil {
		s.log.WithError(err).Error("recompile after fetch failed", nil)
	}
}

// Save persists the current config and returns the stored version.
func (s *Session) Save(ctx context.Context) (int, error) {
	if s.opts.Store == nil {
		return 0, fmt.Errorf("session has no store")
	}

	s.mu.Lock()
	doc := &model.Document{
		ProjectID:     s.ProjectID,
		DocumentID:    s.DocumentID,
		RootContainer: s.rootSlot,
		Version:       s.version,
		Config:        s.state.Config,
	}
	s.mu.Unlock()

	saved, err := s.opts.Store.Save(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", s.DocumentID, err)
	}

	s.mu.Lock()
	if saved.Version > s.version {
		s.version = saved.Version
	}
	s.mu.Unlock()

	s.log.Info("document saved", map[string]interface{}{"version": saved.Version})
	return saved.Version, nil
}

// Close stops background work. Pending fetches are ignored once they
// settle.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	metrics.EditorSessionsActive.Dec()
}
