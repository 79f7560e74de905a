package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
	"github.com/easyblocks/easyblocks/internal/store"
	"github.com/easyblocks/easyblocks/internal/web/websocket"
)

// ManagerOptions configure a Manager. Session collaborators are shared by
// every session; Transport is replaced by the hub when handlers are
// registered.
type ManagerOptions struct {
	Options

	ProjectID string

	// RootTemplate is the root component of documents that do not exist
	// yet.
	RootTemplate string
}

// Manager keeps one session per open document.
type Manager struct {
	opts ManagerOptions
	log  logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:     opts,
		log:      logger.OrNop(opts.Logger).With(map[string]interface{}{"component": "editor-manager"}),
		sessions: make(map[string]*Session),
	}
}

// Open returns the session of documentID, loading the document from the
// store or creating an empty one.
func (m *Manager) Open(ctx context.Context, documentID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[documentID]; ok {
		return s, nil
	}

	doc, err := m.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(doc, m.opts.Options)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentID, err)
	}
	m.sessions[documentID] = s
	m.log.Info("session opened", map[string]interface{}{"document": documentID, "version": doc.Version})
	return s, nil
}

func (m *Manager) load(ctx context.Context, documentID string) (*model.Document, error) {
	if m.opts.Store != nil {
		doc, err := m.opts.Store.Get(ctx, m.opts.ProjectID, documentID)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if m.opts.RootTemplate == "" {
		return nil, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}
	return &model.Document{
		ProjectID:  m.opts.ProjectID,
		DocumentID: documentID,
		Config:     model.NewConfig(m.opts.RootTemplate, uuid.NewString(), nil),
	}, nil
}

// Session returns the open session of documentID.
func (m *Manager) Session(documentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[documentID]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseSession closes and forgets the session of documentID.
func (m *Manager) CloseSession(documentID string) {
	m.mu.Lock()
	s, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.log.Info("session closed", map[string]interface{}{"document": documentID})
	}
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseSession(id)
	}
}

type joinRequest struct {
	DocumentID string `json:"documentId"`
}

type commandRequest struct {
	DocumentID string  `json:"documentId"`
	Command    Command `json:"command"`
}

type savedResponse struct {
	DocumentID string `json:"documentId"`
	Version    int    `json:"version"`
}

// RegisterHandlers routes editor messages of hub to sessions and publishes
// snapshots to document rooms. Sessions close when their room empties.
// Call it before the hub runs.
func (m *Manager) RegisterHandlers(hub *websocket.Hub) {
	m.opts.Transport = HubTransport{Hub: hub}

	hub.RegisterHandler(MsgJoin, func(ctx context.Context, client *websocket.Client, message *websocket.Message) error {
		var req joinRequest
		if err := message.Decode(&req); err != nil {
			return err
		}
		if req.DocumentID == "" {
			return fmt.Errorf("documentId is required")
		}
		s, err := m.Open(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		client.JoinRoom(Room(req.DocumentID))
		return client.SendJSON(MsgSnapshot, s.Snapshot())
	})

	hub.RegisterHandler(MsgCommand, func(ctx context.Context, client *websocket.Client, message *websocket.Message) error {
		var req commandRequest
		if err := message.Decode(&req); err != nil {
			return err
		}
		s, ok := m.Session(req.DocumentID)
		if !ok {
			return fmt.Errorf("document %q is not open", req.DocumentID)
		}
		_, err := s.Apply(ctx, req.Command)
		return err
	})

	hub.RegisterHandler(MsgSave, func(ctx context.Context, client *websocket.Client, message *websocket.Message) error {
		var req joinRequest
		if err := message.Decode(&req); err != nil {
			return err
		}
		s, ok := m.Session(req.DocumentID)
		if !ok {
			return fmt.Errorf("document %q is not open", req.DocumentID)
		}
		version, err := s.Save(ctx)
		if err != nil {
			return err
		}
		return client.SendJSON(MsgSaved, savedResponse{DocumentID: req.DocumentID, Version: version})
	})

	hub.RegisterHandler(MsgLeave, func(ctx context.Context, client *websocket.Client, message *websocket.Message) error {
		var req joinRequest
		if err := message.Decode(&req); err != nil {
			return err
		}
		client.LeaveRoom(Room(req.DocumentID))
		return nil
	})

	hub.OnLeave = func(client *websocket.Client, room string) {
		documentID, ok := strings.CutPrefix(room, Room(""))
		if !ok || hub.RoomSize(room) > 0 {
			return
		}
		m.CloseSession(documentID)
	}
}
