package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/easyblocks/easyblocks/internal/model"
)

type docKey struct {
	project  string
	document string
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey]*model.Document
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[docKey]*model.Document),
		now:  time.Now,
	}
}

func cloneDocument(d *model.Document) *model.Document {
	c := *d
	c.Config = d.Config.Clone()
	return &c
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(ctx context.Context, projectID, documentID string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[docKey{projectID, documentID}]
	if !ok {
		observe("get", ErrNotFound)
		return nil, ErrNotFound
	}
	observe("get", nil)
	return cloneDocument(d), nil
}

// Save stores a copy of doc.
func (s *MemoryStore) Save(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if err := checkDocument(doc); err != nil {
		observe("save", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey{doc.ProjectID, doc.DocumentID}
	current := 0
	if existing, ok := s.docs[key]; ok {
		current = existing.Version
	}
	if doc.Version != current {
		observe("save", ErrConflict)
		return nil, ErrConflict
	}

	stored := cloneDocument(doc)
	stored.Version = current + 1
	stored.UpdatedAt = s.now().UTC()
	s.docs[key] = stored
	observe("save", nil)
	return cloneDocument(stored), nil
}

// List returns the project's documents ordered by id.
func (s *MemoryStore) List(ctx context.Context, projectID string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Document
	for k, d := range s.docs {
		if k.project == projectID {
			out = append(out, cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	observe("list", nil)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
