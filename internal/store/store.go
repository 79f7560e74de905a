// Package store persists documents keyed by project and document id.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/easyblocks/easyblocks/internal/metrics"
	"github.com/easyblocks/easyblocks/internal/model"
)

var (
	// ErrNotFound is returned when no document exists for the key.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a save is based on an outdated version.
	ErrConflict = errors.New("document version conflict")
)

// Store loads and saves documents. Configs round-trip structurally
// unchanged.
type Store interface {
	Get(ctx context.Context, projectID, documentID string) (*model.Document, error)

	// Save stores doc and returns the stored copy with its new version.
	// doc.Version must be the version the change is based on, 0 for a new
	// document.
	Save(ctx context.Context, doc *model.Document) (*model.Document, error)

	List(ctx context.Context, projectID string) ([]*model.Document, error)
	Close() error
}

func checkDocument(doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	if doc.ProjectID == "" || doc.DocumentID == "" {
		return fmt.Errorf("document requires project and document id")
	}
	if doc.Config == nil {
		return fmt.Errorf("document %s has no config", doc.DocumentID)
	}
	if err := doc.Config.CheckUniqueIDs(); err != nil {
		return fmt.Errorf("document %s: %w", doc.DocumentID, err)
	}
	return nil
}

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case err != nil:
		outcome = "error"
	}
	metrics.StoreOperations.WithLabelValues(op, outcome).Inc()
}
