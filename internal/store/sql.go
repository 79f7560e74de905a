package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

type dialect int

const (
	questionMarks dialect = iota
	dollarNumbers
)

func (d dialect) placeholder(n int) string {
	if d == dollarNumbers {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return questionMarks, nil
	case DriverPgx, DriverPostgres:
		return dollarNumbers, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

// SQLStore keeps documents in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     logger.Logger
	now     func() time.Time
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, dsn string, log logger.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := New(db, driver, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. It does not migrate.
func New(db *sql.DB, driver string, log logger.Logger) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		log:     logger.OrNop(log).With(map[string]interface{}{"component": "store", "driver": driver}),
		now:     time.Now,
	}, nil
}

func (s *SQLStore) query(format string, n int) string {
	args := make([]any, n)
	for i := range args {
		args[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf(format, args...)
}

// Get loads a document.
func (s *SQLStore) Get(ctx context.Context, projectID, documentID string) (doc *model.Document, err error) {
	defer func() { observe("get", err) }()

	q := s.query(`SELECT root_container, version, config, updated_at FROM documents WHERE project_id = %s AND document_id = %s`, 2)
	var (
		root      string
		version   int
		raw       string
		updatedAt int64
	)
	err = s.db.QueryRowContext(ctx, q, projectID, documentID).Scan(&root, &version, &raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	cfg, err := model.ParseConfig([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, err)
	}
	return &model.Document{
		ProjectID:     projectID,
		DocumentID:    documentID,
		RootContainer: root,
		Version:       version,
		Config:        cfg,
		UpdatedAt:     time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// Save inserts or updates a document when doc.Version matches the stored
// version.
func (s *SQLStore) Save(ctx context.Context, doc *model.Document) (saved *model.Document, err error) {
	defer func() { observe("save", err) }()

	if err := checkDocument(doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current := 0
	q := s.query(`SELECT version FROM documents WHERE project_id = %s AND document_id = %s`, 2)
	err = tx.QueryRowContext(ctx, q, doc.ProjectID, doc.DocumentID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read document version: %w", err)
	}
	err = nil
	if doc.Version != current {
		err = ErrConflict
		return nil, err
	}

	now := s.now().UTC()
	if current == 0 {
		q = s.query(`INSERT INTO documents (project_id, document_id, root_container, version, config, updated_at) VALUES (%s, %s, %s, %s, %s, %s)`, 6)
		_, err = tx.ExecContext(ctx, q, doc.ProjectID, doc.DocumentID, doc.RootContainer, 1, string(raw), now.UnixMilli())
	} else {
		q = s.query(`UPDATE documents SET root_container = %s, version = %s, config = %s, updated_at = %s WHERE project_id = %s AND document_id = %s`, 6)
		_, err = tx.ExecContext(ctx, q, doc.RootContainer, current+1, string(raw), now.UnixMilli(), doc.ProjectID, doc.DocumentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document: %w", err)
	}

	s.log.Debug("saved document", map[string]interface{}{
		"project":  doc.ProjectID,
		"document": doc.DocumentID,
		"version":  current + 1,
	})
	saved = cloneDocument(doc)
	saved.Version = current + 1
	saved.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return saved, nil
}

// List returns the project's documents ordered by id.
func (s *SQLStore) List(ctx context.Context, projectID string) (docs []*model.Document, err error) {
	defer func() { observe("list", err) }()

	q := s.query(`SELECT document_id, root_container, version, config, updated_at FROM documents WHERE project_id = %s ORDER BY document_id`, 1)
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raw       string
			updatedAt int64
		)
		d := &model.Document{ProjectID: projectID}
		if err = rows.Scan(&d.DocumentID, &d.RootContainer, &d.Version, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if d.Config, err = model.ParseConfig([]byte(raw)); err != nil {
			return nil, fmt.Errorf("document %s: %w", d.DocumentID, err)
		}
		d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
