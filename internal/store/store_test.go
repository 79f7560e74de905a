package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/model"
)

func testDocument(id string) *model.Document {
	card := model.NewConfig("Card", "c1", map[string]any{
		"title":    model.NewLocalText("t1", map[string]any{"en": "Hello", "de": "Hallo"}),
		"featured": true,
		"image":    model.ExternalReference{ID: "cat.jpg", WidgetID: "@easyblocks/url"}.ToMap(),
	})
	root := model.NewConfig("Grid", "g1", map[string]any{
		"items":  []*model.ComponentConfig{card},
		"layout": map[string]any{"$res": true, "xl": "wide", "xs": "narrow"},
	})
	return &model.Document{ProjectID: "p1", DocumentID: id, RootContainer: "content", Config: root}
}

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "p1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	doc := testDocument("home")
	saved, err := s.Save(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.Equal(t, 0, doc.Version)

	got, err := s.Get(ctx, "p1", "home")
	require.NoError(t, err)
	assert.Equal(t, doc.Config.ToMap(), got.Config.ToMap())
	assert.Equal(t, "content", got.RootContainer)
	assert.Equal(t, 1, got.Version)

	_, err = s.Save(ctx, doc)
	assert.ErrorIs(t, err, ErrConflict)

	got.Config.Props["layout"] = "stacked"
	saved, err = s.Save(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)

	got, err = s.Get(ctx, "p1", "home")
	require.NoError(t, err)
	assert.Equal(t, "stacked", got.Config.Props["layout"])

	_, err = s.Save(ctx, testDocument("about"))
	require.NoError(t, err)
	other := testDocument("elsewhere")
	other.ProjectID = "p2"
	_, err = s.Save(ctx, other)
	require.NoError(t, err)

	docs, err := s.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "about", docs[0].DocumentID)
	assert.Equal(t, "home", docs[1].DocumentID)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Save(ctx, testDocument("home"))
	require.NoError(t, err)

	got, err := s.Get(ctx, "p1", "home")
	require.NoError(t, err)
	got.Config.Props["layout"] = "changed"

	again, err := s.Get(ctx, "p1", "home")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Config.Props["layout"])
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, ":memory:", logger.NewTestLogger(t))
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)

	// re-running migrations is a no-op
	require.NoError(t, s.Migrate(ctx))
}

func TestSave_Invalid(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Save(ctx, nil)
	assert.Error(t, err)

	_, err = s.Save(ctx, &model.Document{ProjectID: "p1", DocumentID: "d"})
	assert.Error(t, err)

	dup := model.NewConfig("Grid", "g1", map[string]any{
		"items": []*model.ComponentConfig{model.NewConfig("Card", "g1", nil)},
	})
	_, err = s.Save(ctx, &model.Document{ProjectID: "p1", DocumentID: "d", Config: dup})
	assert.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, "oracle", nil)
	assert.Error(t, err)
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, DriverPgx, logger.NewTestLogger(t))
	require.NoError(t, err)
	return s, mock
}

func TestSQLStore_GetPostgres(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE project_id = $1 AND document_id = $2")).
		WithArgs("p1", "home").
		WillReturnRows(sqlmock.NewRows([]string{"root_container", "version", "config", "updated_at"}).
			AddRow("content", 3, `{"_template":"Card","_id":"c1","title":"x"}`, int64(1700000000000)))

	doc, err := s.Get(context.Background(), "p1", "home")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)
	assert.Equal(t, "Card", doc.Config.Template)
	assert.Equal(t, "x", doc.Config.Props["title"])
	assert.Equal(t, int64(1700000000000), doc.UpdatedAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SaveConflictRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM documents WHERE project_id = $1 AND document_id = $2")).
		WithArgs("p1", "home").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))
	mock.ExpectRollback()

	doc := testDocument("home")
	doc.Version = 3
	_, err := s.Save(context.Background(), doc)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SaveExecError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("p1", "home", "content", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := s.Save(context.Background(), testDocument("home"))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Update(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET root_container = $1, version = $2, config = $3, updated_at = $4 WHERE project_id = $5 AND document_id = $6")).
		WithArgs("content", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", "home").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := testDocument("home")
	doc.Version = 1
	saved, err := s.Save(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
