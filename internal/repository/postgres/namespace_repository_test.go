package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*NamespaceRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewNamespaceRepository(NewFromSQL(db, "postgres"), "private-storage"), mock, db
}

var itemColumns = []string{"id", "title", "kind", "parent_id", "size", "size_unit", "size_bytes", "storage_key", "storage_url", "last_modified"}

func TestLoad(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+storage_items\s+WHERE\s+namespace\s*=\s*\$1\s+ORDER\s+BY\s+position`).
		WithArgs("private-storage").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("f1", "Docs", "folder", "", "", "", 0, "", "", now).
			AddRow("i1", "a.pdf", "file", "f1", "12", "KB", 12288, "uploads/1-a.pdf", "https://x/uploads/1-a.pdf", now))
	mock.ExpectQuery(`SELECT usage FROM storage_usage WHERE namespace = \$1`).
		WithArgs("private-storage").
		WillReturnRows(sqlmock.NewRows([]string{"usage"}).AddRow("12288"))

	snap, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, domain.KindFolder, snap.Items[0].Kind)
	assert.Equal(t, "uploads/1-a.pdf", snap.Items[1].StorageKey)
	assert.Equal(t, int64(12288), snap.Items[1].SizeBytes)
	assert.Equal(t, "12288", snap.Usage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_MissingUsage(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+storage_items`).
		WithArgs("private-storage").
		WillReturnRows(sqlmock.NewRows(itemColumns))
	mock.ExpectQuery(`FROM storage_usage`).
		WithArgs("private-storage").
		WillReturnRows(sqlmock.NewRows([]string{"usage"}))

	snap, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "", snap.Usage)
}

func TestLoad_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+storage_items`).WillReturnError(errors.New("db down"))

	_, err := repo.Load(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSave(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	snap := domain.Snapshot{
		Items: []domain.StorageItem{
			{ID: "f1", Title: "Docs", Kind: domain.KindFolder, LastModified: time.Now()},
			{ID: "i1", Title: "a.pdf", Kind: domain.KindFile, ParentID: "f1", Size: "12", SizeUnit: "KB", SizeBytes: 12288, StorageKey: "uploads/1-a.pdf"},
		},
		Usage: "12288",
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM storage_items WHERE namespace = \$1`).
		WithArgs("private-storage").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO storage_items`).
		WithArgs("private-storage", 0, "f1", "Docs", "folder", "", "", "", int64(0), "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO storage_items`).
		WithArgs("private-storage", 1, "i1", "a.pdf", "file", "f1", "12", "KB", int64(12288), "uploads/1-a.pdf", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO storage_usage`).
		WithArgs("private-storage", "12288").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT pg_notify\(\$1, \$2\)`).
		WithArgs("storage_namespace_changes", "private-storage").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM storage_items`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), domain.Snapshot{})
	assert.ErrorContains(t, err, "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChanges_RequiresDSN(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.Changes(context.Background())
	assert.Error(t, err)
}

func TestForwardNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *pq.Notification, 3)
	out := make(chan struct{}, 1)
	go forwardNotifications(ctx, in, "private-storage", out)

	in <- &pq.Notification{Channel: "storage_namespace_changes", Extra: "other"}
	in <- &pq.Notification{Channel: "storage_namespace_changes", Extra: "private-storage"}

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-out:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", DSN(&cfg))
}
