package journal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS call_journal").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS call_journal_call_id_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewPostgresRepo(db)
	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_MigrateRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS call_journal").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := NewPostgresRepo(db)
	assert.ErrorIs(t, repo.Migrate(context.Background()), assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO call_journal").
		WithArgs("e1", "upsert", "push", "c1", "replaced", 1, int64(7), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), Entry{
		ID:        "e1",
		Kind:      "upsert",
		Source:    "push",
		CallID:    "c1",
		Outcome:   "replaced",
		Count:     1,
		Version:   7,
		CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListByCall(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	rows := sqlmock.NewRows([]string{"id", "kind", "source", "call_id", "outcome", "count", "version", "created_at"}).
		AddRow("e2", "upsert", "push", "c1", "replaced", 1, int64(9), now).
		AddRow("e1", "upsert", "mutation", "c1", "replaced", 1, int64(4), now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, kind, source, call_id, outcome, count, version, created_at").
		WithArgs("c1", 10).
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	entries, err := repo.ListByCall(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(9), entries[0].Version)
	assert.Equal(t, "mutation", entries[1].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListByCallOrdersByTimeAcrossRestarts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// e2 was written after a restart, so its version is lower than e1's.
	now := time.Unix(1700000000, 0).UTC()
	rows := sqlmock.NewRows([]string{"id", "kind", "source", "call_id", "outcome", "count", "version", "created_at"}).
		AddRow("e2", "upsert", "push", "c1", "replaced", 1, int64(2), now).
		AddRow("e1", "upsert", "push", "c1", "replaced", 1, int64(40), now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, version DESC")).
		WithArgs("c1", 5).
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	entries, err := repo.ListByCall(context.Background(), "c1", 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, uint64(2), entries[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
