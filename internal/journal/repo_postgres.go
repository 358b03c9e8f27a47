package journal

import (
	"context"
	"database/sql"
	"errors"

	"call-inbox/pkg/utils"
)

// PostgresRepo stores entries in call_journal. Open the *sql.DB with the
// pgx stdlib driver (see utils.OpenPostgres).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// Migrate creates the table and index if they do not exist.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if r.db == nil {
		return errors.New("journal: db is nil")
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const table = `
CREATE TABLE IF NOT EXISTS call_journal (
  id         TEXT PRIMARY KEY,
  kind       TEXT NOT NULL,
  source     TEXT NOT NULL,
  call_id    TEXT NOT NULL DEFAULT '',
  outcome    TEXT NOT NULL,
  count      INTEGER NOT NULL,
  version    BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)
`
		if _, err := tx.ExecContext(ctx, table); err != nil {
			return err
		}
		const idx = `CREATE INDEX IF NOT EXISTS call_journal_call_id_idx ON call_journal (call_id, created_at DESC, version DESC)`
		_, err := tx.ExecContext(ctx, idx)
		return err
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO call_journal (id, kind, source, call_id, outcome, count, version, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Kind,
		e.Source,
		e.CallID,
		e.Outcome,
		e.Count,
		int64(e.Version),
		e.CreatedAt,
	)
	return err
}

// ListByCall returns entries newest first. Store versions restart with the
// process, so created_at leads the ordering and version only breaks ties.
func (r *PostgresRepo) ListByCall(ctx context.Context, callID string, limit int) ([]Entry, error) {
	const q = `
SELECT id, kind, source, call_id, outcome, count, version, created_at
FROM call_journal
WHERE call_id = $1
ORDER BY created_at DESC, version DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, callID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			version int64
		)
		if err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.Source,
			&e.CallID,
			&e.Outcome,
			&e.Count,
			&version,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Version = uint64(version)
		out = append(out, e)
	}
	return out, rows.Err()
}
