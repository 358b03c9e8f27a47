package journal

import "time"

// Entry is an immutable, append-only record of one change applied to the
// call store.
//
// Invariants:
// - Entries are never updated or deleted.
// - Version is the store version produced by the change; it orders entries.
// - CallID is empty for bulk loads, which touch the whole sequence.
//
// Storage (Postgres): table call_journal, INSERT-only.
type Entry struct {
	ID string `json:"id" db:"id"`

	Kind    string `json:"kind" db:"kind"`
	Source  string `json:"source" db:"source"`
	CallID  string `json:"call_id,omitempty" db:"call_id"`
	Outcome string `json:"outcome" db:"outcome"`

	// Count is the number of records touched: 1 for upserts, the payload size for loads.
	Count   int    `json:"count" db:"count"`
	Version uint64 `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
