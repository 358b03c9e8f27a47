package journal

import (
	"context"
	"errors"
	"time"

	"call-inbox/internal/store"

	"github.com/google/uuid"
)

// Repository is the persistence contract for journal entries.
//
// It MUST be append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	ListByCall(ctx context.Context, callID string, limit int) ([]Entry, error)
}

var ErrInvalidEntry = errors.New("journal: invalid entry")

const defaultHistoryLimit = 50

// Service records store changes. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("journal: repository not configured")
	}
	if e.Kind == "" || e.Source == "" || e.Version == 0 {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record implements store.Recorder.
func (s *Service) Record(ctx context.Context, ch store.Change) error {
	return s.Append(ctx, Entry{
		Kind:      string(ch.Kind),
		Source:    string(ch.Source),
		CallID:    ch.CallID,
		Outcome:   string(ch.Outcome),
		Count:     ch.Count,
		Version:   ch.Version,
		CreatedAt: ch.At,
	})
}

// History lists the changes that touched one call, newest first.
func (s *Service) History(ctx context.Context, callID string, limit int) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("journal: repository not configured")
	}
	if callID == "" {
		return nil, ErrInvalidEntry
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListByCall(ctx, callID, limit)
}
