package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-inbox/internal/calls"
	"call-inbox/internal/store"
)

func TestService_AppendRequiresKindSourceVersion(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Entry{Source: "push", Version: 1}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if err := svc.Append(context.Background(), Entry{Kind: "upsert", Version: 1}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if err := svc.Append(context.Background(), Entry{Kind: "upsert", Source: "push"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestService_AppendFillsIDAndTime(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }

	if err := svc.Append(context.Background(), Entry{Kind: "upsert", Source: "push", CallID: "c1", Version: 3}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	entries := repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry")
	}
	if entries[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if !entries[0].CreatedAt.Equal(now) {
		t.Fatalf("expected clock time, got %v", entries[0].CreatedAt)
	}
}

func TestService_RecordsStoreChanges(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	s := store.New(store.WithRecorder(svc))
	ctx := context.Background()

	c := calls.Call{
		ID:        "c1",
		CallType:  calls.CallTypeMissed,
		Direction: calls.DirectionInbound,
		CreatedAt: time.Date(2022, 1, 2, 10, 0, 0, 0, time.UTC),
		From:      "+1",
		To:        "+2",
	}
	if err := s.Load(ctx, store.SourceBulkLoad, []calls.Call{c}); err != nil {
		t.Fatalf("load: %v", err)
	}
	c.IsArchived = true
	if _, err := s.Upsert(ctx, store.SourceMutation, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c.Notes = []calls.Note{{ID: "n1", Content: "hi"}}
	if _, err := s.Upsert(ctx, store.SourcePush, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if got := len(repo.Entries()); got != 3 {
		t.Fatalf("expected 3 entries, got %d", got)
	}

	hist, err := svc.History(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 entries for c1, got %d", len(hist))
	}
	if hist[0].Source != "push" || hist[0].Version != 3 {
		t.Fatalf("expected newest first, got %+v", hist[0])
	}
	if hist[1].Source != "mutation" || hist[1].Outcome != "replaced" {
		t.Fatalf("unexpected second entry: %+v", hist[1])
	}
}

func TestService_HistoryRequiresCallID(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.History(context.Background(), "", 10); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestService_NoRepository(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Append(context.Background(), Entry{Kind: "load", Source: "bulk_load", Version: 1}); err == nil {
		t.Fatalf("expected error without repository")
	}
}
