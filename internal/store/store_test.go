package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"call-inbox/internal/calls"
	"call-inbox/internal/view"
)

func makeCall(id string, at time.Time, ct calls.CallType, dir calls.Direction) calls.Call {
	return calls.Call{
		ID:        id,
		CallType:  ct,
		Direction: dir,
		CreatedAt: at,
		Duration:  60,
		From:      "+33 1 00 00 00 00",
		To:        "+33 1 00 00 00 01",
	}
}

func seed() []calls.Call {
	d1 := time.Date(2021, 12, 31, 19, 15, 40, 0, time.UTC)
	d2 := time.Date(2022, 1, 2, 22, 15, 54, 0, time.UTC)
	d3 := time.Date(2022, 1, 5, 9, 15, 20, 0, time.UTC)
	return []calls.Call{
		makeCall("a1", d1, calls.CallTypeAnswered, calls.DirectionOutbound),
		makeCall("a2", d1.Add(time.Minute), calls.CallTypeMissed, calls.DirectionInbound),
		makeCall("b1", d2, calls.CallTypeAnswered, calls.DirectionInbound),
		makeCall("c1", d3, calls.CallTypeMissed, calls.DirectionInbound),
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, ch Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
	return r.err
}

func (r *fakeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

func idsOf(list []calls.Call) string {
	out := ""
	for i, c := range list {
		if i > 0 {
			out += ","
		}
		out += c.ID
	}
	return out
}

func TestLoad_ReplacesWholesale(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := idsOf(s.Records()); got != "a1,a2,b1,c1" {
		t.Fatalf("unexpected order %s", got)
	}

	second := seed()[2:]
	if err := s.Load(ctx, SourceBulkLoad, second); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := idsOf(s.Records()); got != "b1,c1" {
		t.Fatalf("expected reload to replace sequence, got %s", got)
	}
	if len(s.Index()) != 2 {
		t.Fatalf("expected index recomputed for 2 days, got %d", len(s.Index()))
	}
	if _, ok := s.Get("a1"); ok {
		t.Fatalf("a1 should be gone after reload")
	}
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := s.Records()

	archived := before[1]
	archived.IsArchived = true
	outcome, err := s.Upsert(ctx, SourceMutation, archived)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if outcome != OutcomeReplaced {
		t.Fatalf("expected replaced, got %s", outcome)
	}

	after := s.Records()
	if len(after) != len(before) {
		t.Fatalf("length changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if i == 1 {
			if !after[i].IsArchived || after[i].ID != "a2" {
				t.Fatalf("index 1 not replaced: %+v", after[i])
			}
			continue
		}
		if after[i].ID != before[i].ID || after[i].IsArchived != before[i].IsArchived {
			t.Fatalf("sibling at %d changed: %+v", i, after[i])
		}
	}

	bucket := s.Index()["2021-12-31"]
	if len(bucket) != 2 || !bucket[1].IsArchived {
		t.Fatalf("index not recomputed after upsert: %+v", bucket)
	}
}

func TestUpsert_AppendsUnknownID(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	last := s.Records()[3]

	fresh := makeCall("d1", time.Date(2022, 1, 6, 8, 0, 0, 0, time.UTC), calls.CallTypeVoicemail, calls.DirectionInbound)
	outcome, err := s.Upsert(ctx, SourcePush, fresh)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if outcome != OutcomeAppended {
		t.Fatalf("expected appended, got %s", outcome)
	}

	recs := s.Records()
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	if recs[3].ID != last.ID {
		t.Fatalf("previous last element was overwritten: %+v", recs[3])
	}
	if recs[4].ID != "d1" {
		t.Fatalf("expected d1 appended at end, got %s", recs[4].ID)
	}
	if _, ok := s.Index()["2022-01-06"]; !ok {
		t.Fatalf("expected new day bucket")
	}
}

func TestUpsert_OnEmptyStoreAppends(t *testing.T) {
	s := New()
	c := seed()[0]
	outcome, err := s.Upsert(context.Background(), SourcePush, c)
	if err != nil || outcome != OutcomeAppended {
		t.Fatalf("expected append on empty store, got %s %v", outcome, err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
}

func TestUpsert_RejectsMalformedWithoutMutation(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	v := s.Version()

	bad := seed()[0]
	bad.CreatedAt = time.Time{}
	if _, err := s.Upsert(ctx, SourcePush, bad); !errors.Is(err, calls.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if s.Version() != v {
		t.Fatalf("version moved on rejected upsert")
	}
	if got := idsOf(s.Records()); got != "a1,a2,b1,c1" {
		t.Fatalf("records changed on rejected upsert: %s", got)
	}
}

func TestLoad_RejectsMalformedAndDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}

	bad := seed()
	bad[2].Direction = ""
	if err := s.Load(ctx, SourceBulkLoad, bad); !errors.Is(err, calls.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	dup := seed()
	dup[3].ID = "a1"
	if err := s.Load(ctx, SourceBulkLoad, dup); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	if got := idsOf(s.Records()); got != "a1,a2,b1,c1" {
		t.Fatalf("failed load mutated the store: %s", got)
	}
}

func TestUnknownCallTypeIsStoredAsUnknown(t *testing.T) {
	s := New()
	c := seed()[0]
	c.CallType = "conference"
	if _, err := s.Upsert(context.Background(), SourcePush, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ := s.Get(c.ID)
	if got.CallType != calls.CallTypeUnknown {
		t.Fatalf("expected unknown, got %q", got.CallType)
	}
}

func TestRecordsAreSnapshots(t *testing.T) {
	s := New()
	ctx := context.Background()
	records := seed()
	records[0].Notes = []calls.Note{{ID: "n1", Content: "hello"}}
	if err := s.Load(ctx, SourceBulkLoad, records); err != nil {
		t.Fatalf("load: %v", err)
	}

	// mutating the input after load must not leak in
	records[0].ID = "zz"
	records[0].Notes[0].Content = "leaked"

	snap := s.Records()
	snap[0].Notes[0].Content = "changed"
	snap[1].ID = "changed"

	got := s.Records()
	if got[0].ID != "a1" || got[0].Notes[0].Content != "hello" || got[1].ID != "a2" {
		t.Fatalf("store state leaked through snapshot: %+v", got[:2])
	}

	idx := s.Index()
	idx["2021-12-31"][0].ID = "changed"
	if s.Index()["2021-12-31"][0].ID != "a1" {
		t.Fatalf("index leaked through snapshot")
	}
}

func TestSnapshotRecordsAndIndexAgree(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := s.Snapshot()
	want := view.GroupByDay(snap.Records)
	if fmt.Sprint(want.Counts()) != fmt.Sprint(snap.Index.Counts()) {
		t.Fatalf("index out of sync: %v vs %v", want.Counts(), snap.Index.Counts())
	}
	if snap.Version != 1 {
		t.Fatalf("expected version 1, got %d", snap.Version)
	}
}

func TestRecorderAndSubscribersSeeChanges(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("journal down")}
	fixed := time.Unix(1700000000, 0)
	s := New(WithRecorder(rec), WithClock(func() time.Time { return fixed }))
	ch, cancel := s.Subscribe(4)
	defer cancel()

	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}
	upd := seed()[2]
	upd.IsArchived = true
	if _, err := s.Upsert(ctx, SourceMutation, upd); err != nil {
		t.Fatalf("upsert must not fail on journal error: %v", err)
	}

	changes := rec.all()
	if len(changes) != 2 {
		t.Fatalf("expected 2 recorded changes, got %d", len(changes))
	}
	if changes[0].Kind != ChangeLoad || changes[0].Count != 4 {
		t.Fatalf("unexpected load change: %+v", changes[0])
	}
	if changes[1].CallID != "b1" || changes[1].Outcome != OutcomeReplaced || changes[1].Source != SourceMutation {
		t.Fatalf("unexpected upsert change: %+v", changes[1])
	}
	if !changes[1].At.Equal(fixed) {
		t.Fatalf("expected clock time, got %v", changes[1].At)
	}

	first := <-ch
	second := <-ch
	if first.Version != 1 || second.Version != 2 {
		t.Fatalf("unexpected versions: %d, %d", first.Version, second.Version)
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	// publishing after cancel must not panic
	if _, err := s.Upsert(context.Background(), SourcePush, seed()[0]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestConcurrentUpsertsKeepIDsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, SourceBulkLoad, seed()); err != nil {
		t.Fatalf("load: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c := seed()[i%4]
			c.Duration = i
			if _, err := s.Upsert(ctx, SourcePush, c); err != nil {
				t.Errorf("push upsert: %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			c := seed()[i%4]
			c.IsArchived = true
			if _, err := s.Upsert(ctx, SourceMutation, c); err != nil {
				t.Errorf("mutation upsert: %v", err)
			}
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	if got := idsOf(s.Records()); got != "a1,a2,b1,c1" {
		t.Fatalf("concurrent upserts broke order or uniqueness: %s", got)
	}
	snap := s.Snapshot()
	total := 0
	for _, b := range snap.Index {
		total += len(b)
	}
	if total != 4 {
		t.Fatalf("index out of sync after concurrent upserts: %d", total)
	}
}
