package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"call-inbox/internal/calls"
	"call-inbox/internal/metrics"
	"call-inbox/internal/view"
)

var ErrDuplicateID = errors.New("store: duplicate call id")

// Source names where an event came from.
type Source string

const (
	SourceBulkLoad Source = "bulk_load"
	SourceMutation Source = "mutation"
	SourcePush     Source = "push"
	SourceCache    Source = "cache"
)

// Outcome says how an upsert merged.
type Outcome string

const (
	OutcomeReplaced Outcome = "replaced"
	OutcomeAppended Outcome = "appended"
	OutcomeLoaded   Outcome = "loaded"
)

// ChangeKind distinguishes wholesale loads from single-record upserts.
type ChangeKind string

const (
	ChangeLoad   ChangeKind = "load"
	ChangeUpsert ChangeKind = "upsert"
)

// Change describes one applied mutation of the store.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Source  Source     `json:"source"`
	CallID  string     `json:"call_id,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Count   int        `json:"count"`
	Version uint64     `json:"version"`
	At      time.Time  `json:"at"`
}

// Recorder receives every applied change. Recording is best-effort:
// errors are logged and never undo the change.
type Recorder interface {
	Record(ctx context.Context, ch Change) error
}

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	Records []calls.Call
	Index   view.Index
	Version uint64
}

// Store is the authoritative, ordered call sequence plus its day index.
//
// Invariants:
// - ids are unique within records
// - an upsert of a known id replaces in place, never moves it
// - index always equals view.GroupByDay(records) when the lock is free
//
// There is no version arbitration between sources: the last applied upsert wins.
type Store struct {
	mu      sync.RWMutex
	records []calls.Call
	pos     map[string]int
	index   view.Index
	version uint64

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int

	recorder Recorder
	metrics  *metrics.EngineMetrics
	log      *slog.Logger
	clock    func() time.Time
}

type Option func(*Store)

func WithRecorder(r Recorder) Option { return func(s *Store) { s.recorder = r } }

func WithMetrics(m *metrics.EngineMetrics) Option { return func(s *Store) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.clock = now } }

func New(opts ...Option) *Store {
	s := &Store{
		pos:   map[string]int{},
		index: view.Index{},
		subs:  map[int]chan Change{},
		log:   slog.Default(),
		clock: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the whole sequence. Nothing changes if any record is
// malformed or an id repeats.
func (s *Store) Load(ctx context.Context, source Source, records []calls.Call) error {
	start := time.Now()

	next := make([]calls.Call, len(records))
	pos := make(map[string]int, len(records))
	for i, c := range records {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			s.metrics.ObserveRejected(string(source))
			return fmt.Errorf("load record %d: %w", i, err)
		}
		if prev, dup := pos[c.ID]; dup {
			s.metrics.ObserveRejected(string(source))
			return fmt.Errorf("load record %d: %w: %s (first at %d)", i, ErrDuplicateID, c.ID, prev)
		}
		pos[c.ID] = i
		next[i] = c
	}

	s.mu.Lock()
	s.records = next
	s.pos = pos
	s.index = view.GroupByDay(next)
	s.version++
	ch := Change{Kind: ChangeLoad, Source: source, Outcome: OutcomeLoaded, Count: len(next), Version: s.version, At: s.clock().UTC()}
	s.mu.Unlock()

	s.metrics.ObserveApplied(string(source), string(OutcomeLoaded), len(next), time.Since(start).Seconds())
	s.afterApply(ctx, ch)
	return nil
}

// Upsert replaces the record with the same id in place, or appends it
// when the id is not present yet.
func (s *Store) Upsert(ctx context.Context, source Source, record calls.Call) (Outcome, error) {
	start := time.Now()

	record = record.Normalize()
	if err := record.Validate(); err != nil {
		s.metrics.ObserveRejected(string(source))
		return "", fmt.Errorf("upsert: %w", err)
	}

	s.mu.Lock()
	var outcome Outcome
	if i, found := s.pos[record.ID]; found {
		s.records[i] = record
		outcome = OutcomeReplaced
	} else {
		s.pos[record.ID] = len(s.records)
		s.records = append(s.records, record)
		outcome = OutcomeAppended
	}
	s.index = view.GroupByDay(s.records)
	s.version++
	n := len(s.records)
	ch := Change{Kind: ChangeUpsert, Source: source, CallID: record.ID, Outcome: outcome, Count: 1, Version: s.version, At: s.clock().UTC()}
	s.mu.Unlock()

	s.metrics.ObserveApplied(string(source), string(outcome), n, time.Since(start).Seconds())
	s.afterApply(ctx, ch)
	return outcome, nil
}

// Records returns a deep copy of the authoritative sequence.
func (s *Store) Records() []calls.Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calls.CloneAll(s.records)
}

// Index returns a deep copy of the day index.
func (s *Store) Index() view.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Clone()
}

// Snapshot copies records and index under one lock so they always agree.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Records: calls.CloneAll(s.records),
		Index:   s.index.Clone(),
		Version: s.version,
	}
}

func (s *Store) Get(id string) (calls.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.pos[id]
	if !ok {
		return calls.Call{}, false
	}
	return s.records[i].Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel of applied changes. Sends never block the
// store; a full channel drops the notification. Call cancel to unsubscribe.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) afterApply(ctx context.Context, ch Change) {
	s.log.Debug("store change applied",
		"kind", ch.Kind,
		"source", ch.Source,
		"call_id", ch.CallID,
		"outcome", ch.Outcome,
		"version", ch.Version,
	)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, ch); err != nil {
			s.log.Warn("change journal write failed", "err", err, "version", ch.Version)
		}
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- ch:
		default:
		}
	}
}
