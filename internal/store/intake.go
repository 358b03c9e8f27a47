package store

import (
	"context"
	"errors"
	"sync"

	"call-inbox/internal/calls"
)

var ErrIntakeClosed = errors.New("store: intake closed")

// EventKind tags the three update sources that feed the store.
type EventKind int

const (
	EventLoad EventKind = iota + 1
	EventMutation
	EventPush
)

func (k EventKind) String() string {
	switch k {
	case EventLoad:
		return "load"
	case EventMutation:
		return "mutation"
	case EventPush:
		return "push"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the intake loop.
type Event struct {
	Kind    EventKind
	Source  Source
	Records []calls.Call // EventLoad
	Record  calls.Call   // EventMutation, EventPush
}

// LoadEvent replaces the sequence with a bulk payload.
func LoadEvent(source Source, records []calls.Call) Event {
	return Event{Kind: EventLoad, Source: source, Records: records}
}

// MutationEvent carries the server's canonical record after a confirmed mutation.
func MutationEvent(record calls.Call) Event {
	return Event{Kind: EventMutation, Source: SourceMutation, Record: record}
}

// PushEvent carries a record delivered by the push channel.
func PushEvent(record calls.Call) Event {
	return Event{Kind: EventPush, Source: SourcePush, Record: record}
}

// Result reports how an event was applied.
type Result struct {
	Outcome Outcome
	Err     error
}

type envelope struct {
	ctx   context.Context
	event Event
	done  chan Result
}

// Intake serializes every store write through one goroutine, so events are
// applied strictly in the order they were delivered and each one finishes
// (merge plus index recompute) before the next starts.
type Intake struct {
	store *Store
	queue chan envelope

	stopOnce sync.Once
	stop     chan struct{}
	finished chan struct{}
}

func NewIntake(s *Store, buffer int) *Intake {
	if buffer <= 0 {
		buffer = 64
	}
	return &Intake{
		store:    s,
		queue:    make(chan envelope, buffer),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (in *Intake) Store() *Store { return in.store }

// Run applies queued events until ctx is done or Close is called.
func (in *Intake) Run(ctx context.Context) error {
	defer close(in.finished)
	for {
		select {
		case <-ctx.Done():
			in.Close()
			in.drain()
			return ctx.Err()
		case <-in.stop:
			in.drain()
			return nil
		case env := <-in.queue:
			env.done <- in.apply(env.ctx, env.event)
		}
	}
}

// Submit enqueues an event and waits until it has been applied.
func (in *Intake) Submit(ctx context.Context, ev Event) (Result, error) {
	env := envelope{ctx: ctx, event: ev, done: make(chan Result, 1)}

	select {
	case <-in.stop:
		return Result{}, ErrIntakeClosed
	default:
	}

	select {
	case in.queue <- env:
	case <-in.stop:
		return Result{}, ErrIntakeClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-env.done:
		return res, res.Err
	case <-in.finished:
		// Run exited; the event was applied during the final drain or never will be.
		select {
		case res := <-env.done:
			return res, res.Err
		default:
			return Result{}, ErrIntakeClosed
		}
	case <-ctx.Done():
		// The event stays queued and will still be applied; only the wait is abandoned.
		return Result{}, ctx.Err()
	}
}

// Close stops accepting events. Events already queued are still applied.
func (in *Intake) Close() {
	in.stopOnce.Do(func() { close(in.stop) })
}

func (in *Intake) drain() {
	for {
		select {
		case env := <-in.queue:
			env.done <- in.apply(env.ctx, env.event)
		default:
			return
		}
	}
}

func (in *Intake) apply(ctx context.Context, ev Event) Result {
	switch ev.Kind {
	case EventLoad:
		if err := in.store.Load(ctx, ev.Source, ev.Records); err != nil {
			return Result{Err: err}
		}
		return Result{Outcome: OutcomeLoaded}
	case EventMutation, EventPush:
		source := ev.Source
		if source == "" {
			source = SourcePush
			if ev.Kind == EventMutation {
				source = SourceMutation
			}
		}
		outcome, err := in.store.Upsert(ctx, source, ev.Record)
		return Result{Outcome: outcome, Err: err}
	default:
		return Result{Err: errors.New("store: unknown event kind " + ev.Kind.String())}
	}
}
