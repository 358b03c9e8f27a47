package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"call-inbox/internal/calls"
	"call-inbox/internal/journal"
	"call-inbox/internal/store"
	"call-inbox/internal/upstream"
	"call-inbox/internal/view"
)

var (
	ErrNotFound        = errors.New("inbox: call not found")
	ErrInvalidArgument = errors.New("inbox: invalid argument")
)

// Upstream is the remote source of truth. *upstream.Client implements it.
type Upstream interface {
	FetchCalls(ctx context.Context, limit int) (upstream.Page, error)
	ToggleArchive(ctx context.Context, id string) (calls.Call, error)
	AddNote(ctx context.Context, id, content string) (calls.Call, error)
}

// Cache persists snapshots between restarts. *cache.RedisSnapshots implements it.
type Cache interface {
	Save(ctx context.Context, version uint64, list []calls.Call) error
	Restore(ctx context.Context) ([]calls.Call, uint64, error)
}

// History lists journal entries for a call. *journal.Service implements it.
type History interface {
	History(ctx context.Context, callID string, limit int) ([]journal.Entry, error)
}

type Options struct {
	FetchLimit int
	PageSize   int
	Cache      Cache
	History    History
	Logger     *slog.Logger
}

// Service is the application layer behind the view API and CLI. All writes
// go through the intake; reads come from store snapshots.
type Service struct {
	up      Upstream
	intake  *store.Intake
	store   *store.Store
	cache   Cache
	history History
	log     *slog.Logger

	fetchLimit int
	pageSize   int
}

func NewService(up Upstream, intake *store.Intake, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = upstream.DefaultFetchLimit
	}
	return &Service{
		up:         up,
		intake:     intake,
		store:      intake.Store(),
		cache:      opts.Cache,
		history:    opts.History,
		log:        log,
		fetchLimit: fetchLimit,
		pageSize:   pageSize,
	}
}

// Refresh replaces the local sequence with a fresh bulk fetch.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.up == nil {
		return 0, errors.New("inbox: upstream not configured")
	}
	page, err := s.up.FetchCalls(ctx, s.fetchLimit)
	if err != nil {
		return 0, fmt.Errorf("inbox: fetch calls: %w", err)
	}
	if _, err := s.intake.Submit(ctx, store.LoadEvent(store.SourceBulkLoad, page.Nodes)); err != nil {
		return 0, err
	}
	s.log.Info("calls refreshed", "count", len(page.Nodes), "total_count", page.TotalCount, "has_next_page", page.HasNextPage)
	return len(page.Nodes), nil
}

// Warm loads the cached snapshot, if any, into an empty store.
func (s *Service) Warm(ctx context.Context) (bool, error) {
	if s.cache == nil || s.store.Len() > 0 {
		return false, nil
	}
	list, version, err := s.cache.Restore(ctx)
	if err != nil {
		return false, err
	}
	if _, err := s.intake.Submit(ctx, store.LoadEvent(store.SourceCache, list)); err != nil {
		return false, err
	}
	s.log.Info("store warmed from cache", "count", len(list), "cached_version", version)
	return true, nil
}

// ToggleArchive flips the archive flag upstream and applies the canonical
// record returned. Nothing changes locally if the request fails.
func (s *Service) ToggleArchive(ctx context.Context, id string) (calls.Call, error) {
	if _, ok := s.store.Get(id); !ok {
		return calls.Call{}, ErrNotFound
	}
	rec, err := s.up.ToggleArchive(ctx, id)
	if err != nil {
		return calls.Call{}, fmt.Errorf("inbox: toggle archive %s: %w", id, err)
	}
	return s.applyMutation(ctx, rec)
}

func (s *Service) AddNote(ctx context.Context, id, content string) (calls.Call, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return calls.Call{}, fmt.Errorf("%w: note content is empty", ErrInvalidArgument)
	}
	if _, ok := s.store.Get(id); !ok {
		return calls.Call{}, ErrNotFound
	}
	rec, err := s.up.AddNote(ctx, id, content)
	if err != nil {
		return calls.Call{}, fmt.Errorf("inbox: add note %s: %w", id, err)
	}
	return s.applyMutation(ctx, rec)
}

func (s *Service) applyMutation(ctx context.Context, rec calls.Call) (calls.Call, error) {
	if _, err := s.intake.Submit(ctx, store.MutationEvent(rec)); err != nil {
		return calls.Call{}, err
	}
	return rec.Normalize(), nil
}

// Push implements push.Sink.
func (s *Service) Push(ctx context.Context, c calls.Call) error {
	_, err := s.intake.Submit(ctx, store.PushEvent(c))
	return err
}

// Query describes one list request. Day is the current selection and
// SelectDay a new pick toggled against it. Page, when set, overrides Offset.
type Query struct {
	Mode      view.Mode
	Day       string
	SelectDay string
	Filters   view.Filters
	PageSize  int
	Offset    int
	Page      *int
}

type Result struct {
	view.Page
	Mode    view.Mode    `json:"mode"`
	Day     string       `json:"day,omitempty"`
	Filters view.Filters `json:"filters"`
	Version uint64       `json:"version"`
}

// View projects and paginates one consistent snapshot.
func (s *Service) View(q Query) Result {
	snap := s.store.Snapshot()

	mode := q.Mode
	if mode != view.ModeGroupedByDay {
		mode = view.ModeUngrouped
	}
	day := q.Day
	if q.SelectDay != "" {
		day = view.ToggleDay(day, q.SelectDay)
	}
	size := q.PageSize
	if size <= 0 {
		size = s.pageSize
	}

	filtered := view.Project(snap.Records, snap.Index, mode, day, q.Filters)
	offset := q.Offset
	if q.Page != nil {
		offset = view.PageOffset(*q.Page, size, len(filtered))
	}

	return Result{
		Page:    view.Paginate(filtered, size, offset),
		Mode:    mode,
		Day:     day,
		Filters: q.Filters,
		Version: snap.Version,
	}
}

// Days lists the populated days with their call counts, ascending.
func (s *Service) Days() []view.DayCount {
	return s.store.Index().Counts()
}

func (s *Service) Summary() view.Summary {
	return view.Summarize(s.store.Records())
}

func (s *Service) Len() int { return s.store.Len() }

func (s *Service) Get(id string) (calls.Call, error) {
	c, ok := s.store.Get(id)
	if !ok {
		return calls.Call{}, ErrNotFound
	}
	return c, nil
}

// History returns the journal entries for a call, newest first.
func (s *Service) History(ctx context.Context, id string, limit int) ([]journal.Entry, error) {
	if s.history == nil {
		return []journal.Entry{}, nil
	}
	if _, ok := s.store.Get(id); !ok {
		return nil, ErrNotFound
	}
	return s.history.History(ctx, id, limit)
}

// PersistOnChange saves a snapshot to the cache after every store change
// until ctx is done. Cache failures are logged and skipped.
func (s *Service) PersistOnChange(ctx context.Context) {
	if s.cache == nil {
		return
	}
	changes, cancel := s.store.Subscribe(16)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			snap := s.store.Snapshot()
			if err := s.cache.Save(ctx, snap.Version, snap.Records); err != nil {
				s.log.Warn("snapshot save failed", "version", snap.Version, "err", err)
			}
		}
	}
}
