package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/internal/domain/ordering"
	"github.com/okian/nudge/pkg/logger"
	"github.com/okian/nudge/pkg/metrics"
)

// FileStore implements Store on a single JSON document: a top-level
// mapping from user id to profile. Every mutation reads the whole
// document, changes it in memory, and rewrites it through a temp file
// plus rename, so a crash mid-write can never leave a torn document on
// disk. A store-wide mutex serializes conflicting read-modify-write
// cycles.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger logger.Logger
}

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates a store backed by the JSON document at path. The
// document is created on first write; a missing or unreadable document
// reads as empty, never as an error.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:   path,
		logger: logger.Get().Named("filestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load reads the full document. Corruption is logged and treated as an
// empty store so the process keeps running.
func (s *FileStore) load(ctx context.Context) map[string]model.Profile {
	data := map[string]model.Profile{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(ctx, "store unreadable, starting empty",
				logger.String("path", s.path),
				logger.Error(err),
			)
		}
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn(ctx, "store corrupt, starting empty",
			logger.String("path", s.path),
			logger.Error(err),
		)
		return map[string]model.Profile{}
	}
	for user, p := range data {
		data[user] = normalize(p)
	}
	return data
}

// save rewrites the full document atomically.
func (s *FileStore) save(ctx context.Context, data map[string]model.Profile) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace store file: %w", err)
	}

	total := 0
	for _, p := range data {
		total += len(p.Events)
	}
	metrics.UpdateStoreUsers(len(data))
	metrics.UpdateStoreEvents(total)
	return nil
}

// mutate runs fn against the loaded document and persists the result
// when fn succeeds. The store mutex is held for the whole cycle.
func (s *FileStore) mutate(ctx context.Context, user string, fn func(p *model.Profile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load(ctx)
	p, ok := data[user]
	if !ok {
		p = model.NewProfile()
	}
	if err := fn(&p); err != nil {
		return err
	}
	data[user] = p
	return s.save(ctx, data)
}

// AddEvent appends an event to the user's active list.
func (s *FileStore) AddEvent(ctx context.Context, user string, e model.Event) error {
	return s.mutate(ctx, user, func(p *model.Profile) error {
		for _, existing := range p.Events {
			if existing.Equal(e) {
				return fmt.Errorf("add %q: %w", e.Text, ErrDuplicate)
			}
		}
		p.Events = append(p.Events, e)
		return nil
	})
}

// ListEvents returns the user's active events in storage order.
func (s *FileStore) ListEvents(ctx context.Context, user string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyEvents(s.load(ctx)[user].Events), nil
}

// RemoveEventsAt moves the events at the given 1-based display
// positions to the backlog. Positions are resolved under the store
// mutex against the list as loaded, so all of them refer to one
// consistent view even while other writers are active.
func (s *FileStore) RemoveEventsAt(ctx context.Context, user string, positions []int) ([]RemoveResult, error) {
	results := make([]RemoveResult, len(positions))
	err := s.mutate(ctx, user, func(p *model.Profile) error {
		// Resolve every position against the same pre-removal list.
		storage := make([]int, len(positions))
		order := make([]int, 0, len(positions))
		for i, pos := range positions {
			results[i] = RemoveResult{Position: pos}
			idx, ok := ordering.StorageIndex(p.Events, pos)
			if !ok {
				results[i].Err = ErrOutOfRange
				continue
			}
			storage[i] = idx
			results[i].Removed = p.Events[idx]
			order = append(order, i)
		}
		// Apply highest storage index first to keep the remaining ones
		// stable. A repeated position removes only once; the stable sort
		// keeps the earliest request as the one that succeeds.
		sort.SliceStable(order, func(a, b int) bool {
			return storage[order[a]] > storage[order[b]]
		})
		applied := map[int]bool{}
		for _, i := range order {
			idx := storage[i]
			if applied[idx] {
				results[i].Err = ErrOutOfRange
				results[i].Removed = model.Event{}
				continue
			}
			applied[idx] = true
			archive(p, p.Events[idx])
			p.Events = append(p.Events[:idx], p.Events[idx+1:]...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RewriteEventAt replaces the event at the given 1-based display
// position with the result of rewrite. The position resolves and the
// replacement lands in the same read-modify-write cycle, and the result
// may not collide with another active event.
func (s *FileStore) RewriteEventAt(ctx context.Context, user string, position int, rewrite func(model.Event) (model.Event, error)) (model.Event, error) {
	var updated model.Event
	err := s.mutate(ctx, user, func(p *model.Profile) error {
		idx, ok := ordering.StorageIndex(p.Events, position)
		if !ok {
			return fmt.Errorf("rewrite position %d: %w", position, ErrOutOfRange)
		}
		e, err := rewrite(p.Events[idx])
		if err != nil {
			return err
		}
		for i, existing := range p.Events {
			if i != idx && existing.Equal(e) {
				return fmt.Errorf("rewrite to %q: %w", e.Text, ErrDuplicate)
			}
		}
		p.Events[idx] = e
		updated = e
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return updated, nil
}

// ArchiveEvent moves the first active event equal to e to the backlog.
func (s *FileStore) ArchiveEvent(ctx context.Context, user string, e model.Event) error {
	return s.mutate(ctx, user, func(p *model.Profile) error {
		for i, existing := range p.Events {
			if existing.Equal(e) {
				archive(p, existing)
				p.Events = append(p.Events[:i], p.Events[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("archive %q: %w", e.Text, ErrNotFound)
	})
}

// ListBacklog returns the user's archived events in storage order.
func (s *FileStore) ListBacklog(ctx context.Context, user string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyEvents(s.load(ctx)[user].Backlog), nil
}

// SetReminderTime stores the user's daily digest time.
func (s *FileStore) SetReminderTime(ctx context.Context, user string, hhmm string) error {
	return s.mutate(ctx, user, func(p *model.Profile) error {
		p.ReminderTime = hhmm
		return nil
	})
}

// SetTimezone stores the user's fixed UTC offset.
func (s *FileStore) SetTimezone(ctx context.Context, user string, offset float64) error {
	return s.mutate(ctx, user, func(p *model.Profile) error {
		p.Timezone = offset
		return nil
	})
}

// Profile returns the user's profile, defaulted when the user is
// unknown.
func (s *FileStore) Profile(ctx context.Context, user string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load(ctx)
	p, ok := data[user]
	if !ok {
		return model.NewProfile(), nil
	}
	return copyProfile(p), nil
}

// Snapshot returns a copy of every profile for the sweep's bulk read.
func (s *FileStore) Snapshot(ctx context.Context) (map[string]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load(ctx)
	out := make(map[string]model.Profile, len(data))
	for user, p := range data {
		out[user] = copyProfile(p)
	}
	return out, nil
}

// archive appends e to the backlog unless an identical entry is already
// there. Archived duplicates of active events are fine; exact backlog
// duplicates are not.
func archive(p *model.Profile, e model.Event) {
	for _, existing := range p.Backlog {
		if existing.Equal(e) {
			return
		}
	}
	p.Backlog = append(p.Backlog, e)
}

// normalize fills defaults for profiles persisted by older documents
// with missing fields.
func normalize(p model.Profile) model.Profile {
	if p.Events == nil {
		p.Events = []model.Event{}
	}
	if p.Backlog == nil {
		p.Backlog = []model.Event{}
	}
	if p.ReminderTime == "" {
		p.ReminderTime = model.DefaultReminderTime
	}
	return p
}

func copyEvents(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	return out
}

func copyProfile(p model.Profile) model.Profile {
	p.Events = copyEvents(p.Events)
	p.Backlog = copyEvents(p.Backlog)
	return p
}
