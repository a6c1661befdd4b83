// Package service provides the core reminder service that implements
// the dependencies required by the command router and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/nudge/internal/adapters/mq/queue"
	workerpool "github.com/okian/nudge/internal/adapters/mq/worker"
	repository "github.com/okian/nudge/internal/adapters/repository"
	"github.com/okian/nudge/internal/domain/dedupe"
	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/internal/domain/ordering"
	"github.com/okian/nudge/internal/domain/textdate"
	"github.com/okian/nudge/internal/notify"
	"github.com/okian/nudge/internal/scheduler"
	"github.com/okian/nudge/pkg/logger"
	"github.com/okian/nudge/pkg/metrics"
)

// Default service configuration.
const (
	defaultStorePath   = "nudge.json"
	defaultQueueSize   = 1024
	defaultWorkerCount = 2
	defaultGuardSize   = 10000
)

// Service implements the reminder system: event storage, display
// ordering, user settings, and the background notification pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	guard   dedupe.Guard
	queue   eventqueue.Queue
	sender  notify.Sender
	pool    *workerpool.Pool
	sweeper *scheduler.Sweeper

	// Configuration
	storePath     string
	webhookURL    string
	queueSize     int
	workerCount   int
	guardSize     int
	sweepSchedule string
	now           func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorePath sets the path of the flat-file store.
func WithStorePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storePath = path
		}
	}
}

// WithWebhookURL sets the delivery webhook. When empty, notifications
// go to the log sender.
func WithWebhookURL(url string) Option {
	return func(s *Service) {
		s.webhookURL = url
	}
}

// WithQueueSize sets the capacity of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of delivery worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithGuardSize sets the capacity of the fired-notification guard.
func WithGuardSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.guardSize = size
		}
	}
}

// WithSweepSchedule overrides the cron schedule of the reminder sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.sweepSchedule = spec
		}
	}
}

// WithSender sets a custom notification sender, mainly for tests.
func WithSender(sender notify.Sender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithClock swaps the time source used for year inference and the
// sweep, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storePath:   defaultStorePath,
		queueSize:   defaultQueueSize,
		workerCount: defaultWorkerCount,
		guardSize:   defaultGuardSize,
		now:         time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting reminder service...")

	s.store = repository.NewFileStore(s.storePath,
		repository.WithLogger(s.logger.Named("store")),
	)
	s.guard = dedupe.NewMemoryGuard(
		dedupe.WithMaxSize(s.guardSize),
	)
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	if s.sender == nil {
		if s.webhookURL != "" {
			s.sender = notify.NewWebhookSender(s.webhookURL)
		} else {
			s.sender = notify.NewLogSender()
		}
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.sender)
	s.pool.Start(ctx)

	s.sweeper = scheduler.New(s.store, s.queue, s.guard,
		scheduler.WithSchedule(s.sweepSchedule),
		scheduler.WithClock(s.now),
	)
	if err := s.sweeper.Start(ctx); err != nil {
		s.pool.Stop()
		return fmt.Errorf("start sweep: %w", err)
	}

	metrics.UpdateWorkerCount(s.workerCount)

	s.started = true
	s.logger.Info(ctx, "reminder service started",
		logger.String("store", s.storePath),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("guardSize", s.guardSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping reminder service...")

	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	if q, ok := s.queue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.pool != nil {
		s.pool.Stop()
	}

	s.started = false
	s.logger.Info(context.Background(), "reminder service stopped")
}

// AddResult reports the outcome of adding one event.
type AddResult struct {
	Event model.Event
	// First is set when the user's active list was empty before this
	// add, so the caller can include a usage primer in the reply. A user
	// who clears the list and starts over sees the primer again.
	First bool
}

// Add parses the text for an embedded date, strips any year suffix, and
// stores the event. Duplicate (text, date) pairs surface as
// repository.ErrDuplicate.
func (s *Service) Add(ctx context.Context, user, text string) (AddResult, error) {
	store, err := s.storeHandle()
	if err != nil {
		return AddResult{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return AddResult{}, ErrEmptyText
	}

	profile, err := store.Profile(ctx, user)
	if err != nil {
		return AddResult{}, fmt.Errorf("check profile: %w", err)
	}
	first := len(profile.Events) == 0

	e := s.makeEvent(text)
	if err := store.AddEvent(ctx, user, e); err != nil {
		return AddResult{}, err
	}

	s.logger.Debug(ctx, "event added",
		logger.String("user", user),
		logger.String("text", e.Text),
		logger.Bool("dated", e.Dated()),
	)
	return AddResult{Event: e, First: first}, nil
}

// List returns the user's active events in display order: dated events
// first in chronological order, then undated events in natural order.
func (s *Service) List(ctx context.Context, user string) ([]model.Event, error) {
	store, err := s.storeHandle()
	if err != nil {
		return nil, err
	}
	events, err := store.ListEvents(ctx, user)
	if err != nil {
		return nil, err
	}
	return ordering.Sorted(events), nil
}

// Backlog returns the user's archived events in display order. A
// non-empty filter restricts the result to dated events matching the
// given year and/or month abbreviation, e.g. "2025", "nov", "nov 2025".
func (s *Service) Backlog(ctx context.Context, user, filter string) ([]model.Event, error) {
	store, err := s.storeHandle()
	if err != nil {
		return nil, err
	}
	events, err := store.ListBacklog(ctx, user)
	if err != nil {
		return nil, err
	}
	events = ordering.Sorted(events)

	filter = strings.TrimSpace(filter)
	if filter == "" {
		return events, nil
	}

	wantYear, wantMonth, err := parseBacklogFilter(filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.Date == nil {
			continue
		}
		if wantYear != 0 && e.Date.Year != wantYear {
			continue
		}
		if wantMonth != 0 && e.Date.Month != wantMonth {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// RemovedItem reports the outcome of removing one display position.
type RemovedItem struct {
	Position int         // requested 1-based display position
	Event    model.Event // valid only when Err is nil
	Err      error
}

// Remove archives the events at the given 1-based display positions.
// The store resolves all positions against one consistent view of the
// list, so removing positions 2 and 1 together removes the events shown
// at 2 and 1, regardless of request order. Outcomes are reported per
// position.
func (s *Service) Remove(ctx context.Context, user string, positions []int) ([]RemovedItem, error) {
	store, err := s.storeHandle()
	if err != nil {
		return nil, err
	}
	results, err := store.RemoveEventsAt(ctx, user, positions)
	if err != nil {
		return nil, err
	}

	items := make([]RemovedItem, len(results))
	for i, r := range results {
		items[i] = RemovedItem{Position: r.Position, Event: r.Removed, Err: r.Err}
		if r.Err != nil {
			items[i].Err = ErrBadIndex
		}
	}
	return items, nil
}

// Edit replaces the event at the given 1-based display position with
// new text, re-running date extraction on it.
func (s *Service) Edit(ctx context.Context, user string, position int, text string) (model.Event, error) {
	store, err := s.storeHandle()
	if err != nil {
		return model.Event{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Event{}, ErrEmptyText
	}

	e, err := store.RewriteEventAt(ctx, user, position, func(model.Event) (model.Event, error) {
		return s.makeEvent(text), nil
	})
	if errors.Is(err, repository.ErrOutOfRange) {
		return model.Event{}, ErrBadIndex
	}
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// Append extends the event at the given 1-based display position with
// extra text, re-running date extraction on the combined text.
func (s *Service) Append(ctx context.Context, user string, position int, extra string) (model.Event, error) {
	store, err := s.storeHandle()
	if err != nil {
		return model.Event{}, err
	}
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return model.Event{}, ErrEmptyText
	}

	e, err := store.RewriteEventAt(ctx, user, position, func(old model.Event) (model.Event, error) {
		return s.makeEvent(old.Text + " " + extra), nil
	})
	if errors.Is(err, repository.ErrOutOfRange) {
		return model.Event{}, ErrBadIndex
	}
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// ReminderTime returns the user's daily digest time as HH:MM.
func (s *Service) ReminderTime(ctx context.Context, user string) (string, error) {
	store, err := s.storeHandle()
	if err != nil {
		return "", err
	}
	p, err := store.Profile(ctx, user)
	if err != nil {
		return "", err
	}
	return p.ReminderTime, nil
}

// SetReminderTime validates and stores the user's daily digest time.
func (s *Service) SetReminderTime(ctx context.Context, user, hhmm string) error {
	store, err := s.storeHandle()
	if err != nil {
		return err
	}
	c, err := textdate.ParseHHMM(hhmm)
	if err != nil {
		return ErrBadTime
	}
	return store.SetReminderTime(ctx, user, c.String())
}

// Timezone returns the user's fixed UTC offset in hours.
func (s *Service) Timezone(ctx context.Context, user string) (float64, error) {
	store, err := s.storeHandle()
	if err != nil {
		return 0, err
	}
	p, err := store.Profile(ctx, user)
	if err != nil {
		return 0, err
	}
	return p.Timezone, nil
}

// SetTimezone validates and stores the user's fixed UTC offset.
// Fractional offsets are accepted; the value must lie in -12..14.
func (s *Service) SetTimezone(ctx context.Context, user string, offset float64) error {
	store, err := s.storeHandle()
	if err != nil {
		return err
	}
	if offset < model.MinTimezoneOffset || offset > model.MaxTimezoneOffset {
		return ErrBadTimezone
	}
	return store.SetTimezone(ctx, user, offset)
}

// Sweep runs one scheduler pass immediately, outside the cron cadence.
func (s *Service) Sweep(ctx context.Context) error {
	s.mu.RLock()
	sweeper := s.sweeper
	s.mu.RUnlock()
	if sweeper == nil {
		return ErrNotStarted
	}
	sweeper.Sweep(ctx)
	return nil
}

// Stats returns a point-in-time view of the pipeline for monitoring.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"guardSize":   s.guardSize,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["firedGuard"] = s.guard.Size()
	}

	return stats
}

// storeHandle returns the store under the read lock, or ErrNotStarted.
func (s *Service) storeHandle() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// makeEvent resolves the event's date from its text. When a date is
// found, any explicit year moves out of the text and into the date.
func (s *Service) makeEvent(text string) model.Event {
	if d, ok := textdate.ExtractDate(text, s.now()); ok {
		return model.Event{Text: strings.TrimSpace(textdate.StripYear(text)), Date: &d}
	}
	return model.Event{Text: text}
}

// parseBacklogFilter interprets a backlog filter as a year, a month
// abbreviation, or both in either order.
func parseBacklogFilter(filter string) (int, time.Month, error) {
	var year int
	var month time.Month
	for _, tok := range strings.Fields(filter) {
		if n, err := strconv.Atoi(tok); err == nil && n >= 1000 && n <= 9999 {
			year = n
			continue
		}
		if m, ok := textdate.MonthAbbrev(tok); ok {
			month = m
			continue
		}
		return 0, 0, fmt.Errorf("backlog filter %q: want a year, a month, or both", filter)
	}
	return year, month, nil
}
