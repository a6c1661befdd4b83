// Package scheduler runs the per-minute reminder sweep. Each tick takes
// one bulk snapshot of the store, computes per-user trigger times in UTC
// from their fixed offsets, emits notification intents onto the delivery
// queue, and archives dated events whose datetime has elapsed.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/nudge/internal/domain/dedupe"
	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/internal/domain/ordering"
	"github.com/okian/nudge/internal/domain/textdate"
	"github.com/okian/nudge/pkg/logger"
	"github.com/okian/nudge/pkg/metrics"
)

// Default sweep configuration constants.
const (
	defaultSchedule = "* * * * *" // once per minute
	hourBeforeLead  = time.Hour
)

// Snapshotter supplies one bulk read of every profile per tick.
type Snapshotter interface {
	Snapshot(ctx context.Context) (map[string]model.Profile, error)
}

// Archiver moves an elapsed event to the backlog by value.
type Archiver interface {
	ArchiveEvent(ctx context.Context, user string, e model.Event) error
}

// StoreView bundles what the sweep needs from the store.
type StoreView interface {
	Snapshotter
	Archiver
}

// Enqueuer accepts notification intents for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, n model.Notification) bool
}

// Sweeper owns the periodic sweep.
type Sweeper struct {
	store    StoreView
	queue    Enqueuer
	guard    dedupe.Guard
	schedule string
	now      func() time.Time
	cron     *cron.Cron
	logger   logger.Logger
}

// Option applies a configuration option to the Sweeper.
type Option func(*Sweeper)

// WithSchedule overrides the cron schedule driving the sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithClock swaps the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the sweeper.
func WithLogger(l logger.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Sweeper over the given store, queue, and fired guard.
func New(store StoreView, queue Enqueuer, guard dedupe.Guard, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		queue:    queue,
		guard:    guard,
		schedule: defaultSchedule,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sweep")
	}
	return s
}

// Start schedules the sweep. Ticks run until Stop is called or ctx is
// canceled.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info(ctx, "sweep scheduled", logger.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep executes one pass over all users. A fault on one event or one
// user is logged and counted, never fatal to the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	metrics.RecordSweepTick()
	defer func() {
		metrics.ObserveSweepDuration(float64(time.Since(start).Milliseconds()))
	}()

	// Minute granularity: a trigger fires on exact minute equality, so a
	// tick that lands late within the minute still matches.
	nowUTC := s.now().UTC().Truncate(time.Minute)

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Error(ctx, "sweep snapshot failed", logger.Error(err))
		return
	}

	for user, profile := range snapshot {
		s.sweepUser(ctx, user, profile, nowUTC)
	}
}

// sweepUser evaluates one user's triggers against the tick instant.
func (s *Sweeper) sweepUser(ctx context.Context, user string, profile model.Profile, nowUTC time.Time) {
	offset := profile.Offset()
	localNow := nowUTC.Add(offset)

	reminder, err := textdate.ParseHHMM(profile.ReminderTime)
	if err != nil {
		metrics.RecordSweepFault()
		s.logger.Warn(ctx, "bad reminder time, using default",
			logger.String("user", user),
			logger.String("reminder_time", profile.ReminderTime),
			logger.Error(err),
		)
		reminder, _ = textdate.ParseHHMM(model.DefaultReminderTime)
	}
	atReminder := model.NewClock(localNow.Hour(), localNow.Minute()) == reminder

	if atReminder && len(profile.Events) > 0 {
		s.fire(ctx, model.Notification{
			UserID: user,
			Kind:   model.KindDigest,
			Body:   digestBody(profile.Events),
		}, fmt.Sprintf("%s|digest|%s", user, model.DateOf(localNow)))
	}

	localTomorrow := model.DateOf(localNow).AddDays(1)
	for _, e := range profile.Events {
		if err := s.sweepEvent(ctx, user, e, nowUTC, offset, atReminder, localTomorrow); err != nil {
			metrics.RecordSweepFault()
			s.logger.Warn(ctx, "event sweep fault",
				logger.String("user", user),
				logger.String("text", e.Text),
				logger.Error(err),
			)
		}
	}
}

// sweepEvent evaluates one event. Dated events without an embedded time
// get a day-before notice at the user's reminder time and are never
// auto-archived; dated events with a time get an hour-before notice and
// are archived once their datetime has elapsed.
func (s *Sweeper) sweepEvent(ctx context.Context, user string, e model.Event, nowUTC time.Time, offset time.Duration, atReminder bool, localTomorrow model.Date) error {
	if e.Date == nil {
		return nil
	}
	if !e.Date.Valid() {
		return fmt.Errorf("stored date %s is not a real day", e.Date)
	}

	clock, hasClock := textdate.ExtractClock(e.Text)
	if !hasClock {
		if atReminder && *e.Date == localTomorrow {
			s.fire(ctx, model.Notification{
				UserID: user,
				Kind:   model.KindDayBefore,
				Body:   fmt.Sprintf("Tomorrow: %s", e.Text),
			}, fmt.Sprintf("%s|day_before|%s|%s", user, e.Text, e.Date))
		}
		return nil
	}

	// Local wall-clock datetime to UTC via the fixed offset. 24:00 rolls
	// into midnight of the next day here by construction.
	eventUTC := e.Date.Time(time.UTC).Add(clock.Duration()).Add(-offset)

	if nowUTC.Equal(eventUTC.Add(-hourBeforeLead)) {
		s.fire(ctx, model.Notification{
			UserID: user,
			Kind:   model.KindHourBefore,
			Body:   fmt.Sprintf("In one hour: %s", e.Text),
		}, fmt.Sprintf("%s|hour_before|%s|%s", user, e.Text, e.Date))
	}

	if nowUTC.After(eventUTC) {
		if err := s.store.ArchiveEvent(ctx, user, e); err != nil {
			return fmt.Errorf("archive elapsed event: %w", err)
		}
		metrics.RecordEventArchived()
		s.logger.Info(ctx, "event archived",
			logger.String("user", user),
			logger.String("text", e.Text),
		)
	}
	return nil
}

// fire enqueues a notification unless its key already fired. The guard
// records first; an enqueue refusal rolls the key back, though by then
// the minute boundary has usually passed and the notification is simply
// missed, per the no-backfill policy.
func (s *Sweeper) fire(ctx context.Context, n model.Notification, key string) {
	if s.guard.SeenAndRecord(ctx, key) {
		return
	}
	n.ID = uuid.NewString()
	if !s.queue.Enqueue(ctx, n) {
		s.guard.Unrecord(ctx, key)
		s.logger.Warn(ctx, "notification dropped, queue refused",
			logger.String("user", n.UserID),
			logger.String("kind", string(n.Kind)),
		)
	}
}

// digestBody renders the daily digest in display order.
func digestBody(events []model.Event) string {
	var b strings.Builder
	b.WriteString("Your events for today:")
	for i, e := range ordering.Sorted(events) {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, e.Text))
	}
	return b.String()
}
