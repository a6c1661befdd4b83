package commands_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nudge/internal/adapters/repository"
	service "github.com/okian/nudge/internal/app"
	"github.com/okian/nudge/internal/commands"
	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeReminder scripts service responses and records calls.
type fakeReminder struct {
	events   []model.Event
	backlog  []model.Event
	addErr   error
	first    bool
	reminder string
	timezone float64

	gotText      string
	gotPositions []int
	gotFilter    string
	gotEdit      string
	gotAppend    string
	gotPosition  int
}

func (f *fakeReminder) Add(_ context.Context, _, text string) (service.AddResult, error) {
	f.gotText = text
	if f.addErr != nil {
		return service.AddResult{}, f.addErr
	}
	return service.AddResult{Event: model.Event{Text: text}, First: f.first}, nil
}

func (f *fakeReminder) List(_ context.Context, _ string) ([]model.Event, error) {
	return f.events, nil
}

func (f *fakeReminder) Backlog(_ context.Context, _, filter string) ([]model.Event, error) {
	f.gotFilter = filter
	return f.backlog, nil
}

func (f *fakeReminder) Remove(_ context.Context, _ string, positions []int) ([]service.RemovedItem, error) {
	f.gotPositions = positions
	items := make([]service.RemovedItem, len(positions))
	for i, pos := range positions {
		if pos < 1 || pos > len(f.events) {
			items[i] = service.RemovedItem{Position: pos, Err: service.ErrBadIndex}
			continue
		}
		items[i] = service.RemovedItem{Position: pos, Event: f.events[pos-1]}
	}
	return items, nil
}

func (f *fakeReminder) Edit(_ context.Context, _ string, position int, text string) (model.Event, error) {
	if position < 1 || position > len(f.events) {
		return model.Event{}, service.ErrBadIndex
	}
	f.gotPosition, f.gotEdit = position, text
	return model.Event{Text: text}, nil
}

func (f *fakeReminder) Append(_ context.Context, _ string, position int, extra string) (model.Event, error) {
	if position < 1 || position > len(f.events) {
		return model.Event{}, service.ErrBadIndex
	}
	f.gotPosition, f.gotAppend = position, extra
	return model.Event{Text: f.events[position-1].Text + " " + extra}, nil
}

func (f *fakeReminder) ReminderTime(_ context.Context, _ string) (string, error) {
	return f.reminder, nil
}

func (f *fakeReminder) SetReminderTime(_ context.Context, _, hhmm string) error {
	if hhmm == "25:00" {
		return service.ErrBadTime
	}
	f.reminder = hhmm
	return nil
}

func (f *fakeReminder) Timezone(_ context.Context, _ string) (float64, error) {
	return f.timezone, nil
}

func (f *fakeReminder) SetTimezone(_ context.Context, _ string, offset float64) error {
	if offset > 14 || offset < -12 {
		return service.ErrBadTimezone
	}
	f.timezone = offset
	return nil
}

func dated(text string, y int, m time.Month, d int) model.Event {
	date := model.NewDate(y, m, d)
	return model.Event{Text: text, Date: &date}
}

func TestDispatchAdd(t *testing.T) {
	convey.Convey("Given a command router", t, func() {
		fake := &fakeReminder{reminder: "03:30"}
		router := commands.New(fake)
		ctx := context.Background()

		convey.Convey("When an add command arrives", func() {
			reply := router.Dispatch(ctx, "alice", "add dentist nov 5")

			convey.So(fake.gotText, convey.ShouldEqual, "dentist nov 5")
			convey.So(reply, convey.ShouldEqual, "Added: dentist nov 5")
		})

		convey.Convey("When it is the user's first interaction", func() {
			fake.first = true
			reply := router.Dispatch(ctx, "alice", "add dentist")

			convey.Convey("Then the reply leads with the usage primer", func() {
				convey.So(reply, convey.ShouldStartWith, "Welcome!")
				convey.So(reply, convey.ShouldContainSubstring, "remove <n...>")
				convey.So(reply, convey.ShouldEndWith, "Added: dentist")
			})
		})

		convey.Convey("When the add is a duplicate", func() {
			fake.addErr = fmt.Errorf("add: %w", repository.ErrDuplicate)
			reply := router.Dispatch(ctx, "alice", "add dentist")

			convey.So(reply, convey.ShouldEqual, "You already have that event.")
		})
	})
}

func TestDispatchListAndBacklog(t *testing.T) {
	convey.Convey("Given a router over stored events", t, func() {
		fake := &fakeReminder{
			events: []model.Event{
				dated("dentist nov 5", 2026, time.November, 5),
				{Text: "water plants"},
			},
			backlog: []model.Event{{Text: "old chore"}},
		}
		router := commands.New(fake)
		ctx := context.Background()

		convey.Convey("When list runs", func() {
			reply := router.Dispatch(ctx, "alice", "list")

			convey.So(reply, convey.ShouldEqual,
				"1. dentist nov 5 (2026-11-05)\n2. water plants")
		})

		convey.Convey("When list runs with nothing stored", func() {
			fake.events = nil
			reply := router.Dispatch(ctx, "alice", "list")

			convey.So(reply, convey.ShouldEqual, "No events.")
		})

		convey.Convey("When backlog runs with a filter", func() {
			reply := router.Dispatch(ctx, "alice", "backlog nov 2025")

			convey.So(fake.gotFilter, convey.ShouldEqual, "nov 2025")
			convey.So(reply, convey.ShouldEqual, "1. old chore")
		})
	})
}

func TestDispatchRemove(t *testing.T) {
	convey.Convey("Given a router over three events", t, func() {
		fake := &fakeReminder{
			events: []model.Event{
				{Text: "first"}, {Text: "second"}, {Text: "third"},
			},
		}
		router := commands.New(fake)
		ctx := context.Background()

		convey.Convey("When several positions are removed at once", func() {
			reply := router.Dispatch(ctx, "alice", "remove 2 1")

			convey.Convey("Then the reply reports lowest position first", func() {
				convey.So(fake.gotPositions, convey.ShouldResemble, []int{2, 1})
				convey.So(reply, convey.ShouldEqual,
					"Removed 1: first\nRemoved 2: second")
			})
		})

		convey.Convey("When positions arrive in a scrambled order", func() {
			reply := router.Dispatch(ctx, "alice", "remove 3 1 2")

			convey.So(reply, convey.ShouldEqual,
				"Removed 1: first\nRemoved 2: second\nRemoved 3: third")
		})

		convey.Convey("When one position misses", func() {
			reply := router.Dispatch(ctx, "alice", "remove 9 3")

			convey.So(reply, convey.ShouldEqual,
				"Removed 3: third\nNo event at position 9.")
		})

		convey.Convey("When a position is not a number", func() {
			reply := router.Dispatch(ctx, "alice", "remove x")

			convey.So(reply, convey.ShouldContainSubstring, "is not a position")
		})

		convey.Convey("When no position is given", func() {
			reply := router.Dispatch(ctx, "alice", "remove")

			convey.So(reply, convey.ShouldContainSubstring, "at least one position")
		})
	})
}

func TestDispatchEditAppend(t *testing.T) {
	convey.Convey("Given a router over one event", t, func() {
		fake := &fakeReminder{events: []model.Event{{Text: "dentist"}}}
		router := commands.New(fake)
		ctx := context.Background()

		convey.Convey("When edit runs", func() {
			reply := router.Dispatch(ctx, "alice", "edit 1 dentist nov 5")

			convey.So(fake.gotPosition, convey.ShouldEqual, 1)
			convey.So(fake.gotEdit, convey.ShouldEqual, "dentist nov 5")
			convey.So(reply, convey.ShouldEqual, "Updated 1: dentist nov 5")
		})

		convey.Convey("When append runs", func() {
			reply := router.Dispatch(ctx, "alice", "append 1 at 10:30")

			convey.So(fake.gotAppend, convey.ShouldEqual, "at 10:30")
			convey.So(reply, convey.ShouldEqual, "Updated 1: dentist at 10:30")
		})

		convey.Convey("When the position misses", func() {
			reply := router.Dispatch(ctx, "alice", "edit 5 whatever")

			convey.So(reply, convey.ShouldEqual, "No event at that position.")
		})
	})
}

func TestDispatchSettings(t *testing.T) {
	convey.Convey("Given a command router", t, func() {
		fake := &fakeReminder{reminder: "03:30"}
		router := commands.New(fake)
		ctx := context.Background()

		convey.Convey("When time runs without an argument", func() {
			reply := router.Dispatch(ctx, "alice", "time")

			convey.So(reply, convey.ShouldEqual, "Reminder time is 03:30.")
		})

		convey.Convey("When time sets a value", func() {
			reply := router.Dispatch(ctx, "alice", "time 09:00")

			convey.So(fake.reminder, convey.ShouldEqual, "09:00")
			convey.So(reply, convey.ShouldEqual, "Reminder time set to 09:00.")
		})

		convey.Convey("When time sets a bad value", func() {
			reply := router.Dispatch(ctx, "alice", "time 25:00")

			convey.So(reply, convey.ShouldEqual, "Reminder time must look like 09:30.")
		})

		convey.Convey("When timezone runs without an argument", func() {
			reply := router.Dispatch(ctx, "alice", "timezone")

			convey.So(reply, convey.ShouldEqual, "Timezone offset is +0.")
		})

		convey.Convey("When timezone sets a fractional value", func() {
			reply := router.Dispatch(ctx, "alice", "timezone 5.5")

			convey.So(fake.timezone, convey.ShouldEqual, 5.5)
			convey.So(reply, convey.ShouldEqual, "Timezone offset set to +5.5.")
		})

		convey.Convey("When timezone sets an out-of-range value", func() {
			reply := router.Dispatch(ctx, "alice", "timezone 15")

			convey.So(reply, convey.ShouldEqual,
				"Timezone offset must be between -12 and 14.")
		})
	})
}

func TestDispatchHelpAndUnknown(t *testing.T) {
	convey.Convey("Given a command router", t, func() {
		router := commands.New(&fakeReminder{})
		ctx := context.Background()

		convey.Convey("When help runs", func() {
			reply := router.Dispatch(ctx, "alice", "help")

			convey.So(reply, convey.ShouldContainSubstring, "add <text>")
			convey.So(reply, convey.ShouldContainSubstring, "timezone [hours]")
		})

		convey.Convey("When the command is unknown", func() {
			reply := router.Dispatch(ctx, "alice", "frobnicate now")

			convey.So(reply, convey.ShouldEqual, `Unknown command "frobnicate". Try help.`)
		})

		convey.Convey("When the line is empty", func() {
			reply := router.Dispatch(ctx, "alice", "   ")

			convey.So(reply, convey.ShouldContainSubstring, "Try help")
		})

		convey.Convey("When the command is uppercased", func() {
			reply := router.Dispatch(ctx, "alice", "LIST")

			convey.So(reply, convey.ShouldEqual, "No events.")
		})
	})
}
