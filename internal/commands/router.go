// Package commands parses chat-style command lines and renders
// plain-text replies. All reminder semantics live in the service; the
// router only tokenizes, dispatches, and formats.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/nudge/internal/adapters/repository"
	service "github.com/okian/nudge/internal/app"
	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/pkg/logger"
	"github.com/okian/nudge/pkg/metrics"
)

// Reminder is the service surface the router dispatches onto.
type Reminder interface {
	Add(ctx context.Context, user, text string) (service.AddResult, error)
	List(ctx context.Context, user string) ([]model.Event, error)
	Backlog(ctx context.Context, user, filter string) ([]model.Event, error)
	Remove(ctx context.Context, user string, positions []int) ([]service.RemovedItem, error)
	Edit(ctx context.Context, user string, position int, text string) (model.Event, error)
	Append(ctx context.Context, user string, position int, extra string) (model.Event, error)
	ReminderTime(ctx context.Context, user string) (string, error)
	SetReminderTime(ctx context.Context, user, hhmm string) error
	Timezone(ctx context.Context, user string) (float64, error)
	SetTimezone(ctx context.Context, user string, offset float64) error
}

const helpText = `Commands:
  add <text>        add an event; dates like "nov 5" or "nov 5 2027" and times like "10:30" are picked up
  list              show active events
  backlog [filter]  show archived events, optionally filtered by month and/or year
  remove <n...>     archive the events at the given positions
  edit <n> <text>   replace the event at a position
  append <n> <text> add text to the event at a position
  time [HH:MM]      show or set the daily reminder time
  timezone [hours]  show or set the UTC offset, -12 to 14
  help              show this message

Every day at your reminder time you get a digest of your events. Dated
events also ping the day before, and events with a time ping an hour
ahead.`

const welcomeText = "Welcome! Your reminders are set up.\n\n" + helpText

// Router dispatches one command line per call.
type Router struct {
	svc    Reminder
	logger logger.Logger
}

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router over the given service.
func New(svc Reminder, opts ...Option) *Router {
	r := &Router{svc: svc}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("commands")
	}
	return r
}

// Dispatch parses one line for one user and returns the reply text.
// Errors never escape; they render as replies.
func (r *Router) Dispatch(ctx context.Context, user, line string) string {
	name, rest := split(line)
	if name == "" {
		return "Say something like \"add dentist nov 5\". Try help."
	}

	var reply string
	var err error
	switch name {
	case "add":
		reply, err = r.add(ctx, user, rest)
	case "list":
		reply, err = r.list(ctx, user)
	case "backlog":
		reply, err = r.backlog(ctx, user, rest)
	case "remove":
		reply, err = r.remove(ctx, user, rest)
	case "edit":
		reply, err = r.edit(ctx, user, rest, false)
	case "append":
		reply, err = r.edit(ctx, user, rest, true)
	case "time":
		reply, err = r.time(ctx, user, rest)
	case "timezone":
		reply, err = r.timezone(ctx, user, rest)
	case "help":
		reply = helpText
	default:
		metrics.RecordCommandError("unknown")
		return fmt.Sprintf("Unknown command %q. Try help.", name)
	}

	if err != nil {
		metrics.RecordCommandError(name)
		r.logger.Debug(ctx, "command failed",
			logger.String("user", user),
			logger.String("command", name),
			logger.Error(err),
		)
		return renderError(err)
	}
	metrics.RecordCommand(name)
	return reply
}

func (r *Router) add(ctx context.Context, user, rest string) (string, error) {
	res, err := r.svc.Add(ctx, user, rest)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Added: %s", describe(res.Event))
	if res.First {
		reply = welcomeText + "\n\n" + reply
	}
	return reply, nil
}

func (r *Router) list(ctx context.Context, user string) (string, error) {
	events, err := r.svc.List(ctx, user)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "No events.", nil
	}
	return numbered(events), nil
}

func (r *Router) backlog(ctx context.Context, user, rest string) (string, error) {
	events, err := r.svc.Backlog(ctx, user, rest)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "Backlog is empty.", nil
	}
	return numbered(events), nil
}

func (r *Router) remove(ctx context.Context, user, rest string) (string, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", errors.New("remove needs at least one position")
	}
	positions := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return "", fmt.Errorf("%q is not a position", f)
		}
		positions[i] = n
	}

	items, err := r.svc.Remove(ctx, user, positions)
	if err != nil {
		return "", err
	}
	// Report lowest position first however the request was ordered.
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Position < items[b].Position
	})
	lines := make([]string, len(items))
	for i, item := range items {
		if item.Err != nil {
			lines[i] = fmt.Sprintf("No event at position %d.", item.Position)
			continue
		}
		lines[i] = fmt.Sprintf("Removed %d: %s", item.Position, describe(item.Event))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Router) edit(ctx context.Context, user, rest string, appendMode bool) (string, error) {
	posText, text := split(rest)
	pos, err := strconv.Atoi(posText)
	if err != nil {
		return "", fmt.Errorf("%q is not a position", posText)
	}

	var e model.Event
	if appendMode {
		e, err = r.svc.Append(ctx, user, pos, text)
	} else {
		e, err = r.svc.Edit(ctx, user, pos, text)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %d: %s", pos, describe(e)), nil
}

func (r *Router) time(ctx context.Context, user, rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		hhmm, err := r.svc.ReminderTime(ctx, user)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Reminder time is %s.", hhmm), nil
	}
	if err := r.svc.SetReminderTime(ctx, user, rest); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reminder time set to %s.", rest), nil
}

func (r *Router) timezone(ctx context.Context, user, rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		offset, err := r.svc.Timezone(ctx, user)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Timezone offset is %+g.", offset), nil
	}
	offset, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return "", fmt.Errorf("%q is not an offset", rest)
	}
	if err := r.svc.SetTimezone(ctx, user, offset); err != nil {
		return "", err
	}
	return fmt.Sprintf("Timezone offset set to %+g.", offset), nil
}

// renderError maps service and repository errors onto reply text.
func renderError(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return "You already have that event."
	case errors.Is(err, service.ErrBadIndex), errors.Is(err, repository.ErrOutOfRange):
		return "No event at that position."
	case errors.Is(err, service.ErrEmptyText):
		return "The event text is empty."
	case errors.Is(err, service.ErrBadTime):
		return "Reminder time must look like 09:30."
	case errors.Is(err, service.ErrBadTimezone):
		return "Timezone offset must be between -12 and 14."
	default:
		return fmt.Sprintf("That didn't work: %v.", err)
	}
}

// describe renders one event, with its resolved date when present.
func describe(e model.Event) string {
	if e.Date == nil {
		return e.Text
	}
	return fmt.Sprintf("%s (%s)", e.Text, e.Date)
}

// numbered renders events as displayed positions.
func numbered(events []model.Event) string {
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = fmt.Sprintf("%d. %s", i+1, describe(e))
	}
	return strings.Join(lines, "\n")
}

// split cuts the first whitespace-delimited token off a line.
func split(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return strings.ToLower(parts[0]), ""
	}
	return strings.ToLower(parts[0]), strings.TrimSpace(parts[1])
}
