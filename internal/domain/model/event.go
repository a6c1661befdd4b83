// Package model contains domain records passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date with no embedded clock time. The zero value is
// not a valid date; events that carry no date use a nil *Date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date for the given components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Valid reports whether the date names a real calendar day, e.g. it
// rejects "feb 30".
func (d Date) Valid() bool {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && t.Month() == d.Month && t.Day() == d.Day
}

// Time returns the date at midnight in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0, or +1 ordering d against o chronologically.
func (d Date) Compare(o Date) int {
	return d.Time(time.UTC).Compare(o.Time(time.UTC))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes the date as "2006-01-02", matching the persisted
// document layout.
func (d Date) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(d.String())
	if err != nil {
		return nil, fmt.Errorf("marshal date: %w", err)
	}
	return b, nil
}

// UnmarshalJSON decodes a "2006-01-02" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshal date: %w", err)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("unmarshal date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}

// Clock is a wall-clock time expressed as minutes since midnight.
// The special value EndOfDay (24:00) is a legal, distinct moment: it
// sorts after 23:59 and converts as midnight of the next calendar day.
type Clock int

// EndOfDay is the 24:00 marker.
const EndOfDay Clock = 24 * 60

// NewClock builds a Clock from an hour and minute already normalized to
// 24-hour notation.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// Hour returns the hour component (24 for EndOfDay).
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Duration returns the offset from midnight.
func (c Clock) Duration() time.Duration {
	return time.Duration(c) * time.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Event is a single reminder entry. Text is free-form and may itself
// embed a clock time, which is extracted on demand and never stored
// separately. A nil Date means the event is undated.
type Event struct {
	Text string `json:"text"`
	Date *Date  `json:"date"`
}

// Equal reports value equality on (text, date). Two nil dates are equal;
// a nil date never equals a present one.
func (e Event) Equal(o Event) bool {
	if e.Text != o.Text {
		return false
	}
	switch {
	case e.Date == nil && o.Date == nil:
		return true
	case e.Date == nil || o.Date == nil:
		return false
	default:
		return *e.Date == *o.Date
	}
}

// Dated reports whether the event carries a calendar date.
func (e Event) Dated() bool { return e.Date != nil }

// Default profile settings.
const (
	DefaultReminderTime = "03:30"
	MinTimezoneOffset   = -12
	MaxTimezoneOffset   = 14
)

// Profile holds one user's events and notification preferences. It is
// the per-user unit of the persisted document.
type Profile struct {
	Events       []Event `json:"events"`
	Backlog      []Event `json:"backlog"`
	ReminderTime string  `json:"reminder_time"`
	Timezone     float64 `json:"timezone"`
}

// NewProfile returns a profile with default settings and no events.
func NewProfile() Profile {
	return Profile{
		Events:       []Event{},
		Backlog:      []Event{},
		ReminderTime: DefaultReminderTime,
		Timezone:     0,
	}
}

// Offset returns the user's fixed timezone delta as a duration.
func (p Profile) Offset() time.Duration {
	return time.Duration(p.Timezone * float64(time.Hour))
}

// NotificationKind discriminates the reminder intents the scheduler
// emits.
type NotificationKind string

// Notification kinds.
const (
	KindDigest     NotificationKind = "digest"
	KindDayBefore  NotificationKind = "day_before"
	KindHourBefore NotificationKind = "hour_before"
)

// Notification is a push intent bound for one user. ID is a uuid
// assigned by the scheduler for tracing; delivery is at-most-once.
type Notification struct {
	ID     string           `json:"id"`
	UserID string           `json:"user_id"`
	Kind   NotificationKind `json:"kind"`
	Body   string           `json:"body"`
}
