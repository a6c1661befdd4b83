// Package textdate extracts calendar dates and clock times embedded in
// free-form event text. All functions are pure; only the first match in
// the text is honored, and fragments that fail validation are treated as
// plain text rather than errors.
package textdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nudge/internal/domain/model"
)

// Supported date shapes: "oct 20" and "oct 20 2025". Month abbreviations
// are case-insensitive Jan through Dec.
var (
	dateRE      = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\s+([0-3]?\d)(?:\s+(\d{4}))?\b`)
	stripYearRE = regexp.MustCompile(`(?i)(\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\s+[0-3]?\d)\s+\d{4}`)
	clockRE     = regexp.MustCompile(`(?i)\b(\d{1,2}):([0-5]\d)\s?(am|pm)?\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// MonthAbbrev resolves a case-insensitive three-letter month
// abbreviation such as "nov".
func MonthAbbrev(s string) (time.Month, bool) {
	m, ok := months[strings.ToLower(s)]
	return m, ok
}

// ExtractDate finds the first embedded calendar date in text. A missing
// year defaults to the calendar year of now. The second return is false
// when no date pattern matches, or when the matched fragment names an
// impossible day such as "feb 30".
func ExtractDate(text string, now time.Time) (model.Date, bool) {
	m := dateRE.FindStringSubmatch(text)
	if m == nil {
		return model.Date{}, false
	}

	month := months[strings.ToLower(m[1])]
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return model.Date{}, false
	}

	year := now.Year()
	if m[3] != "" {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return model.Date{}, false
		}
	}

	d := model.NewDate(year, month, day)
	if !d.Valid() {
		return model.Date{}, false
	}
	return d, true
}

// StripYear removes the 4-digit year suffix from any matched date in
// text, so stored event text stays free of year noise while the resolved
// year lives in the event's date field. No-op when no year is present.
func StripYear(text string) string {
	return stripYearRE.ReplaceAllString(text, "$1")
}

// ParseHHMM parses a strict 24-hour "HH:MM" string such as a user's
// reminder time. Unlike ExtractClock it accepts hour 0 and rejects the
// 24:00 marker, since a reminder time names a minute within the day.
func ParseHHMM(s string) (model.Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q: out of range", s)
	}
	return model.NewClock(hour, minute), nil
}

// ExtractClock finds the first embedded clock time in text, e.g. "16:00"
// or "9:20am". 12-hour notation is normalized to 24-hour: 12:00am maps
// to 0:00, 12:00pm to 12:00, and Xpm to X+12 for X below 12. Hours 1-23
// are accepted plus the 24:00 end-of-day marker; anything else yields
// false.
func ExtractClock(text string) (model.Clock, bool) {
	m := clockRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}

	// Raw hours run 1-23, plus the bare 24:00 end-of-day marker.
	if hour < 1 || hour > 24 {
		return 0, false
	}
	if hour == 24 {
		if minute != 0 {
			return 0, false
		}
		return model.EndOfDay, true
	}

	// The am/pm suffix only applies to 12-hour notation; a 24-hour value
	// with a stray suffix keeps its numeric meaning.
	if suffix := strings.ToLower(m[3]); suffix != "" && hour <= 12 {
		switch {
		case suffix == "pm" && hour != 12:
			hour += 12
		case suffix == "am" && hour == 12:
			hour = 0
		}
	}

	return model.NewClock(hour, minute), true
}
