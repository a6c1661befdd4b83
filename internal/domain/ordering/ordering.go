// Package ordering computes the total order shown to users: dated events
// first in chronological order, then undated events in natural string
// order. Listings and index-based commands always work against this
// freshly computed order, never against raw storage positions.
package ordering

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/internal/domain/textdate"
)

// Key is a precomputed sort key for one event.
type Key struct {
	dated bool
	at    time.Time
	nat   []token
}

// token is one run of a natural-sort split: either a numeric run
// compared as an integer or a lowercased text run.
type token struct {
	numeric bool
	num     int64
	text    string
}

// KeyOf builds the sort key for an event. A dated event sorts at its
// date plus any clock time embedded in its text (start of day when
// none); 24:00 lands on midnight of the next day, between 23:59 and
// 00:30 of the following date.
func KeyOf(e model.Event) Key {
	if e.Date == nil {
		return Key{nat: naturalTokens(e.Text)}
	}
	at := e.Date.Time(time.UTC)
	if c, ok := textdate.ExtractClock(e.Text); ok {
		at = at.Add(c.Duration())
	}
	return Key{dated: true, at: at}
}

// Less reports whether k sorts strictly before o.
func (k Key) Less(o Key) bool {
	if k.dated != o.dated {
		return k.dated
	}
	if k.dated {
		return k.at.Before(o.at)
	}
	return naturalLess(k.nat, o.nat)
}

// Permutation returns the storage indices of events in display order.
// The i-th element is the storage position of the event shown at
// 1-based display index i+1.
func Permutation(events []model.Event) []int {
	keys := make([]Key, len(events))
	for i, e := range events {
		keys[i] = KeyOf(e)
	}
	perm := make([]int, len(events))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return keys[perm[i]].Less(keys[perm[j]])
	})
	return perm
}

// Sorted returns a copy of events in display order.
func Sorted(events []model.Event) []model.Event {
	perm := Permutation(events)
	out := make([]model.Event, len(events))
	for i, p := range perm {
		out[i] = events[p]
	}
	return out
}

// StorageIndex translates a 1-based display index into the underlying
// storage position. The second return is false when the index is out of
// range.
func StorageIndex(events []model.Event, display int) (int, bool) {
	if display < 1 || display > len(events) {
		return 0, false
	}
	return Permutation(events)[display-1], true
}

// naturalTokens splits text into alternating digit and non-digit runs,
// so "task 2" orders before "task 10".
func naturalTokens(text string) []token {
	text = strings.ToLower(text)
	var out []token
	for len(text) > 0 {
		i := 0
		digit := isDigit(text[0])
		for i < len(text) && isDigit(text[i]) == digit {
			i++
		}
		run := text[:i]
		text = text[i:]
		if digit {
			n, err := strconv.ParseInt(run, 10, 64)
			if err != nil {
				// Run too long for int64; fall back to text compare.
				out = append(out, token{text: run})
				continue
			}
			out = append(out, token{numeric: true, num: n})
			continue
		}
		out = append(out, token{text: run})
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func naturalLess(a, b []token) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := a[i], b[i]
		if x.numeric != y.numeric {
			// Numeric runs order before text runs.
			return x.numeric
		}
		if x.numeric {
			if x.num != y.num {
				return x.num < y.num
			}
			continue
		}
		if x.text != y.text {
			return x.text < y.text
		}
	}
	return len(a) < len(b)
}
