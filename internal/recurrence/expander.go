// Package recurrence expands a weekly/biweekly recurrence rule into concrete
// calendar dates. Pure date math; persistence and occurrence caps live in the
// series package.
package recurrence

import (
	"time"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
)

// Periodicity is the step, in days, between two occurrences on the same
// weekday track.
type Periodicity int

const (
	Weekly   Periodicity = 7
	Biweekly Periodicity = 14
)

// MaxSpanDays caps the distance between start and end date (business rule:
// at most one year of recurrence per series).
const MaxSpanDays = 366

// Rule is a validated recurrence rule. Weekdays follow time.Weekday
// (0=Sunday .. 6=Saturday). End is inclusive.
type Rule struct {
	Start       time.Time
	Weekdays    []time.Weekday
	Periodicity Periodicity
	End         time.Time
}

// Expand walks day by day from start to end. Whenever the current weekday is
// selected and its track is due, the date is emitted and that track advances
// by the periodicity. Each selected weekday therefore produces its own
// arithmetic sequence, interleaved and globally sorted.
func Expand(r Rule) ([]time.Time, error) {
	if err := validate(r); err != nil {
		return nil, err
	}
	start := truncateToDay(r.Start)
	end := truncateToDay(r.End)

	selected := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		selected[wd] = true
	}
	// next[wd] is the earliest date at which that weekday track may emit.
	next := make(map[time.Weekday]time.Time, len(selected))

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if !selected[wd] {
			continue
		}
		if due, ok := next[wd]; ok && d.Before(due) {
			continue
		}
		out = append(out, d)
		next[wd] = d.AddDate(0, 0, int(r.Periodicity))
	}
	return out, nil
}

// TruncatedEnd derives a shortened end date so that re-expanding the rule
// yields at most maxOccurrences dates: the number of whole periodicity
// cycles that fit maxOccurrences / len(weekdays), counted from start. The
// result is deterministic for a given rule.
func TruncatedEnd(r Rule, maxOccurrences int) time.Time {
	cycles := maxOccurrences / len(r.Weekdays)
	if cycles < 1 {
		cycles = 1
	}
	return truncateToDay(r.Start).AddDate(0, 0, cycles*int(r.Periodicity)-1)
}

// ShiftToWeekday moves a date to the day matching the target weekday within
// the same calendar week (weeks run Sunday through Saturday, matching the
// 0=Sunday convention). A Monday shifted to Wednesday lands two days later.
func ShiftToWeekday(d time.Time, target time.Weekday) time.Time {
	delta := int(target) - int(d.Weekday())
	return d.AddDate(0, 0, delta)
}

func validate(r Rule) error {
	if len(r.Weekdays) == 0 {
		return apperr.Validationf("at least one weekday is required")
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return apperr.Validationf("invalid weekday %d", wd)
		}
	}
	if r.Periodicity != Weekly && r.Periodicity != Biweekly {
		return apperr.Validationf("periodicity must be weekly or biweekly")
	}
	start := truncateToDay(r.Start)
	end := truncateToDay(r.End)
	if end.Before(start) {
		return apperr.Validationf("end date before start date")
	}
	if spanDays(start, end) > MaxSpanDays {
		return apperr.Validationf("recurrence span exceeds %d days", MaxSpanDays)
	}
	return nil
}

func spanDays(start, end time.Time) int {
	return int(end.Sub(start) / (24 * time.Hour))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
