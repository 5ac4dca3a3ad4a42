package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/apperr"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandWeeklyTwoWeekdays(t *testing.T) {
	// Monday 2024-01-01, {Monday, Wednesday}, weekly, through 2024-01-15.
	got, err := Expand(Rule{
		Start:       date(2024, 1, 1),
		Weekdays:    []time.Weekday{time.Monday, time.Wednesday},
		Periodicity: Weekly,
		End:         date(2024, 1, 15),
	})
	require.NoError(t, err)
	want := []time.Time{
		date(2024, 1, 1), date(2024, 1, 3),
		date(2024, 1, 8), date(2024, 1, 10),
		date(2024, 1, 15),
	}
	assert.Equal(t, want, got)
}

func TestExpandBiweekly(t *testing.T) {
	got, err := Expand(Rule{
		Start:       date(2024, 1, 1), // Monday
		Weekdays:    []time.Weekday{time.Monday},
		Periodicity: Biweekly,
		End:         date(2024, 2, 5),
	})
	require.NoError(t, err)
	want := []time.Time{date(2024, 1, 1), date(2024, 1, 15), date(2024, 1, 29)}
	assert.Equal(t, want, got)
}

func TestExpandStartNotOnSelectedWeekday(t *testing.T) {
	// Start on a Tuesday, select Friday only: first occurrence is the first
	// Friday inside the range.
	got, err := Expand(Rule{
		Start:       date(2024, 1, 2),
		Weekdays:    []time.Weekday{time.Friday},
		Periodicity: Weekly,
		End:         date(2024, 1, 19),
	})
	require.NoError(t, err)
	want := []time.Time{date(2024, 1, 5), date(2024, 1, 12), date(2024, 1, 19)}
	assert.Equal(t, want, got)
}

func TestExpandProperties(t *testing.T) {
	rules := []Rule{
		{date(2024, 3, 7), []time.Weekday{time.Tuesday, time.Thursday, time.Saturday}, Weekly, date(2024, 6, 1)},
		{date(2024, 3, 7), []time.Weekday{time.Sunday, time.Wednesday}, Biweekly, date(2024, 9, 30)},
		{date(2025, 12, 29), []time.Weekday{time.Monday, time.Friday}, Weekly, date(2026, 2, 28)},
	}
	for _, r := range rules {
		got, err := Expand(r)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		selected := make(map[time.Weekday]bool)
		for _, wd := range r.Weekdays {
			selected[wd] = true
		}
		for i, d := range got {
			assert.False(t, d.Before(r.Start), "date %v before start", d)
			assert.False(t, d.After(r.End), "date %v after end", d)
			assert.True(t, selected[d.Weekday()], "date %v on unselected weekday", d)
			if i > 0 {
				assert.True(t, got[i-1].Before(d), "sequence not strictly increasing at %d", i)
			}
		}
	}
}

func TestExpandValidation(t *testing.T) {
	base := Rule{
		Start:       date(2024, 1, 1),
		Weekdays:    []time.Weekday{time.Monday},
		Periodicity: Weekly,
		End:         date(2024, 2, 1),
	}

	empty := base
	empty.Weekdays = nil
	_, err := Expand(empty)
	assert.True(t, apperr.IsValidation(err))

	reversed := base
	reversed.End = date(2023, 12, 31)
	_, err = Expand(reversed)
	assert.True(t, apperr.IsValidation(err))

	tooLong := base
	tooLong.End = date(2025, 1, 15)
	_, err = Expand(tooLong)
	assert.True(t, apperr.IsValidation(err))

	badPeriod := base
	badPeriod.Periodicity = Periodicity(3)
	_, err = Expand(badPeriod)
	assert.True(t, apperr.IsValidation(err))
}

func TestTruncatedEndCapsOccurrences(t *testing.T) {
	r := Rule{
		Start:       date(2024, 1, 1),
		Weekdays:    []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Periodicity: Weekly,
		End:         date(2024, 12, 1),
	}
	full, err := Expand(r)
	require.NoError(t, err)
	require.Greater(t, len(full), 35)

	r.End = TruncatedEnd(r, 35)
	capped, err := Expand(r)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(capped), 35)
	// 35 / 3 weekdays = 11 whole weekly cycles, 3 occurrences each.
	assert.Equal(t, 33, len(capped))

	// Deterministic: same rule, same truncation.
	again := TruncatedEnd(Rule{Start: date(2024, 1, 1), Weekdays: r.Weekdays, Periodicity: Weekly}, 35)
	assert.Equal(t, r.End, again)
}

func TestShiftToWeekdaySameWeek(t *testing.T) {
	monday := date(2024, 1, 8)
	assert.Equal(t, date(2024, 1, 10), ShiftToWeekday(monday, time.Wednesday))
	// Shifting backwards within the Sunday-based week.
	assert.Equal(t, date(2024, 1, 7), ShiftToWeekday(monday, time.Sunday))
	// No-op when already on the target weekday.
	assert.Equal(t, monday, ShiftToWeekday(monday, time.Monday))
}
