package restart

import (
	"testing"
	"time"
)

// 2026-08-24 is a Monday, 2026-08-29 a Saturday.
func mondayAt(hour, min, sec int) time.Time {
	return time.Date(2026, time.August, 24, hour, min, sec, 0, time.UTC)
}

func TestNextOccurrenceWeekdayMaskProperties(t *testing.T) {
	t.Parallel()
	now := mondayAt(13, 37, 21)

	for mask := uint8(1); mask <= 127; mask++ {
		got := NextOccurrence(now, mask, 1, 4, 0, 0)

		if mask&(1<<uint(got.Weekday())) == 0 {
			t.Fatalf("mask %#b: weekday %v not in mask (got %v)", mask, got.Weekday(), got)
		}
		if got.Hour() != 4 || got.Minute() != 0 || got.Second() != 0 {
			t.Fatalf("mask %#b: time-of-day mismatch: %v", mask, got)
		}
		if got.Sub(now) <= 10*time.Second {
			t.Fatalf("mask %#b: occurrence %v not more than 10s after now", mask, got)
		}
		if got.Sub(now) > 8*24*time.Hour {
			t.Fatalf("mask %#b: occurrence %v unreasonably far out", mask, got)
		}
	}
}

func TestNextOccurrenceIntervalTodayStillAhead(t *testing.T) {
	t.Parallel()
	now := mondayAt(3, 0, 0)
	got := NextOccurrence(now, 0, 1, 4, 0, 0)
	want := mondayAt(4, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (later today)", got, want)
	}
}

func TestNextOccurrenceIntervalTodayPassed(t *testing.T) {
	t.Parallel()
	now := mondayAt(5, 0, 0)
	got := NextOccurrence(now, 0, 1, 4, 0, 0)
	want := mondayAt(4, 0, 0).AddDate(0, 0, 1)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (tomorrow)", got, want)
	}
}

func TestNextOccurrenceIntervalMultiDayAlwaysAdvances(t *testing.T) {
	t.Parallel()
	// even with the slot still ahead today, intervalDays > 1 pushes forward
	now := mondayAt(3, 0, 0)
	got := NextOccurrence(now, 0, 7, 4, 0, 0)
	want := mondayAt(4, 0, 0).AddDate(0, 0, 7)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceIntervalImminentSlotRollsForward(t *testing.T) {
	t.Parallel()
	// slot only 5 seconds away: too imminent, roll a full interval forward
	now := mondayAt(3, 59, 55)
	got := NextOccurrence(now, 0, 1, 4, 0, 0)
	want := mondayAt(4, 0, 0).AddDate(0, 0, 1)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceSaturdayOnlyJustMissed(t *testing.T) {
	t.Parallel()
	// Saturday 04:00:01, Saturday-only mask: this week's slot is gone,
	// next occurrence is exactly 7 days out.
	now := time.Date(2026, time.August, 29, 4, 0, 1, 0, time.UTC)
	got := NextOccurrence(now, 1<<6, 1, 4, 0, 0)
	want := time.Date(2026, time.September, 5, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (+7 days)", got, want)
	}
}

func TestNextOccurrenceWeekdayLaterOffsetWins(t *testing.T) {
	t.Parallel()
	// Monday+Wednesday mask, Monday after the slot: Wednesday wins.
	now := mondayAt(12, 0, 0)
	mask := uint8(1<<1 | 1<<3)
	got := NextOccurrence(now, mask, 1, 4, 0, 0)
	want := mondayAt(4, 0, 0).AddDate(0, 0, 2)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (Wednesday)", got, want)
	}
}

func TestNextOccurrenceWeekdayTodayStillAhead(t *testing.T) {
	t.Parallel()
	now := mondayAt(3, 0, 0)
	got := NextOccurrence(now, 1<<1, 1, 4, 0, 0) // Monday-only
	want := mondayAt(4, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v (today)", got, want)
	}
}

func TestNextOccurrenceMonthRollover(t *testing.T) {
	t.Parallel()
	// 2026-08-31 is a Monday; daily interval rolls into September.
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)
	got := NextOccurrence(now, 0, 1, 4, 0, 0)
	want := time.Date(2026, time.September, 1, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceYearRollover(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC)
	got := NextOccurrence(now, 0, 1, 4, 0, 0)
	want := time.Date(2027, time.January, 1, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
