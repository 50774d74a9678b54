package policy

import (
	"testing"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddDurationDaysAndWeeks(t *testing.T) {
	start := date(2024, time.March, 1)

	if got := AddDuration(start, entity.DurationDays, 30); !got.Equal(date(2024, time.March, 31)) {
		t.Errorf("30 days: got %v", got)
	}
	if got := AddDuration(start, entity.DurationWeeks, 2); !got.Equal(date(2024, time.March, 15)) {
		t.Errorf("2 weeks: got %v", got)
	}
}

func TestAddDurationMonthsNormalizes(t *testing.T) {
	// AddDate semantics: Jan 31 + 1 month rolls past February.
	got := AddDuration(date(2023, time.January, 31), entity.DurationMonths, 1)
	if !got.Equal(date(2023, time.March, 3)) {
		t.Errorf("Jan 31 + 1 month: got %v, want 2023-03-03", got)
	}

	got = AddDuration(date(2024, time.January, 31), entity.DurationMonths, 1)
	if !got.Equal(date(2024, time.March, 2)) {
		t.Errorf("Jan 31 + 1 month (leap year): got %v, want 2024-03-02", got)
	}
}

func TestAddDurationYears(t *testing.T) {
	got := AddDuration(date(2024, time.February, 29), entity.DurationYears, 1)
	if !got.Equal(date(2025, time.March, 1)) {
		t.Errorf("Feb 29 + 1 year: got %v, want 2025-03-01", got)
	}
}

func TestAddDurationUnknownUnitFallsBackToDays(t *testing.T) {
	got := AddDuration(date(2024, time.March, 1), entity.DurationUnit("fortnights"), 3)
	if !got.Equal(date(2024, time.March, 4)) {
		t.Errorf("unknown unit: got %v", got)
	}
}
