package policy

import (
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

const weeklyResetWindow = 7 * 24 * time.Hour

// ApplyReset brings the daily and weekly counters up to date with respect to
// now. The daily counter is zeroed when the UTC calendar date has moved past
// last_usage_reset_at; the weekly counter is zeroed once at least one full
// 7x24h period has elapsed since last_weekly_reset_at (a rolling window, not
// a calendar week). There is no scheduler: this runs before every evaluation,
// so a subscription untouched for a month carries stale counters until its
// next access. Returns true when anything changed so the caller knows to
// persist. Idempotent within the same day and window.
func ApplyReset(sub *entity.CustomerSubscription, now time.Time) bool {
	changed := false

	if !sameCalendarDay(sub.LastUsageResetAt, now) {
		sub.DailyUsageCount = 0
		sub.LastUsageResetAt = now
		changed = true
	}

	if now.Sub(sub.LastWeeklyResetAt) >= weeklyResetWindow {
		sub.WeeklyUsageCount = 0
		sub.LastWeeklyResetAt = now
		changed = true
	}

	return changed
}

func sameCalendarDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
