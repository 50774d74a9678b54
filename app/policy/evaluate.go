package policy

import (
	"strings"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

type Reason string

const (
	ReasonNotActive           Reason = "not_active"
	ReasonExpired             Reason = "expired"
	ReasonDailyLimitExceeded  Reason = "daily_limit_exceeded"
	ReasonWeeklyLimitExceeded Reason = "weekly_limit_exceeded"
	ReasonTotalLimitExceeded  Reason = "total_limit_exceeded"
	ReasonCategoryNotIncluded Reason = "category_not_included"
	ReasonCategoryExcluded    Reason = "category_excluded"
	ReasonPriceExceeded       Reason = "price_exceeded"
	ReasonOutsideAllowedHours Reason = "outside_allowed_hours"
	ReasonOutsideAllowedDays  Reason = "outside_allowed_days"
)

// Item is a proposed point-of-sale item the redemption would be spent on.
type Item struct {
	Name       string
	Category   string
	PriceCents int64
}

// Remaining reports the uses left per bounded dimension, floored at zero.
// A nil field means the template does not bound that dimension.
type Remaining struct {
	Daily  *int64
	Weekly *int64
	Total  *int64
}

// Result is the outcome of an evaluation. Failures are values carrying a
// closed reason, never errors, so callers can tell "not redeemable right now"
// apart from a system fault.
type Result struct {
	Valid     bool
	Reason    Reason
	Remaining Remaining
}

func invalid(reason Reason) Result {
	return Result{Valid: false, Reason: reason}
}

// Evaluate decides whether a redemption against sub is currently allowed,
// checking in order and short-circuiting on the first failure: status,
// expiry, daily/weekly/total quotas, item restrictions (only when an item is
// proposed), then the time-of-day and day-of-week windows. It reads only;
// flipping an overrun subscription to expired is the caller's job when the
// reason comes back ReasonExpired.
func Evaluate(sub *entity.CustomerSubscription, tpl *entity.SubscriptionTemplate, now time.Time, item *Item) Result {
	switch sub.Status {
	case entity.SubscriptionStatusActive:
	case entity.SubscriptionStatusExpired:
		return invalid(ReasonExpired)
	default:
		return invalid(ReasonNotActive)
	}

	if sub.EndDate.Before(now) {
		return invalid(ReasonExpired)
	}

	if tpl.DailyLimit != nil && sub.DailyUsageCount >= *tpl.DailyLimit {
		return invalid(ReasonDailyLimitExceeded)
	}
	if tpl.WeeklyLimit != nil && sub.WeeklyUsageCount >= *tpl.WeeklyLimit {
		return invalid(ReasonWeeklyLimitExceeded)
	}
	if tpl.TotalLimit != nil && sub.UsageCount >= *tpl.TotalLimit {
		return invalid(ReasonTotalLimitExceeded)
	}

	if item != nil {
		if len(tpl.IncludedCategories) > 0 && !containsTag(tpl.IncludedCategories, item.Category) {
			return invalid(ReasonCategoryNotIncluded)
		}
		if containsTag(tpl.ExcludedCategories, item.Category) {
			return invalid(ReasonCategoryExcluded)
		}
		if tpl.MaxPriceCents != nil && item.PriceCents > *tpl.MaxPriceCents {
			return invalid(ReasonPriceExceeded)
		}
	}

	if tpl.AllowedFromMinute != nil && tpl.AllowedToMinute != nil {
		minute := int32(now.UTC().Hour()*60 + now.UTC().Minute())
		if !withinWindow(minute, *tpl.AllowedFromMinute, *tpl.AllowedToMinute) {
			return invalid(ReasonOutsideAllowedHours)
		}
	}
	if len(tpl.AllowedDays) > 0 {
		day := strings.ToLower(now.UTC().Weekday().String())
		if !containsTag(tpl.AllowedDays, day) {
			return invalid(ReasonOutsideAllowedDays)
		}
	}

	return Result{
		Valid: true,
		Remaining: Remaining{
			Daily:  remaining(tpl.DailyLimit, sub.DailyUsageCount),
			Weekly: remaining(tpl.WeeklyLimit, sub.WeeklyUsageCount),
			Total:  remaining(tpl.TotalLimit, sub.UsageCount),
		},
	}
}

// withinWindow treats a window crossing midnight (from > to) as wrapping,
// e.g. 22:00-06:00.
func withinWindow(minute, from, to int32) bool {
	if from <= to {
		return minute >= from && minute <= to
	}
	return minute >= from || minute <= to
}

// Category tags are opaque: exact match, no case normalization.
func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func remaining(limit *int64, count int64) *int64 {
	if limit == nil {
		return nil
	}
	left := *limit - count
	if left < 0 {
		left = 0
	}
	return &left
}
