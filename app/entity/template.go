package entity

import "time"

type SubscriptionKind string

const (
	KindDaily          SubscriptionKind = "daily"
	KindMultiDaily     SubscriptionKind = "multi_daily"
	KindTotalAllotment SubscriptionKind = "total_allotment"
	KindUnlimited      SubscriptionKind = "unlimited"
	KindBundle         SubscriptionKind = "bundle"
)

type DurationUnit string

const (
	DurationDays   DurationUnit = "days"
	DurationWeeks  DurationUnit = "weeks"
	DurationMonths DurationUnit = "months"
	DurationYears  DurationUnit = "years"
)

// SubscriptionTemplate is a reusable membership plan definition. Limits and
// restrictions are read live on every evaluation, so editing a template
// immediately changes the behavior of every subscription referencing it.
// Duration is only consulted when a subscription is created or renewed.
type SubscriptionTemplate struct {
	ID             uint64
	OrganizationID uint64
	Name           string
	Kind           SubscriptionKind
	DurationValue  int32
	DurationUnit   DurationUnit
	PriceCents     int64
	Currency       string

	// nil means unbounded for that dimension.
	DailyLimit  *int64
	WeeklyLimit *int64
	TotalLimit  *int64

	// Category tags are opaque strings, not case-normalized. An empty
	// included set means every category is allowed.
	IncludedCategories []string
	ExcludedCategories []string
	MaxPriceCents      *int64

	// Allowed redemption window as minutes from midnight, both nil when
	// the template has no time-of-day restriction.
	AllowedFromMinute *int32
	AllowedToMinute   *int32
	// Lowercase English weekday names; empty means every day.
	AllowedDays []string

	AutoRenewable     bool
	RenewableManually bool
	IsActive          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
