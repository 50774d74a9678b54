package entity

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// CustomerSubscription is one sold membership instance tracked against a
// template. It transitions to expired the first time any operation observes
// end_date in the past; paused and cancelled are administrative transitions
// only. Rows are never deleted.
type CustomerSubscription struct {
	ID             uint64
	OrganizationID uint64
	CustomerID     uint64
	TemplateID     uint64
	Code           string
	Status         SubscriptionStatus

	StartDate time.Time
	EndDate   time.Time

	UsageCount       int64
	DailyUsageCount  int64
	WeeklyUsageCount int64
	LastUsageDate    *time.Time

	// Anchors for the lazy counter resets.
	LastUsageResetAt  time.Time
	LastWeeklyResetAt time.Time

	RenewalCount         int32
	TotalAmountPaidCents int64

	PauseReason        *string
	CancellationReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
