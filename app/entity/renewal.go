package entity

import "time"

// SubscriptionRenewal is an append-only ledger row recording one renewal,
// capturing the end date before and after the extension.
type SubscriptionRenewal struct {
	ID              uint64
	SubscriptionID  uint64
	AmountPaidCents int64
	PreviousEndDate time.Time
	NewEndDate      time.Time
	RenewedAt       time.Time
}
