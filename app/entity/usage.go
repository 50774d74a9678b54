package entity

import "time"

// SubscriptionUsage is an append-only ledger row recording one redemption.
// Rows are created by the usage recorder and never mutated.
type SubscriptionUsage struct {
	ID             uint64
	SubscriptionID uint64
	OrganizationID uint64
	ItemName       string
	ItemCategory   string
	ItemPriceCents int64
	Quantity       int64
	Cashier        string
	UsedAt         time.Time
}
