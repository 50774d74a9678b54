package service

import (
	"context"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

// OrganizationStats is a read-only rollup over the instance store and the
// two ledgers.
type OrganizationStats struct {
	OrganizationID         uint64
	ActiveSubscriptions    int64
	PausedSubscriptions    int64
	ExpiredSubscriptions   int64
	CancelledSubscriptions int64
	TotalRevenueCents      int64
	RedemptionsTotal       int64
	RedemptionsToday       int64
	RenewalsTotal          int64
}

func (s *MembershipService) GetStats(ctx context.Context, organizationID uint64) (*OrganizationStats, error) {
	counts, err := s.subscriptionRepo.CountByStatus(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	revenue, err := s.subscriptionRepo.SumAmountPaid(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.usageRepo.CountRedemptions(ctx, organizationID, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	redemptionsToday, err := s.usageRepo.CountRedemptions(ctx, organizationID, &midnight)
	if err != nil {
		return nil, err
	}

	renewals, err := s.renewalRepo.CountByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	return &OrganizationStats{
		OrganizationID:         organizationID,
		ActiveSubscriptions:    counts[entity.SubscriptionStatusActive],
		PausedSubscriptions:    counts[entity.SubscriptionStatusPaused],
		ExpiredSubscriptions:   counts[entity.SubscriptionStatusExpired],
		CancelledSubscriptions: counts[entity.SubscriptionStatusCancelled],
		TotalRevenueCents:      revenue,
		RedemptionsTotal:       redemptions,
		RedemptionsToday:       redemptionsToday,
		RenewalsTotal:          renewals,
	}, nil
}
