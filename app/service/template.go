package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

type CreateTemplateParams struct {
	OrganizationID     uint64
	Name               string
	Kind               entity.SubscriptionKind
	DurationValue      int32
	DurationUnit       entity.DurationUnit
	PriceCents         int64
	Currency           string
	DailyLimit         *int64
	WeeklyLimit        *int64
	TotalLimit         *int64
	IncludedCategories []string
	ExcludedCategories []string
	MaxPriceCents      *int64
	AllowedFromMinute  *int32
	AllowedToMinute    *int32
	AllowedDays        []string
	AutoRenewable      bool
	RenewableManually  bool
}

func (s *MembershipService) CreateTemplate(ctx context.Context, params CreateTemplateParams) (*entity.SubscriptionTemplate, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if params.DurationValue <= 0 {
		return nil, fmt.Errorf("%w: duration value must be positive", ErrInvalidRequest)
	}
	if !isKnownKind(params.Kind) {
		return nil, fmt.Errorf("%w: unknown subscription kind %q", ErrInvalidRequest, params.Kind)
	}
	if !isKnownUnit(params.DurationUnit) {
		return nil, fmt.Errorf("%w: unknown duration unit %q", ErrInvalidRequest, params.DurationUnit)
	}
	if (params.AllowedFromMinute == nil) != (params.AllowedToMinute == nil) {
		return nil, fmt.Errorf("%w: allowed hours need both ends of the window", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	tpl := &entity.SubscriptionTemplate{
		OrganizationID:     params.OrganizationID,
		Name:               params.Name,
		Kind:               params.Kind,
		DurationValue:      params.DurationValue,
		DurationUnit:       params.DurationUnit,
		PriceCents:         params.PriceCents,
		Currency:           params.Currency,
		DailyLimit:         params.DailyLimit,
		WeeklyLimit:        params.WeeklyLimit,
		TotalLimit:         params.TotalLimit,
		IncludedCategories: params.IncludedCategories,
		ExcludedCategories: params.ExcludedCategories,
		MaxPriceCents:      params.MaxPriceCents,
		AllowedFromMinute:  params.AllowedFromMinute,
		AllowedToMinute:    params.AllowedToMinute,
		AllowedDays:        params.AllowedDays,
		AutoRenewable:      params.AutoRenewable,
		RenewableManually:  params.RenewableManually,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.templateRepo.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *MembershipService) GetTemplate(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error) {
	tpl, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}
	return tpl, nil
}

func (s *MembershipService) ListTemplates(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error) {
	return s.templateRepo.ListByOrganization(ctx, organizationID)
}

func isKnownKind(kind entity.SubscriptionKind) bool {
	switch kind {
	case entity.KindDaily, entity.KindMultiDaily, entity.KindTotalAllotment,
		entity.KindUnlimited, entity.KindBundle:
		return true
	default:
		return false
	}
}

func isKnownUnit(unit entity.DurationUnit) bool {
	switch unit {
	case entity.DurationDays, entity.DurationWeeks, entity.DurationMonths, entity.DurationYears:
		return true
	default:
		return false
	}
}
