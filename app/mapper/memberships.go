package mapper

import (
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
	"github.com/clubware/ms-go-memberships/app/policy"
	"github.com/clubware/ms-go-memberships/app/service"
	"github.com/clubware/ms-go-memberships/app/types"
)

func TemplateToResponse(item *entity.SubscriptionTemplate) *types.TemplateResponse {
	if item == nil {
		return nil
	}

	resp := &types.TemplateResponse{
		ID:                 item.ID,
		OrganizationID:     item.OrganizationID,
		Name:               item.Name,
		Kind:               string(item.Kind),
		DurationValue:      item.DurationValue,
		DurationUnit:       string(item.DurationUnit),
		PriceCents:         item.PriceCents,
		Currency:           item.Currency,
		DailyLimit:         item.DailyLimit,
		WeeklyLimit:        item.WeeklyLimit,
		TotalLimit:         item.TotalLimit,
		IncludedCategories: item.IncludedCategories,
		ExcludedCategories: item.ExcludedCategories,
		MaxPriceCents:      item.MaxPriceCents,
		AllowedDays:        item.AllowedDays,
		AutoRenewable:      item.AutoRenewable,
		RenewableManually:  item.RenewableManually,
		IsActive:           item.IsActive,
		CreatedAt:          item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.AllowedFromMinute != nil {
		resp.AllowedHoursFrom = types.FormatMinuteOfDay(*item.AllowedFromMinute)
	}
	if item.AllowedToMinute != nil {
		resp.AllowedHoursTo = types.FormatMinuteOfDay(*item.AllowedToMinute)
	}
	return resp
}

func TemplatesToResponse(items []*entity.SubscriptionTemplate) []*types.TemplateResponse {
	result := make([]*types.TemplateResponse, 0, len(items))
	for _, item := range items {
		result = append(result, TemplateToResponse(item))
	}
	return result
}

func SubscriptionToResponse(item *entity.CustomerSubscription) *types.SubscriptionResponse {
	if item == nil {
		return nil
	}

	return &types.SubscriptionResponse{
		ID:                   item.ID,
		OrganizationID:       item.OrganizationID,
		CustomerID:           item.CustomerID,
		TemplateID:           item.TemplateID,
		Code:                 item.Code,
		Status:               string(item.Status),
		StartDate:            item.StartDate.UTC().Format(time.RFC3339),
		EndDate:              item.EndDate.UTC().Format(time.RFC3339),
		UsageCount:           item.UsageCount,
		DailyUsageCount:      item.DailyUsageCount,
		WeeklyUsageCount:     item.WeeklyUsageCount,
		LastUsageDate:        formatTime(item.LastUsageDate),
		RenewalCount:         item.RenewalCount,
		TotalAmountPaidCents: item.TotalAmountPaidCents,
		PauseReason:          item.PauseReason,
		CancellationReason:   item.CancellationReason,
		CreatedAt:            item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func SubscriptionsToResponse(items []*entity.CustomerSubscription) []*types.SubscriptionResponse {
	result := make([]*types.SubscriptionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, SubscriptionToResponse(item))
	}
	return result
}

func ValidationOutcomeToResponse(outcome *service.ValidationOutcome) *types.ValidationResponse {
	resp := &types.ValidationResponse{
		Valid:        outcome.Result.Valid,
		Reason:       string(outcome.Result.Reason),
		Subscription: SubscriptionToResponse(outcome.Subscription),
	}
	if outcome.Result.Valid {
		resp.Remaining = remainingToResponse(outcome.Result.Remaining)
	}
	return resp
}

func remainingToResponse(remaining policy.Remaining) *types.RemainingResponse {
	if remaining.Daily == nil && remaining.Weekly == nil && remaining.Total == nil {
		return nil
	}
	return &types.RemainingResponse{
		Daily:  remaining.Daily,
		Weekly: remaining.Weekly,
		Total:  remaining.Total,
	}
}

func UsageToResponse(item *entity.SubscriptionUsage) *types.UsageResponse {
	if item == nil {
		return nil
	}

	return &types.UsageResponse{
		ID:             item.ID,
		SubscriptionID: item.SubscriptionID,
		ItemName:       item.ItemName,
		ItemCategory:   item.ItemCategory,
		ItemPriceCents: item.ItemPriceCents,
		Quantity:       item.Quantity,
		Cashier:        item.Cashier,
		UsedAt:         item.UsedAt.UTC().Format(time.RFC3339),
	}
}

func UsagesToResponse(items []*entity.SubscriptionUsage) []*types.UsageResponse {
	result := make([]*types.UsageResponse, 0, len(items))
	for _, item := range items {
		result = append(result, UsageToResponse(item))
	}
	return result
}

func RenewalToResponse(item *entity.SubscriptionRenewal) *types.RenewalResponse {
	if item == nil {
		return nil
	}

	return &types.RenewalResponse{
		ID:              item.ID,
		SubscriptionID:  item.SubscriptionID,
		AmountPaidCents: item.AmountPaidCents,
		PreviousEndDate: item.PreviousEndDate.UTC().Format(time.RFC3339),
		NewEndDate:      item.NewEndDate.UTC().Format(time.RFC3339),
		RenewedAt:       item.RenewedAt.UTC().Format(time.RFC3339),
	}
}

func RenewalsToResponse(items []*entity.SubscriptionRenewal) []*types.RenewalResponse {
	result := make([]*types.RenewalResponse, 0, len(items))
	for _, item := range items {
		result = append(result, RenewalToResponse(item))
	}
	return result
}

func StatsToResponse(stats *service.OrganizationStats) *types.StatsResponse {
	if stats == nil {
		return nil
	}

	return &types.StatsResponse{
		OrganizationID:         stats.OrganizationID,
		ActiveSubscriptions:    stats.ActiveSubscriptions,
		PausedSubscriptions:    stats.PausedSubscriptions,
		ExpiredSubscriptions:   stats.ExpiredSubscriptions,
		CancelledSubscriptions: stats.CancelledSubscriptions,
		TotalRevenueCents:      stats.TotalRevenueCents,
		RedemptionsTotal:       stats.RedemptionsTotal,
		RedemptionsToday:       stats.RedemptionsToday,
		RenewalsTotal:          stats.RenewalsTotal,
	}
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
