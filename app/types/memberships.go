package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message      string                `json:"message"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

// ItemPayload is the proposed point-of-sale item attached to a validation or
// redemption request.
type ItemPayload struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
}

type TemplateResponse struct {
	ID                 uint64   `json:"id"`
	OrganizationID     uint64   `json:"organization_id"`
	Name               string   `json:"name"`
	Kind               string   `json:"kind"`
	DurationValue      int32    `json:"duration_value"`
	DurationUnit       string   `json:"duration_unit"`
	PriceCents         int64    `json:"price_cents"`
	Currency           string   `json:"currency"`
	DailyLimit         *int64   `json:"daily_limit,omitempty"`
	WeeklyLimit        *int64   `json:"weekly_limit,omitempty"`
	TotalLimit         *int64   `json:"total_limit,omitempty"`
	IncludedCategories []string `json:"included_categories,omitempty"`
	ExcludedCategories []string `json:"excluded_categories,omitempty"`
	MaxPriceCents      *int64   `json:"max_price_cents,omitempty"`
	AllowedHoursFrom   string   `json:"allowed_hours_from,omitempty"`
	AllowedHoursTo     string   `json:"allowed_hours_to,omitempty"`
	AllowedDays        []string `json:"allowed_days,omitempty"`
	AutoRenewable      bool     `json:"auto_renewable"`
	RenewableManually  bool     `json:"renewable_manually"`
	IsActive           bool     `json:"is_active"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type ListTemplatesResponse struct {
	Templates []*TemplateResponse `json:"templates"`
}

type SubscriptionResponse struct {
	ID                   uint64  `json:"id"`
	OrganizationID       uint64  `json:"organization_id"`
	CustomerID           uint64  `json:"customer_id"`
	TemplateID           uint64  `json:"template_id"`
	Code                 string  `json:"code"`
	Status               string  `json:"status"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	UsageCount           int64   `json:"usage_count"`
	DailyUsageCount      int64   `json:"daily_usage_count"`
	WeeklyUsageCount     int64   `json:"weekly_usage_count"`
	LastUsageDate        string  `json:"last_usage_date,omitempty"`
	RenewalCount         int32   `json:"renewal_count"`
	TotalAmountPaidCents int64   `json:"total_amount_paid_cents"`
	PauseReason          *string `json:"pause_reason,omitempty"`
	CancellationReason   *string `json:"cancellation_reason,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
}

type ListSubscriptionsResponse struct {
	Subscriptions []*SubscriptionResponse `json:"subscriptions"`
}

type RemainingResponse struct {
	Daily  *int64 `json:"daily,omitempty"`
	Weekly *int64 `json:"weekly,omitempty"`
	Total  *int64 `json:"total,omitempty"`
}

type ValidationResponse struct {
	Valid        bool                  `json:"valid"`
	Reason       string                `json:"reason,omitempty"`
	Remaining    *RemainingResponse    `json:"remaining,omitempty"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

type UsageResponse struct {
	ID             uint64 `json:"id"`
	SubscriptionID uint64 `json:"subscription_id"`
	ItemName       string `json:"item_name"`
	ItemCategory   string `json:"item_category"`
	ItemPriceCents int64  `json:"item_price_cents"`
	Quantity       int64  `json:"quantity"`
	Cashier        string `json:"cashier"`
	UsedAt         string `json:"used_at"`
}

type ListUsagesResponse struct {
	Usages []*UsageResponse `json:"usages"`
}

type RenewalResponse struct {
	ID              uint64 `json:"id"`
	SubscriptionID  uint64 `json:"subscription_id"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
	PreviousEndDate string `json:"previous_end_date"`
	NewEndDate      string `json:"new_end_date"`
	RenewedAt       string `json:"renewed_at"`
}

type ListRenewalsResponse struct {
	Renewals []*RenewalResponse `json:"renewals"`
}

type StatsResponse struct {
	OrganizationID         uint64 `json:"organization_id"`
	ActiveSubscriptions    int64  `json:"active_subscriptions"`
	PausedSubscriptions    int64  `json:"paused_subscriptions"`
	ExpiredSubscriptions   int64  `json:"expired_subscriptions"`
	CancelledSubscriptions int64  `json:"cancelled_subscriptions"`
	TotalRevenueCents      int64  `json:"total_revenue_cents"`
	RedemptionsTotal       int64  `json:"redemptions_total"`
	RedemptionsToday       int64  `json:"redemptions_today"`
	RenewalsTotal          int64  `json:"renewals_total"`
}

type CreateTemplateRequest struct {
	OrganizationID     uint64   `json:"organization_id"`
	Name               string   `json:"name"`
	Kind               string   `json:"kind"`
	DurationValue      int32    `json:"duration_value"`
	DurationUnit       string   `json:"duration_unit"`
	PriceCents         int64    `json:"price_cents"`
	Currency           string   `json:"currency"`
	DailyLimit         *int64   `json:"daily_limit"`
	WeeklyLimit        *int64   `json:"weekly_limit"`
	TotalLimit         *int64   `json:"total_limit"`
	IncludedCategories []string `json:"included_categories"`
	ExcludedCategories []string `json:"excluded_categories"`
	MaxPriceCents      *int64   `json:"max_price_cents"`
	AllowedHoursFrom   string   `json:"allowed_hours_from"`
	AllowedHoursTo     string   `json:"allowed_hours_to"`
	AllowedDays        []string `json:"allowed_days"`
	AutoRenewable      bool     `json:"auto_renewable"`
	RenewableManually  bool     `json:"renewable_manually"`
}

func NewCreateTemplateRequestFromContext(ctx echo.Context) (*CreateTemplateRequest, error) {
	var body CreateTemplateRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Kind = strings.TrimSpace(body.Kind)
	body.DurationUnit = strings.TrimSpace(body.DurationUnit)
	body.Currency = strings.TrimSpace(strings.ToUpper(body.Currency))
	return &body, nil
}

func (r *CreateTemplateRequest) Validate() error {
	if r.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.DurationValue <= 0 {
		return errors.New("duration_value must be positive")
	}
	if (r.AllowedHoursFrom == "") != (r.AllowedHoursTo == "") {
		return errors.New("allowed_hours_from and allowed_hours_to must be set together")
	}
	if r.AllowedHoursFrom != "" {
		if _, err := ParseMinuteOfDay(r.AllowedHoursFrom); err != nil {
			return err
		}
		if _, err := ParseMinuteOfDay(r.AllowedHoursTo); err != nil {
			return err
		}
	}
	for _, limit := range []*int64{r.DailyLimit, r.WeeklyLimit, r.TotalLimit, r.MaxPriceCents} {
		if limit != nil && *limit <= 0 {
			return errors.New("limits must be positive when set")
		}
	}
	return nil
}

type CreateSubscriptionRequest struct {
	OrganizationID  uint64 `json:"organization_id"`
	CustomerID      uint64 `json:"customer_id"`
	TemplateID      uint64 `json:"template_id"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
	StartDate       string `json:"start_date"`
}

func NewCreateSubscriptionRequestFromContext(ctx echo.Context) (*CreateSubscriptionRequest, error) {
	var body CreateSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.StartDate = strings.TrimSpace(body.StartDate)
	return &body, nil
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if r.CustomerID == 0 {
		return errors.New("customer_id is required")
	}
	if r.TemplateID == 0 {
		return errors.New("template_id is required")
	}
	if r.AmountPaidCents < 0 {
		return errors.New("amount_paid_cents must not be negative")
	}
	if r.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, r.StartDate); err != nil {
			return errors.New("start_date must be RFC3339")
		}
	}
	return nil
}

type ValidateSubscriptionRequest struct {
	OrganizationID uint64       `json:"organization_id"`
	Code           string       `json:"code"`
	Item           *ItemPayload `json:"item"`
}

func NewValidateSubscriptionRequestFromContext(ctx echo.Context) (*ValidateSubscriptionRequest, error) {
	var body ValidateSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Code = strings.TrimSpace(body.Code)
	return &body, nil
}

func (r *ValidateSubscriptionRequest) Validate() error {
	if r.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if r.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

type UseSubscriptionRequest struct {
	OrganizationID uint64      `json:"organization_id"`
	Code           string      `json:"code"`
	Item           ItemPayload `json:"item"`
	Quantity       int64       `json:"quantity"`
	Cashier        string      `json:"cashier"`
}

func NewUseSubscriptionRequestFromContext(ctx echo.Context) (*UseSubscriptionRequest, error) {
	var body UseSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Code = strings.TrimSpace(body.Code)
	body.Cashier = strings.TrimSpace(body.Cashier)
	return &body, nil
}

func (r *UseSubscriptionRequest) Validate() error {
	if r.OrganizationID == 0 {
		return errors.New("organization_id is required")
	}
	if r.Code == "" {
		return errors.New("code is required")
	}
	if r.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return nil
}

type RenewSubscriptionRequest struct {
	ID              uint64 `json:"-"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
}

func NewRenewSubscriptionRequestFromContext(ctx echo.Context) (*RenewSubscriptionRequest, error) {
	id, err := parseIDParam(ctx)
	if err != nil {
		return nil, err
	}
	var body RenewSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = id
	return &body, nil
}

func (r *RenewSubscriptionRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	if r.AmountPaidCents < 0 {
		return errors.New("amount_paid_cents must not be negative")
	}
	return nil
}

type TransitionRequest struct {
	ID     uint64 `json:"-"`
	Reason string `json:"reason"`
}

func NewTransitionRequestFromContext(ctx echo.Context) (*TransitionRequest, error) {
	id, err := parseIDParam(ctx)
	if err != nil {
		return nil, err
	}
	var body TransitionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = id
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *TransitionRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	return nil
}

func parseIDParam(ctx echo.Context) (uint64, error) {
	return strconv.ParseUint(ctx.Param("id"), 10, 64)
}

func ParseOrganizationID(ctx echo.Context) (uint64, error) {
	raw := strings.TrimSpace(ctx.QueryParam("organization_id"))
	if raw == "" {
		return 0, errors.New("organization_id is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid organization_id")
	}
	return id, nil
}

// ParseMinuteOfDay converts an "HH:MM" clock string to minutes from midnight.
func ParseMinuteOfDay(value string) (int32, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", value)
	}
	return int32(parsed.Hour()*60 + parsed.Minute()), nil
}

// FormatMinuteOfDay renders minutes from midnight back as "HH:MM".
func FormatMinuteOfDay(minute int32) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
