package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clubware/ms-go-memberships/app/entity"
	"github.com/clubware/ms-go-memberships/app/factory"
	"github.com/clubware/ms-go-memberships/app/metrics"
	"github.com/clubware/ms-go-memberships/app/policy"
	"github.com/clubware/ms-go-memberships/app/repository"
)

const codeAttempts = 3

type templateRepository interface {
	Create(ctx context.Context, tpl *entity.SubscriptionTemplate) error
	FindByID(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error)
	ListByOrganization(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error)
}

type subscriptionRepository interface {
	Create(ctx context.Context, sub *entity.CustomerSubscription) error
	FindByID(ctx context.Context, id uint64) (*entity.CustomerSubscription, error)
	FindByCode(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error)
	ListByCustomer(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]*entity.CustomerSubscription, error)
	UpdateCounters(ctx context.Context, id uint64, patch repository.CounterPatch, now time.Time) error
	UpdateStatus(ctx context.Context, id uint64, status entity.SubscriptionStatus, reason *string, now time.Time) error
	MarkExpiredIfActive(ctx context.Context, id uint64, now time.Time) (bool, error)
	RecordUsage(ctx context.Context, usage *entity.SubscriptionUsage, limits repository.UsageLimits) error
	Renew(ctx context.Context, renewal *entity.SubscriptionRenewal) error
	CountByStatus(ctx context.Context, organizationID uint64) (map[entity.SubscriptionStatus]int64, error)
	SumAmountPaid(ctx context.Context, organizationID uint64) (int64, error)
}

type usageRepository interface {
	ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error)
	CountRedemptions(ctx context.Context, organizationID uint64, since *time.Time) (int64, error)
}

type renewalRepository interface {
	ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error)
	CountByOrganization(ctx context.Context, organizationID uint64) (int64, error)
}

// MembershipService is the stateless engine behind the point-of-sale bridge:
// it decides whether membership codes may be redeemed, meters usage, and
// extends memberships on renewal. All state lives behind the injected
// repositories.
type MembershipService struct {
	templateRepo     templateRepository
	subscriptionRepo subscriptionRepository
	usageRepo        usageRepository
	renewalRepo      renewalRepository
	logger           logrus.FieldLogger
}

func NewMembershipService(
	templateRepo templateRepository,
	subscriptionRepo subscriptionRepository,
	usageRepo usageRepository,
	renewalRepo renewalRepository,
) *MembershipService {
	return &MembershipService{
		templateRepo:     templateRepo,
		subscriptionRepo: subscriptionRepo,
		usageRepo:        usageRepo,
		renewalRepo:      renewalRepo,
		logger:           factory.NewModuleLogger("membership-service"),
	}
}

// ValidationOutcome bundles what a validation saw: the subscription after the
// lazy reset, its template, and the evaluation result.
type ValidationOutcome struct {
	Subscription *entity.CustomerSubscription
	Template     *entity.SubscriptionTemplate
	Result       policy.Result
}

// Validate answers whether the code may be redeemed right now. Read-only
// except for the lazy counter reset and the one-time expiry flip.
func (s *MembershipService) Validate(ctx context.Context, organizationID uint64, code string, item *policy.Item) (*ValidationOutcome, error) {
	return s.validate(ctx, organizationID, code, item, time.Now().UTC())
}

func (s *MembershipService) validate(ctx context.Context, organizationID uint64, code string, item *policy.Item, now time.Time) (*ValidationOutcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	sub, err := s.subscriptionRepo.FindByCode(ctx, organizationID, code)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	tpl, err := s.templateRepo.FindByID(ctx, sub.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: subscription %d references missing template %d", ErrInvariantViolation, sub.ID, sub.TemplateID)
	}

	if policy.ApplyReset(sub, now) {
		patch := repository.CounterPatch{
			DailyUsageCount:   sub.DailyUsageCount,
			WeeklyUsageCount:  sub.WeeklyUsageCount,
			LastUsageResetAt:  sub.LastUsageResetAt,
			LastWeeklyResetAt: sub.LastWeeklyResetAt,
		}
		if err := s.subscriptionRepo.UpdateCounters(ctx, sub.ID, patch, now); err != nil {
			return nil, err
		}
	}

	result := policy.Evaluate(sub, tpl, now, item)

	if !result.Valid && result.Reason == policy.ReasonExpired && sub.Status == entity.SubscriptionStatusActive {
		flipped, err := s.subscriptionRepo.MarkExpiredIfActive(ctx, sub.ID, now)
		if err != nil {
			return nil, err
		}
		if flipped {
			sub.Status = entity.SubscriptionStatusExpired
			s.logger.WithField("subscription_id", sub.ID).Info("Subscription expired on access")
		}
	}

	if !result.Valid {
		metrics.ValidationFailuresTotal.WithLabelValues(string(result.Reason)).Inc()
	}

	return &ValidationOutcome{Subscription: sub, Template: tpl, Result: result}, nil
}

// Use redeems one (or quantity) units of the membership. It re-runs reset and
// evaluation even if the caller just validated, since time may have passed.
// On success the ledger row and the counter increments are committed
// atomically; on a rejected evaluation nothing is written and a
// *ValidationError carries the reason.
func (s *MembershipService) Use(ctx context.Context, organizationID uint64, code string, item policy.Item, quantity int64, cashier string) (*entity.SubscriptionUsage, error) {
	if quantity <= 0 {
		quantity = 1
	}
	now := time.Now().UTC()

	outcome, err := s.validate(ctx, organizationID, code, &item, now)
	if err != nil {
		return nil, err
	}
	if !outcome.Result.Valid {
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Reason: outcome.Result.Reason}
	}

	sub, tpl := outcome.Subscription, outcome.Template
	usage := &entity.SubscriptionUsage{
		SubscriptionID: sub.ID,
		OrganizationID: organizationID,
		ItemName:       item.Name,
		ItemCategory:   item.Category,
		ItemPriceCents: item.PriceCents,
		Quantity:       quantity,
		Cashier:        cashier,
		UsedAt:         now,
	}
	limits := repository.UsageLimits{
		Daily:  tpl.DailyLimit,
		Weekly: tpl.WeeklyLimit,
		Total:  tpl.TotalLimit,
	}

	err = s.subscriptionRepo.RecordUsage(ctx, usage, limits)
	if errors.Is(err, repository.ErrUsageConflict) {
		// Lost the race against a concurrent redemption (or an admin
		// transition): re-read and name the quota that filled up.
		reason := s.conflictReason(ctx, sub.ID, tpl, quantity)
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Reason: reason}
	}
	if err != nil {
		return nil, err
	}

	metrics.RedemptionsTotal.WithLabelValues("accepted").Inc()
	return usage, nil
}

func (s *MembershipService) conflictReason(ctx context.Context, subscriptionID uint64, tpl *entity.SubscriptionTemplate, quantity int64) policy.Reason {
	sub, err := s.subscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil || sub == nil {
		return policy.ReasonTotalLimitExceeded
	}
	if sub.Status != entity.SubscriptionStatusActive {
		return policy.ReasonNotActive
	}
	switch {
	case tpl.DailyLimit != nil && sub.DailyUsageCount+quantity > *tpl.DailyLimit:
		return policy.ReasonDailyLimitExceeded
	case tpl.WeeklyLimit != nil && sub.WeeklyUsageCount+quantity > *tpl.WeeklyLimit:
		return policy.ReasonWeeklyLimitExceeded
	default:
		return policy.ReasonTotalLimitExceeded
	}
}

// Renew extends the subscription by one template duration from its previous
// end date, never from "now": renewing early extends from the future expiry,
// renewing late extends from the past one, so back-to-back periods never
// overlap or gap. A renewal forces the status back to active.
func (s *MembershipService) Renew(ctx context.Context, id uint64, amountPaidCents int64) (*entity.CustomerSubscription, error) {
	if amountPaidCents < 0 {
		return nil, fmt.Errorf("%w: amount paid must not be negative", ErrInvalidRequest)
	}

	sub, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	tpl, err := s.templateRepo.FindByID(ctx, sub.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: subscription %d references missing template %d", ErrInvariantViolation, sub.ID, sub.TemplateID)
	}
	if !tpl.RenewableManually {
		return nil, ErrRenewalNotAllowed
	}

	now := time.Now().UTC()
	renewal := &entity.SubscriptionRenewal{
		SubscriptionID:  sub.ID,
		AmountPaidCents: amountPaidCents,
		PreviousEndDate: sub.EndDate,
		NewEndDate:      policy.AddDuration(sub.EndDate, tpl.DurationUnit, tpl.DurationValue),
		RenewedAt:       now,
	}

	if err := s.subscriptionRepo.Renew(ctx, renewal); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	sub.EndDate = renewal.NewEndDate
	sub.Status = entity.SubscriptionStatusActive
	sub.RenewalCount++
	sub.TotalAmountPaidCents += amountPaidCents
	sub.UpdatedAt = now

	metrics.RenewalsTotal.Inc()
	s.logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"new_end_date":    renewal.NewEndDate.Format(time.RFC3339),
	}).Info("Subscription renewed")

	return sub, nil
}

type CreateSubscriptionParams struct {
	OrganizationID  uint64
	CustomerID      uint64
	TemplateID      uint64
	AmountPaidCents int64
	StartDate       *time.Time
}

// CreateSubscription issues a membership from a template. The end date is the
// start date plus the template duration; counters start at zero with the
// reset anchors at the start.
func (s *MembershipService) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*entity.CustomerSubscription, error) {
	if params.CustomerID == 0 {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	}
	if params.AmountPaidCents < 0 {
		return nil, fmt.Errorf("%w: amount paid must not be negative", ErrInvalidRequest)
	}

	tpl, err := s.templateRepo.FindByID(ctx, params.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil || tpl.OrganizationID != params.OrganizationID {
		return nil, ErrTemplateNotFound
	}
	if !tpl.IsActive {
		return nil, ErrTemplateInactive
	}

	now := time.Now().UTC()
	start := now
	if params.StartDate != nil {
		start = params.StartDate.UTC()
	}

	sub := &entity.CustomerSubscription{
		OrganizationID:       params.OrganizationID,
		CustomerID:           params.CustomerID,
		TemplateID:           tpl.ID,
		Status:               entity.SubscriptionStatusActive,
		StartDate:            start,
		EndDate:              policy.AddDuration(start, tpl.DurationUnit, tpl.DurationValue),
		LastUsageResetAt:     start,
		LastWeeklyResetAt:    start,
		TotalAmountPaidCents: params.AmountPaidCents,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		sub.Code = newMembershipCode()
		err = s.subscriptionRepo.Create(ctx, sub)
		if !errors.Is(err, repository.ErrSubscriptionAlreadyExists) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.SubscriptionsCreatedTotal.Inc()
	return sub, nil
}

// Pause and Cancel are the only paths to those statuses; the engine never
// enters them on its own.

func (s *MembershipService) Pause(ctx context.Context, id uint64, reason string) (*entity.CustomerSubscription, error) {
	return s.transition(ctx, id, entity.SubscriptionStatusPaused, reason)
}

func (s *MembershipService) Cancel(ctx context.Context, id uint64, reason string) (*entity.CustomerSubscription, error) {
	return s.transition(ctx, id, entity.SubscriptionStatusCancelled, reason)
}

func (s *MembershipService) transition(ctx context.Context, id uint64, target entity.SubscriptionStatus, reason string) (*entity.CustomerSubscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	switch target {
	case entity.SubscriptionStatusPaused:
		if sub.Status != entity.SubscriptionStatusActive {
			return nil, fmt.Errorf("%w: cannot pause a %s subscription", ErrInvalidTransition, sub.Status)
		}
	case entity.SubscriptionStatusCancelled:
		if sub.Status == entity.SubscriptionStatusCancelled {
			return nil, fmt.Errorf("%w: subscription is already cancelled", ErrInvalidTransition)
		}
	}

	now := time.Now().UTC()
	var reasonPtr *string
	if strings.TrimSpace(reason) != "" {
		trimmed := strings.TrimSpace(reason)
		reasonPtr = &trimmed
	}

	if err := s.subscriptionRepo.UpdateStatus(ctx, id, target, reasonPtr, now); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	sub.Status = target
	switch target {
	case entity.SubscriptionStatusPaused:
		sub.PauseReason = reasonPtr
	case entity.SubscriptionStatusCancelled:
		sub.CancellationReason = reasonPtr
	}
	sub.UpdatedAt = now

	return sub, nil
}

func (s *MembershipService) GetSubscription(ctx context.Context, id uint64) (*entity.CustomerSubscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *MembershipService) GetSubscriptionByCode(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error) {
	sub, err := s.subscriptionRepo.FindByCode(ctx, organizationID, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *MembershipService) ListSubscriptionsByCustomer(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error) {
	return s.subscriptionRepo.ListByCustomer(ctx, organizationID, customerID)
}

func (s *MembershipService) ListUsages(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error) {
	return s.usageRepo.ListBySubscription(ctx, subscriptionID)
}

func (s *MembershipService) ListRenewals(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error) {
	return s.renewalRepo.ListBySubscription(ctx, subscriptionID)
}

// RunExpirationSweep marks overdue active subscriptions expired. The access
// path performs the same flip lazily; the sweep only reaches rows nobody
// touches. Counter resets deliberately stay off the sweep.
func (s *MembershipService) RunExpirationSweep(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.subscriptionRepo.ListExpiredActive(ctx, now)
	if err != nil {
		return err
	}

	for _, item := range items {
		if _, err := s.subscriptionRepo.MarkExpiredIfActive(ctx, item.ID, now); err != nil {
			s.logger.WithError(err).WithField("subscription_id", item.ID).Warn("Expiry sweep skipped subscription")
			continue
		}
	}

	return nil
}

func newMembershipCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "MBR-" + raw[:12]
}
