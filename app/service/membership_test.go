package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
	"github.com/clubware/ms-go-memberships/app/policy"
	"github.com/clubware/ms-go-memberships/app/repository"
)

type mockTemplateRepo struct {
	createFn             func(ctx context.Context, tpl *entity.SubscriptionTemplate) error
	findByIDFn           func(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error)
	listByOrganizationFn func(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error)
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl *entity.SubscriptionTemplate) error {
	if m.createFn != nil {
		return m.createFn(ctx, tpl)
	}
	return nil
}

func (m *mockTemplateRepo) FindByID(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTemplateRepo) ListByOrganization(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error) {
	if m.listByOrganizationFn != nil {
		return m.listByOrganizationFn(ctx, organizationID)
	}
	return nil, nil
}

type mockSubscriptionRepo struct {
	createFn              func(ctx context.Context, sub *entity.CustomerSubscription) error
	findByIDFn            func(ctx context.Context, id uint64) (*entity.CustomerSubscription, error)
	findByCodeFn          func(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error)
	listByCustomerFn      func(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error)
	listExpiredActiveFn   func(ctx context.Context, now time.Time) ([]*entity.CustomerSubscription, error)
	updateCountersFn      func(ctx context.Context, id uint64, patch repository.CounterPatch, now time.Time) error
	updateStatusFn        func(ctx context.Context, id uint64, status entity.SubscriptionStatus, reason *string, now time.Time) error
	markExpiredIfActiveFn func(ctx context.Context, id uint64, now time.Time) (bool, error)
	recordUsageFn         func(ctx context.Context, usage *entity.SubscriptionUsage, limits repository.UsageLimits) error
	renewFn               func(ctx context.Context, renewal *entity.SubscriptionRenewal) error
	countByStatusFn       func(ctx context.Context, organizationID uint64) (map[entity.SubscriptionStatus]int64, error)
	sumAmountPaidFn       func(ctx context.Context, organizationID uint64) (int64, error)
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *entity.CustomerSubscription) error {
	if m.createFn != nil {
		return m.createFn(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, id uint64) (*entity.CustomerSubscription, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) FindByCode(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error) {
	if m.findByCodeFn != nil {
		return m.findByCodeFn(ctx, organizationID, code)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) ListByCustomer(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, organizationID, customerID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) ListExpiredActive(ctx context.Context, now time.Time) ([]*entity.CustomerSubscription, error) {
	if m.listExpiredActiveFn != nil {
		return m.listExpiredActiveFn(ctx, now)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) UpdateCounters(ctx context.Context, id uint64, patch repository.CounterPatch, now time.Time) error {
	if m.updateCountersFn != nil {
		return m.updateCountersFn(ctx, id, patch, now)
	}
	return nil
}

func (m *mockSubscriptionRepo) UpdateStatus(ctx context.Context, id uint64, status entity.SubscriptionStatus, reason *string, now time.Time) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, reason, now)
	}
	return nil
}

func (m *mockSubscriptionRepo) MarkExpiredIfActive(ctx context.Context, id uint64, now time.Time) (bool, error) {
	if m.markExpiredIfActiveFn != nil {
		return m.markExpiredIfActiveFn(ctx, id, now)
	}
	return true, nil
}

func (m *mockSubscriptionRepo) RecordUsage(ctx context.Context, usage *entity.SubscriptionUsage, limits repository.UsageLimits) error {
	if m.recordUsageFn != nil {
		return m.recordUsageFn(ctx, usage, limits)
	}
	return nil
}

func (m *mockSubscriptionRepo) Renew(ctx context.Context, renewal *entity.SubscriptionRenewal) error {
	if m.renewFn != nil {
		return m.renewFn(ctx, renewal)
	}
	return nil
}

func (m *mockSubscriptionRepo) CountByStatus(ctx context.Context, organizationID uint64) (map[entity.SubscriptionStatus]int64, error) {
	if m.countByStatusFn != nil {
		return m.countByStatusFn(ctx, organizationID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) SumAmountPaid(ctx context.Context, organizationID uint64) (int64, error) {
	if m.sumAmountPaidFn != nil {
		return m.sumAmountPaidFn(ctx, organizationID)
	}
	return 0, nil
}

type mockUsageRepo struct {
	listBySubscriptionFn func(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error)
	countRedemptionsFn   func(ctx context.Context, organizationID uint64, since *time.Time) (int64, error)
}

func (m *mockUsageRepo) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error) {
	if m.listBySubscriptionFn != nil {
		return m.listBySubscriptionFn(ctx, subscriptionID)
	}
	return nil, nil
}

func (m *mockUsageRepo) CountRedemptions(ctx context.Context, organizationID uint64, since *time.Time) (int64, error) {
	if m.countRedemptionsFn != nil {
		return m.countRedemptionsFn(ctx, organizationID, since)
	}
	return 0, nil
}

type mockRenewalRepo struct {
	listBySubscriptionFn  func(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error)
	countByOrganizationFn func(ctx context.Context, organizationID uint64) (int64, error)
}

func (m *mockRenewalRepo) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error) {
	if m.listBySubscriptionFn != nil {
		return m.listBySubscriptionFn(ctx, subscriptionID)
	}
	return nil, nil
}

func (m *mockRenewalRepo) CountByOrganization(ctx context.Context, organizationID uint64) (int64, error) {
	if m.countByOrganizationFn != nil {
		return m.countByOrganizationFn(ctx, organizationID)
	}
	return 0, nil
}

func newTestService(tplRepo *mockTemplateRepo, subRepo *mockSubscriptionRepo) *MembershipService {
	return NewMembershipService(tplRepo, subRepo, &mockUsageRepo{}, &mockRenewalRepo{})
}

func intLimit(v int64) *int64 { return &v }

func boundedTemplate(daily, weekly, total *int64) *entity.SubscriptionTemplate {
	return &entity.SubscriptionTemplate{
		ID:                1,
		OrganizationID:    1,
		DurationValue:     30,
		DurationUnit:      entity.DurationDays,
		DailyLimit:        daily,
		WeeklyLimit:       weekly,
		TotalLimit:        total,
		RenewableManually: true,
		IsActive:          true,
	}
}

func currentSub() *entity.CustomerSubscription {
	now := time.Now().UTC()
	return &entity.CustomerSubscription{
		ID:                7,
		OrganizationID:    1,
		CustomerID:        42,
		TemplateID:        1,
		Code:              "MBR-TEST",
		Status:            entity.SubscriptionStatusActive,
		StartDate:         now.AddDate(0, 0, -5),
		EndDate:           now.AddDate(0, 0, 25),
		LastUsageResetAt:  now,
		LastWeeklyResetAt: now,
	}
}

func TestValidateUnknownCode(t *testing.T) {
	s := newTestService(&mockTemplateRepo{}, &mockSubscriptionRepo{})

	_, err := s.Validate(context.Background(), 1, "MBR-NOPE", nil)
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("got %v, want ErrSubscriptionNotFound", err)
	}
}

func TestValidateMissingTemplateIsInvariantViolation(t *testing.T) {
	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return currentSub(), nil
		},
	}
	s := newTestService(&mockTemplateRepo{}, subRepo)

	_, err := s.Validate(context.Background(), 1, "MBR-TEST", nil)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("got %v, want ErrInvariantViolation", err)
	}
}

func TestValidatePersistsLazyReset(t *testing.T) {
	sub := currentSub()
	sub.DailyUsageCount = 3
	sub.LastUsageResetAt = time.Now().UTC().AddDate(0, 0, -1)

	var persisted *repository.CounterPatch
	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		updateCountersFn: func(_ context.Context, id uint64, patch repository.CounterPatch, _ time.Time) error {
			if id != sub.ID {
				t.Errorf("patched id %d, want %d", id, sub.ID)
			}
			persisted = &patch
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return boundedTemplate(intLimit(3), nil, nil), nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	outcome, err := s.Validate(context.Background(), 1, "MBR-TEST", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted == nil {
		t.Fatal("lazy reset was not persisted")
	}
	if persisted.DailyUsageCount != 0 {
		t.Errorf("persisted daily count = %d, want 0", persisted.DailyUsageCount)
	}
	if !outcome.Result.Valid {
		t.Errorf("got %+v, want valid after reset", outcome.Result)
	}
	if outcome.Result.Remaining.Daily == nil || *outcome.Result.Remaining.Daily != 3 {
		t.Errorf("daily remaining = %v, want 3", outcome.Result.Remaining.Daily)
	}
}

func TestValidateExpiredFlipsStatusOnce(t *testing.T) {
	sub := currentSub()
	sub.EndDate = time.Now().UTC().AddDate(0, 0, -1)

	flips := 0
	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		markExpiredIfActiveFn: func(_ context.Context, _ uint64, _ time.Time) (bool, error) {
			flips++
			return true, nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return boundedTemplate(nil, nil, nil), nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	outcome, err := s.Validate(context.Background(), 1, "MBR-TEST", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Result.Valid || outcome.Result.Reason != policy.ReasonExpired {
		t.Fatalf("got %+v, want expired", outcome.Result)
	}
	if flips != 1 {
		t.Errorf("flips = %d, want 1", flips)
	}
	if outcome.Subscription.Status != entity.SubscriptionStatusExpired {
		t.Errorf("status = %s, want expired", outcome.Subscription.Status)
	}

	// Already expired: same reason, no further flip.
	outcome, err = s.Validate(context.Background(), 1, "MBR-TEST", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Result.Reason != policy.ReasonExpired {
		t.Errorf("got %s, want expired again", outcome.Result.Reason)
	}
	if flips != 1 {
		t.Errorf("flips = %d after second validate, want still 1", flips)
	}
}

func TestUseRejectedWritesNothing(t *testing.T) {
	sub := currentSub()
	sub.DailyUsageCount = 1

	recorded := false
	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		recordUsageFn: func(_ context.Context, _ *entity.SubscriptionUsage, _ repository.UsageLimits) error {
			recorded = true
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return boundedTemplate(intLimit(1), nil, nil), nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	_, err := s.Use(context.Background(), 1, "MBR-TEST", policy.Item{Name: "espresso"}, 1, "till-3")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %v, want *ValidationError", err)
	}
	if vErr.Reason != policy.ReasonDailyLimitExceeded {
		t.Errorf("reason = %s, want daily_limit_exceeded", vErr.Reason)
	}
	if recorded {
		t.Error("usage was recorded despite the rejection")
	}
}

func TestUseRecordsLedgerRowWithLimits(t *testing.T) {
	sub := currentSub()
	tpl := boundedTemplate(intLimit(2), intLimit(10), intLimit(100))

	var gotUsage *entity.SubscriptionUsage
	var gotLimits repository.UsageLimits
	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		recordUsageFn: func(_ context.Context, usage *entity.SubscriptionUsage, limits repository.UsageLimits) error {
			gotUsage = usage
			gotLimits = limits
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	usage, err := s.Use(context.Background(), 1, "MBR-TEST", policy.Item{Name: "espresso", Category: "coffee", PriceCents: 350}, 0, "till-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUsage == nil {
		t.Fatal("usage was not recorded")
	}
	if usage.Quantity != 1 {
		t.Errorf("quantity = %d, want the default 1", usage.Quantity)
	}
	if usage.SubscriptionID != sub.ID || usage.Cashier != "till-3" || usage.ItemCategory != "coffee" {
		t.Errorf("ledger row badly formed: %+v", usage)
	}
	if gotLimits.Daily == nil || *gotLimits.Daily != 2 || gotLimits.Total == nil || *gotLimits.Total != 100 {
		t.Errorf("limits not forwarded to the guarded update: %+v", gotLimits)
	}
}

func TestUseConflictNamesTheFilledQuota(t *testing.T) {
	sub := currentSub()

	raced := currentSub()
	raced.DailyUsageCount = 1

	subRepo := &mockSubscriptionRepo{
		findByCodeFn: func(_ context.Context, _ uint64, _ string) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		recordUsageFn: func(_ context.Context, _ *entity.SubscriptionUsage, _ repository.UsageLimits) error {
			return repository.ErrUsageConflict
		},
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return raced, nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return boundedTemplate(intLimit(1), nil, nil), nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	_, err := s.Use(context.Background(), 1, "MBR-TEST", policy.Item{}, 1, "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %v, want *ValidationError", err)
	}
	if vErr.Reason != policy.ReasonDailyLimitExceeded {
		t.Errorf("reason = %s, want daily_limit_exceeded", vErr.Reason)
	}
}

func TestRenewExtendsFromPreviousEndDate(t *testing.T) {
	sub := currentSub()
	// Expired three days ago; renewal still extends from the old end date.
	sub.EndDate = time.Now().UTC().AddDate(0, 0, -3)
	sub.Status = entity.SubscriptionStatusExpired
	oldEnd := sub.EndDate

	var gotRenewal *entity.SubscriptionRenewal
	subRepo := &mockSubscriptionRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		renewFn: func(_ context.Context, renewal *entity.SubscriptionRenewal) error {
			gotRenewal = renewal
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return boundedTemplate(nil, nil, nil), nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	renewed, err := s.Renew(context.Background(), sub.ID, 4900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRenewal == nil {
		t.Fatal("renewal ledger row was not written")
	}
	want := oldEnd.AddDate(0, 0, 30)
	if !gotRenewal.NewEndDate.Equal(want) {
		t.Errorf("new end = %v, want old end + 30 days = %v", gotRenewal.NewEndDate, want)
	}
	if !gotRenewal.PreviousEndDate.Equal(oldEnd) {
		t.Errorf("previous end = %v, want %v", gotRenewal.PreviousEndDate, oldEnd)
	}
	if renewed.Status != entity.SubscriptionStatusActive {
		t.Errorf("status = %s, want active after renewal", renewed.Status)
	}
	if renewed.RenewalCount != 1 || renewed.TotalAmountPaidCents != 4900 {
		t.Errorf("renewal count/amount = %d/%d, want 1/4900", renewed.RenewalCount, renewed.TotalAmountPaidCents)
	}
}

func TestRenewRequiresManualRenewalFlag(t *testing.T) {
	tpl := boundedTemplate(nil, nil, nil)
	tpl.RenewableManually = false

	subRepo := &mockSubscriptionRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return currentSub(), nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	_, err := s.Renew(context.Background(), 7, 1000)
	if !errors.Is(err, ErrRenewalNotAllowed) {
		t.Fatalf("got %v, want ErrRenewalNotAllowed", err)
	}
}

func TestRenewMissingTemplateIsInvariantViolation(t *testing.T) {
	subRepo := &mockSubscriptionRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return currentSub(), nil
		},
	}
	s := newTestService(&mockTemplateRepo{}, subRepo)

	_, err := s.Renew(context.Background(), 7, 1000)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("got %v, want ErrInvariantViolation", err)
	}
}

func TestCreateSubscriptionComputesEndDate(t *testing.T) {
	tpl := boundedTemplate(nil, nil, nil)

	var created *entity.CustomerSubscription
	subRepo := &mockSubscriptionRepo{
		createFn: func(_ context.Context, sub *entity.CustomerSubscription) error {
			sub.ID = 99
			created = sub
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	sub, err := s.CreateSubscription(context.Background(), CreateSubscriptionParams{
		OrganizationID:  1,
		CustomerID:      42,
		TemplateID:      1,
		AmountPaidCents: 4900,
		StartDate:       &start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("subscription was not persisted")
	}
	if !sub.EndDate.Equal(start.AddDate(0, 0, 30)) {
		t.Errorf("end date = %v, want start + 30 days", sub.EndDate)
	}
	if sub.Status != entity.SubscriptionStatusActive {
		t.Errorf("status = %s, want active", sub.Status)
	}
	if sub.Code == "" {
		t.Error("code was not generated")
	}
	if !sub.LastUsageResetAt.Equal(start) || !sub.LastWeeklyResetAt.Equal(start) {
		t.Errorf("reset anchors not anchored at start: %v / %v", sub.LastUsageResetAt, sub.LastWeeklyResetAt)
	}
}

func TestCreateSubscriptionRejectsInactiveTemplate(t *testing.T) {
	tpl := boundedTemplate(nil, nil, nil)
	tpl.IsActive = false

	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, &mockSubscriptionRepo{})

	_, err := s.CreateSubscription(context.Background(), CreateSubscriptionParams{OrganizationID: 1, CustomerID: 42, TemplateID: 1})
	if !errors.Is(err, ErrTemplateInactive) {
		t.Fatalf("got %v, want ErrTemplateInactive", err)
	}
}

func TestCreateSubscriptionScopedToOrganization(t *testing.T) {
	tpl := boundedTemplate(nil, nil, nil)
	tpl.OrganizationID = 2

	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, &mockSubscriptionRepo{})

	_, err := s.CreateSubscription(context.Background(), CreateSubscriptionParams{OrganizationID: 1, CustomerID: 42, TemplateID: 1})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("got %v, want ErrTemplateNotFound for a foreign template", err)
	}
}

func TestCreateSubscriptionRetriesCodeCollision(t *testing.T) {
	tpl := boundedTemplate(nil, nil, nil)

	attempts := 0
	codes := map[string]bool{}
	subRepo := &mockSubscriptionRepo{
		createFn: func(_ context.Context, sub *entity.CustomerSubscription) error {
			attempts++
			codes[sub.Code] = true
			if attempts == 1 {
				return repository.ErrSubscriptionAlreadyExists
			}
			return nil
		},
	}
	tplRepo := &mockTemplateRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.SubscriptionTemplate, error) {
			return tpl, nil
		},
	}
	s := newTestService(tplRepo, subRepo)

	_, err := s.CreateSubscription(context.Background(), CreateSubscriptionParams{OrganizationID: 1, CustomerID: 42, TemplateID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if len(codes) != 2 {
		t.Errorf("expected a fresh code per attempt, saw %d distinct", len(codes))
	}
}

func TestPauseRequiresActive(t *testing.T) {
	sub := currentSub()
	sub.Status = entity.SubscriptionStatusCancelled

	subRepo := &mockSubscriptionRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
	}
	s := newTestService(&mockTemplateRepo{}, subRepo)

	_, err := s.Pause(context.Background(), sub.ID, "maintenance")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestCancelRecordsReason(t *testing.T) {
	sub := currentSub()

	var gotStatus entity.SubscriptionStatus
	var gotReason *string
	subRepo := &mockSubscriptionRepo{
		findByIDFn: func(_ context.Context, _ uint64) (*entity.CustomerSubscription, error) {
			return sub, nil
		},
		updateStatusFn: func(_ context.Context, _ uint64, status entity.SubscriptionStatus, reason *string, _ time.Time) error {
			gotStatus = status
			gotReason = reason
			return nil
		},
	}
	s := newTestService(&mockTemplateRepo{}, subRepo)

	cancelled, err := s.Cancel(context.Background(), sub.ID, "customer moved away")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != entity.SubscriptionStatusCancelled {
		t.Errorf("status = %s, want cancelled", gotStatus)
	}
	if gotReason == nil || *gotReason != "customer moved away" {
		t.Errorf("reason = %v, want recorded", gotReason)
	}
	if cancelled.CancellationReason == nil {
		t.Error("cancellation reason not reflected on the returned subscription")
	}
}

func TestGetStatsComposesRollup(t *testing.T) {
	subRepo := &mockSubscriptionRepo{
		countByStatusFn: func(_ context.Context, _ uint64) (map[entity.SubscriptionStatus]int64, error) {
			return map[entity.SubscriptionStatus]int64{
				entity.SubscriptionStatusActive:  12,
				entity.SubscriptionStatusExpired: 3,
			}, nil
		},
		sumAmountPaidFn: func(_ context.Context, _ uint64) (int64, error) {
			return 123400, nil
		},
	}
	usageRepo := &mockUsageRepo{
		countRedemptionsFn: func(_ context.Context, _ uint64, since *time.Time) (int64, error) {
			if since == nil {
				return 250, nil
			}
			return 9, nil
		},
	}
	renewalRepo := &mockRenewalRepo{
		countByOrganizationFn: func(_ context.Context, _ uint64) (int64, error) {
			return 17, nil
		},
	}
	s := NewMembershipService(&mockTemplateRepo{}, subRepo, usageRepo, renewalRepo)

	stats, err := s.GetStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ActiveSubscriptions != 12 || stats.ExpiredSubscriptions != 3 || stats.PausedSubscriptions != 0 {
		t.Errorf("status counts wrong: %+v", stats)
	}
	if stats.TotalRevenueCents != 123400 || stats.RedemptionsTotal != 250 || stats.RedemptionsToday != 9 || stats.RenewalsTotal != 17 {
		t.Errorf("rollup wrong: %+v", stats)
	}
}

func TestRunExpirationSweep(t *testing.T) {
	flipped := []uint64{}
	subRepo := &mockSubscriptionRepo{
		listExpiredActiveFn: func(_ context.Context, _ time.Time) ([]*entity.CustomerSubscription, error) {
			return []*entity.CustomerSubscription{{ID: 1}, {ID: 2}}, nil
		},
		markExpiredIfActiveFn: func(_ context.Context, id uint64, _ time.Time) (bool, error) {
			flipped = append(flipped, id)
			return true, nil
		},
	}
	s := newTestService(&mockTemplateRepo{}, subRepo)

	if err := s.RunExpirationSweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flipped) != 2 {
		t.Errorf("flipped %d subscriptions, want 2", len(flipped))
	}
}
