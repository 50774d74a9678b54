package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	// ErrUsageConflict means the conditional counter increment matched no
	// row: a quota filled up (or the status changed) between evaluation and
	// the write. Nothing was persisted.
	ErrUsageConflict = errors.New("usage counters conflict")
)

const subscriptionColumns = `
	id, organization_id, customer_id, template_id, code, status,
	start_date, end_date, usage_count, daily_usage_count, weekly_usage_count,
	last_usage_date, last_usage_reset_at, last_weekly_reset_at,
	renewal_count, total_amount_paid_cents, pause_reason, cancellation_reason,
	created_at, updated_at`

type SubscriptionRepository struct {
	db TxStarter
}

func NewSubscriptionRepository(db TxStarter) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *entity.CustomerSubscription) error {
	query := `
		INSERT INTO customer_subscriptions (
			organization_id, customer_id, template_id, code, status,
			start_date, end_date, usage_count, daily_usage_count, weekly_usage_count,
			last_usage_date, last_usage_reset_at, last_weekly_reset_at,
			renewal_count, total_amount_paid_cents, pause_reason, cancellation_reason,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		sub.OrganizationID,
		sub.CustomerID,
		sub.TemplateID,
		sub.Code,
		string(sub.Status),
		sub.StartDate,
		sub.EndDate,
		sub.UsageCount,
		sub.DailyUsageCount,
		sub.WeeklyUsageCount,
		nullableTimeValue(sub.LastUsageDate),
		sub.LastUsageResetAt,
		sub.LastWeeklyResetAt,
		sub.RenewalCount,
		sub.TotalAmountPaidCents,
		nullableStringValue(sub.PauseReason),
		nullableStringValue(sub.CancellationReason),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uint64) (*entity.CustomerSubscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM customer_subscriptions
		WHERE id = ?
	`
	return r.findOne(ctx, query, id)
}

func (r *SubscriptionRepository) FindByCode(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM customer_subscriptions
		WHERE organization_id = ? AND code = ?
	`
	return r.findOne(ctx, query, organizationID, code)
}

func (r *SubscriptionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.CustomerSubscription, error) {
	item, err := scanSubscription(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM customer_subscriptions
		WHERE organization_id = ? AND customer_id = ?
		ORDER BY id DESC
	`
	return r.listByQuery(ctx, query, organizationID, customerID)
}

// ListExpiredActive returns active subscriptions whose end date has passed,
// for the expiry sweep job. The access path performs the same transition
// lazily; the sweep only catches rows nobody touches.
func (r *SubscriptionRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*entity.CustomerSubscription, error) {
	query := `SELECT` + subscriptionColumns + `
		FROM customer_subscriptions
		WHERE status = ? AND end_date < ?
		ORDER BY id ASC
	`
	return r.listByQuery(ctx, query, string(entity.SubscriptionStatusActive), now)
}

func (r *SubscriptionRepository) listByQuery(ctx context.Context, query string, args ...interface{}) ([]*entity.CustomerSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.CustomerSubscription, 0)
	for rows.Next() {
		item, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// CounterPatch carries the lazy-reset outcome to be persisted before an
// evaluation result is acted on.
type CounterPatch struct {
	DailyUsageCount   int64
	WeeklyUsageCount  int64
	LastUsageResetAt  time.Time
	LastWeeklyResetAt time.Time
}

func (r *SubscriptionRepository) UpdateCounters(ctx context.Context, id uint64, patch CounterPatch, now time.Time) error {
	query := `
		UPDATE customer_subscriptions
		SET daily_usage_count = ?, weekly_usage_count = ?,
		    last_usage_reset_at = ?, last_weekly_reset_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		patch.DailyUsageCount,
		patch.WeeklyUsageCount,
		patch.LastUsageResetAt,
		patch.LastWeeklyResetAt,
		now,
		id,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateStatus performs an administrative transition, recording the reason in
// the column matching the target status.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id uint64, status entity.SubscriptionStatus, reason *string, now time.Time) error {
	var reasonColumn string
	switch status {
	case entity.SubscriptionStatusPaused:
		reasonColumn = "pause_reason"
	case entity.SubscriptionStatusCancelled:
		reasonColumn = "cancellation_reason"
	}

	query := `UPDATE customer_subscriptions SET status = ?, updated_at = ?`
	args := []interface{}{string(status), now}
	if reasonColumn != "" {
		query += `, ` + reasonColumn + ` = ?`
		args = append(args, nullableStringValue(reason))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// MarkExpiredIfActive flips an active subscription to expired. The condition
// makes the lazy expiry flip idempotent under concurrent observers; zero
// affected rows just means somebody else flipped it first.
func (r *SubscriptionRepository) MarkExpiredIfActive(ctx context.Context, id uint64, now time.Time) (bool, error) {
	query := `
		UPDATE customer_subscriptions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(entity.SubscriptionStatusExpired),
		now,
		id,
		string(entity.SubscriptionStatusActive),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UsageLimits are the template limits re-checked inside the conditional
// increment so two concurrent redemptions cannot both consume the last use.
type UsageLimits struct {
	Daily  *int64
	Weekly *int64
	Total  *int64
}

// RecordUsage appends the ledger row and increments the usage counters in one
// transaction. The ledger insert happens first so it is the source of truth;
// when the guarded UPDATE matches no row the whole transaction is rolled back
// and ErrUsageConflict is returned.
func (r *SubscriptionRepository) RecordUsage(ctx context.Context, usage *entity.SubscriptionUsage, limits UsageLimits) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUsage(ctx, tx, usage); err != nil {
		return err
	}

	query := `
		UPDATE customer_subscriptions
		SET usage_count = usage_count + ?,
		    daily_usage_count = daily_usage_count + ?,
		    weekly_usage_count = weekly_usage_count + ?,
		    last_usage_date = ?, updated_at = ?
		WHERE id = ? AND status = ?
		  AND (? IS NULL OR daily_usage_count + ? <= ?)
		  AND (? IS NULL OR weekly_usage_count + ? <= ?)
		  AND (? IS NULL OR usage_count + ? <= ?)
	`

	qty := usage.Quantity
	result, err := tx.ExecContext(ctx, query,
		qty, qty, qty,
		usage.UsedAt, usage.UsedAt,
		usage.SubscriptionID,
		string(entity.SubscriptionStatusActive),
		nullableInt64Value(limits.Daily), qty, nullableInt64Value(limits.Daily),
		nullableInt64Value(limits.Weekly), qty, nullableInt64Value(limits.Weekly),
		nullableInt64Value(limits.Total), qty, nullableInt64Value(limits.Total),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUsageConflict
	}

	return tx.Commit()
}

// Renew extends the subscription and appends the renewal ledger row in one
// transaction. The new end date is computed by the caller from the previous
// end date, never from "now".
func (r *SubscriptionRepository) Renew(ctx context.Context, renewal *entity.SubscriptionRenewal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRenewal(ctx, tx, renewal); err != nil {
		return err
	}

	query := `
		UPDATE customer_subscriptions
		SET end_date = ?, status = ?, renewal_count = renewal_count + 1,
		    total_amount_paid_cents = total_amount_paid_cents + ?, updated_at = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		renewal.NewEndDate,
		string(entity.SubscriptionStatusActive),
		renewal.AmountPaidCents,
		renewal.RenewedAt,
		renewal.SubscriptionID,
	)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	return tx.Commit()
}

// CountByStatus returns the number of subscriptions per status for one
// organization.
func (r *SubscriptionRepository) CountByStatus(ctx context.Context, organizationID uint64) (map[entity.SubscriptionStatus]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM customer_subscriptions
		WHERE organization_id = ?
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.SubscriptionStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[entity.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *SubscriptionRepository) SumAmountPaid(ctx context.Context, organizationID uint64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(total_amount_paid_cents), 0)
		FROM customer_subscriptions
		WHERE organization_id = ?
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, organizationID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(scanner rowScanner) (*entity.CustomerSubscription, error) {
	item := &entity.CustomerSubscription{}
	var status string
	var lastUsage sql.NullTime
	var pauseReason, cancellationReason sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.OrganizationID,
		&item.CustomerID,
		&item.TemplateID,
		&item.Code,
		&status,
		&item.StartDate,
		&item.EndDate,
		&item.UsageCount,
		&item.DailyUsageCount,
		&item.WeeklyUsageCount,
		&lastUsage,
		&item.LastUsageResetAt,
		&item.LastWeeklyResetAt,
		&item.RenewalCount,
		&item.TotalAmountPaidCents,
		&pauseReason,
		&cancellationReason,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = entity.SubscriptionStatus(status)
	if lastUsage.Valid {
		item.LastUsageDate = &lastUsage.Time
	}
	if pauseReason.Valid {
		item.PauseReason = &pauseReason.String
	}
	if cancellationReason.Valid {
		item.CancellationReason = &cancellationReason.String
	}

	return item, nil
}
