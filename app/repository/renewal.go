package repository

import (
	"context"

	"github.com/clubware/ms-go-memberships/app/entity"
)

type RenewalRepository struct {
	db DBTX
}

func NewRenewalRepository(db DBTX) *RenewalRepository {
	return &RenewalRepository{db: db}
}

// insertRenewal is shared with the transactional renew operation in
// SubscriptionRepository.Renew.
func insertRenewal(ctx context.Context, db DBTX, renewal *entity.SubscriptionRenewal) error {
	query := `
		INSERT INTO subscription_renewals (
			subscription_id, amount_paid_cents, previous_end_date,
			new_end_date, renewed_at
		)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		renewal.SubscriptionID,
		renewal.AmountPaidCents,
		renewal.PreviousEndDate,
		renewal.NewEndDate,
		renewal.RenewedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	renewal.ID = uint64(id)
	return nil
}

func (r *RenewalRepository) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error) {
	query := `
		SELECT id, subscription_id, amount_paid_cents, previous_end_date,
		       new_end_date, renewed_at
		FROM subscription_renewals
		WHERE subscription_id = ?
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.SubscriptionRenewal, 0)
	for rows.Next() {
		item := &entity.SubscriptionRenewal{}
		if err := rows.Scan(
			&item.ID,
			&item.SubscriptionID,
			&item.AmountPaidCents,
			&item.PreviousEndDate,
			&item.NewEndDate,
			&item.RenewedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// CountByOrganization counts renewal events across an organization's
// subscriptions for the stats rollup.
func (r *RenewalRepository) CountByOrganization(ctx context.Context, organizationID uint64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM subscription_renewals r
		JOIN customer_subscriptions s ON s.id = r.subscription_id
		WHERE s.organization_id = ?
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, organizationID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
