package repository

import (
	"context"
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

const usageColumns = `
	id, subscription_id, organization_id, item_name, item_category,
	item_price_cents, quantity, cashier, used_at`

type UsageRepository struct {
	db DBTX
}

func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// insertUsage is shared with the transactional usage recorder in
// SubscriptionRepository.RecordUsage.
func insertUsage(ctx context.Context, db DBTX, usage *entity.SubscriptionUsage) error {
	query := `
		INSERT INTO subscription_usages (
			subscription_id, organization_id, item_name, item_category,
			item_price_cents, quantity, cashier, used_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		usage.SubscriptionID,
		usage.OrganizationID,
		usage.ItemName,
		usage.ItemCategory,
		usage.ItemPriceCents,
		usage.Quantity,
		usage.Cashier,
		usage.UsedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	usage.ID = uint64(id)
	return nil
}

func (r *UsageRepository) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error) {
	query := `SELECT` + usageColumns + `
		FROM subscription_usages
		WHERE subscription_id = ?
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.SubscriptionUsage, 0)
	for rows.Next() {
		item := &entity.SubscriptionUsage{}
		if err := rows.Scan(
			&item.ID,
			&item.SubscriptionID,
			&item.OrganizationID,
			&item.ItemName,
			&item.ItemCategory,
			&item.ItemPriceCents,
			&item.Quantity,
			&item.Cashier,
			&item.UsedAt,
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

// CountRedemptions sums redeemed quantities for an organization, optionally
// only counting rows at or after since.
func (r *UsageRepository) CountRedemptions(ctx context.Context, organizationID uint64, since *time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM subscription_usages
		WHERE organization_id = ?
	`
	args := []interface{}{organizationID}
	if since != nil {
		query += ` AND used_at >= ?`
		args = append(args, *since)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
