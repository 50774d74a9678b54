package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clubware/ms-go-memberships/app/entity"
)

var ErrTemplateAlreadyExists = errors.New("subscription template already exists")

const templateColumns = `
	id, organization_id, name, kind, duration_value, duration_unit,
	price_cents, currency, daily_limit, weekly_limit, total_limit,
	included_categories, excluded_categories, max_price_cents,
	allowed_from_minute, allowed_to_minute, allowed_days,
	auto_renewable, renewable_manually, is_active, created_at, updated_at`

type TemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.SubscriptionTemplate) error {
	query := `
		INSERT INTO subscription_templates (
			organization_id, name, kind, duration_value, duration_unit,
			price_cents, currency, daily_limit, weekly_limit, total_limit,
			included_categories, excluded_categories, max_price_cents,
			allowed_from_minute, allowed_to_minute, allowed_days,
			auto_renewable, renewable_manually, is_active, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tpl.OrganizationID,
		tpl.Name,
		string(tpl.Kind),
		tpl.DurationValue,
		string(tpl.DurationUnit),
		tpl.PriceCents,
		tpl.Currency,
		nullableInt64Value(tpl.DailyLimit),
		nullableInt64Value(tpl.WeeklyLimit),
		nullableInt64Value(tpl.TotalLimit),
		tagsValue(tpl.IncludedCategories),
		tagsValue(tpl.ExcludedCategories),
		nullableInt64Value(tpl.MaxPriceCents),
		nullableInt32Value(tpl.AllowedFromMinute),
		nullableInt32Value(tpl.AllowedToMinute),
		tagsValue(tpl.AllowedDays),
		tpl.AutoRenewable,
		tpl.RenewableManually,
		tpl.IsActive,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTemplateAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tpl.ID = uint64(id)
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error) {
	query := `SELECT` + templateColumns + `
		FROM subscription_templates
		WHERE id = ?
	`

	item, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *TemplateRepository) ListByOrganization(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error) {
	query := `SELECT` + templateColumns + `
		FROM subscription_templates
		WHERE organization_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.SubscriptionTemplate, 0)
	for rows.Next() {
		item, err := scanTemplate(rows)
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

func scanTemplate(scanner rowScanner) (*entity.SubscriptionTemplate, error) {
	item := &entity.SubscriptionTemplate{}
	var kind, unit string
	var dailyLimit, weeklyLimit, totalLimit, maxPrice sql.NullInt64
	var fromMinute, toMinute sql.NullInt32
	var included, excluded, days sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.OrganizationID,
		&item.Name,
		&kind,
		&item.DurationValue,
		&unit,
		&item.PriceCents,
		&item.Currency,
		&dailyLimit,
		&weeklyLimit,
		&totalLimit,
		&included,
		&excluded,
		&maxPrice,
		&fromMinute,
		&toMinute,
		&days,
		&item.AutoRenewable,
		&item.RenewableManually,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Kind = entity.SubscriptionKind(kind)
	item.DurationUnit = entity.DurationUnit(unit)
	if dailyLimit.Valid {
		item.DailyLimit = &dailyLimit.Int64
	}
	if weeklyLimit.Valid {
		item.WeeklyLimit = &weeklyLimit.Int64
	}
	if totalLimit.Valid {
		item.TotalLimit = &totalLimit.Int64
	}
	if maxPrice.Valid {
		item.MaxPriceCents = &maxPrice.Int64
	}
	if fromMinute.Valid {
		item.AllowedFromMinute = &fromMinute.Int32
	}
	if toMinute.Valid {
		item.AllowedToMinute = &toMinute.Int32
	}
	item.IncludedCategories = scanTags(included)
	item.ExcludedCategories = scanTags(excluded)
	item.AllowedDays = scanTags(days)

	return item, nil
}
