package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/internal/model"
)

const discountColumns = `id, code, is_active, percentage, amount, valid_from, valid_to, min_order_amount,
	max_uses, times_used, max_uses_per_user, target_type, target_id, created_at`

func scanDiscount(row interface{ Scan(...any) error }) (*model.DiscountCode, error) {
	var dc model.DiscountCode
	err := row.Scan(&dc.ID, &dc.Code, &dc.IsActive, &dc.Percentage, &dc.Amount, &dc.ValidFrom, &dc.ValidTo,
		&dc.MinOrderAmount, &dc.MaxUses, &dc.TimesUsed, &dc.MaxUsesPerUser, &dc.TargetType, &dc.TargetID, &dc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan discount code: %w", err)
	}
	return &dc, nil
}

func getDiscount(ctx context.Context, q querier, id int64) (*model.DiscountCode, error) {
	return scanDiscount(q.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discount_codes WHERE id = $1`, id))
}

func (r *repository) GetDiscountByID(ctx context.Context, id int64) (*model.DiscountCode, error) {
	return getDiscount(ctx, r.db, id)
}

// GetDiscountByCode looks the code up case-insensitively.
func (r *repository) GetDiscountByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	return scanDiscount(r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discount_codes WHERE UPPER(code) = UPPER($1)`, code))
}

func (r *repository) CountUserRedemptions(ctx context.Context, codeID, userID int64) (int, error) {
	return countRedemptions(ctx, r.db, codeID, userID)
}

func countRedemptions(ctx context.Context, q querier, codeID, userID int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discount_redemptions WHERE code_id = $1 AND user_id = $2`, codeID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

func (r *repository) CreateDiscountCode(ctx context.Context, dc *model.DiscountCode) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO discount_codes (code, is_active, percentage, amount, valid_from, valid_to, min_order_amount,
		                            max_uses, max_uses_per_user, target_type, target_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, dc.Code, dc.IsActive, dc.Percentage, dc.Amount, dc.ValidFrom, dc.ValidTo, dc.MinOrderAmount,
		dc.MaxUses, dc.MaxUsesPerUser, dc.TargetType, dc.TargetID).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDiscountCodeTaken
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert discount code: %w", err)
	}
	return id, nil
}
