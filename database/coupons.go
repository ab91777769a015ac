package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"venue-tickets-api/models"
)

var ErrCouponNotFound = errors.New("coupon not found")

const couponQuery = `
	SELECT code, discount_per_unit, is_active, valid_from, valid_until, max_uses, used_count
	FROM coupons
	WHERE code = ? AND deleted_at IS NULL
`

// GetCoupon loads a coupon by its normalized code.
func (c *Connection) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var coupon models.Coupon
	var discount string
	var validFrom, validUntil sql.NullTime
	var maxUses sql.NullInt64

	err := c.db.QueryRowContext(ctx, couponQuery, code).Scan(
		&coupon.Code,
		&discount,
		&coupon.Active,
		&validFrom,
		&validUntil,
		&maxUses,
		&coupon.UsedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting coupon %s: %w", code, err)
	}

	if err := coupon.SetDiscount(discount); err != nil {
		return nil, fmt.Errorf("error parsing discount of coupon %s: %w", code, err)
	}
	if validFrom.Valid {
		t := validFrom.Time
		coupon.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		coupon.ValidUntil = &t
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		coupon.MaxUses = &n
	}

	return &coupon, nil
}
