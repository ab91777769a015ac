package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"venue-tickets-api/database"
	"venue-tickets-api/models"
)

// CouponStore is the part of database.Connection the SQL validator needs.
type CouponStore interface {
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
}

// SQLStore validates codes against the coupons table.
type SQLStore struct {
	store CouponStore
	now   func() time.Time
}

func NewSQLStore(store CouponStore) *SQLStore {
	return &SQLStore{store: store, now: time.Now}
}

func (s *SQLStore) Validate(ctx context.Context, code string) (Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Result{}, ErrEmptyCode
	}

	c, err := s.store.GetCoupon(ctx, code)
	if errors.Is(err, database.ErrCouponNotFound) {
		return Result{Code: code, DiscountPerUnit: decimal.Zero}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !c.UsableAt(s.now()) {
		return Result{Code: code, DiscountPerUnit: decimal.Zero}, nil
	}
	return Result{Code: code, Valid: true, DiscountPerUnit: c.DiscountPerUnit}, nil
}
