// Package pricing computes the per-ticket price from the quantity tiers and
// an optional coupon.
package pricing

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"venue-tickets-api/services/coupon"
)

var ErrInvalidQuantity = errors.New("quantity must be zero or more")

// Tier applies from MinQuantity tickets upwards.
type Tier struct {
	MinQuantity int
	UnitPrice   decimal.Decimal
}

// Tiers is ordered from the largest quantity down.
var Tiers = []Tier{
	{MinQuantity: 10, UnitPrice: decimal.NewFromInt(140)},
	{MinQuantity: 5, UnitPrice: decimal.NewFromInt(150)},
	{MinQuantity: 1, UnitPrice: decimal.NewFromInt(160)},
}

// BaseUnitPrice is the tier price before any coupon. Quantities below one
// are priced at the first tier.
func BaseUnitPrice(quantity int) decimal.Decimal {
	for _, t := range Tiers {
		if quantity >= t.MinQuantity {
			return t.UnitPrice
		}
	}
	return Tiers[len(Tiers)-1].UnitPrice
}

// UnitPrice subtracts the coupon discount when the coupon is valid. The
// result never goes below zero.
func UnitPrice(quantity int, couponValid bool, discountPerUnit decimal.Decimal) decimal.Decimal {
	price := BaseUnitPrice(quantity)
	if couponValid && discountPerUnit.IsPositive() {
		price = price.Sub(discountPerUnit)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

type Quote struct {
	Quantity      int             `json:"quantity"`
	BaseUnitPrice decimal.Decimal `json:"base_unit_price"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	CouponValid   bool            `json:"coupon_valid"`
	Discount      decimal.Decimal `json:"discount_per_unit"`
	Total         decimal.Decimal `json:"total"`
}

// Service prices orders, consulting the coupon validator when a code is given.
type Service struct {
	coupons coupon.Validator
}

func NewService(coupons coupon.Validator) *Service {
	return &Service{coupons: coupons}
}

// Quote never fails on a coupon problem: an unreachable validator means no
// discount.
func (s *Service) Quote(ctx context.Context, quantity int, couponCode string) (Quote, error) {
	if quantity < 0 {
		return Quote{}, ErrInvalidQuantity
	}

	q := Quote{
		Quantity:      quantity,
		BaseUnitPrice: BaseUnitPrice(quantity),
		CouponCode:    coupon.NormalizeCode(couponCode),
		Discount:      decimal.Zero,
	}

	if q.CouponCode != "" && s.coupons != nil {
		result, err := s.coupons.Validate(ctx, q.CouponCode)
		if err != nil {
			log.Printf("Coupon validation failed for %s, pricing without discount: %v", q.CouponCode, err)
		} else if result.Valid {
			q.CouponValid = true
			q.Discount = result.DiscountPerUnit
		}
	}

	q.UnitPrice = UnitPrice(quantity, q.CouponValid, q.Discount)
	q.Total = q.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return q, nil
}

// UnitPrice lets the checkout controller price an order.
func (s *Service) UnitPrice(ctx context.Context, quantity int, couponCode string) (decimal.Decimal, error) {
	q, err := s.Quote(ctx, quantity, strings.TrimSpace(couponCode))
	if err != nil {
		return decimal.Zero, err
	}
	return q.UnitPrice, nil
}
