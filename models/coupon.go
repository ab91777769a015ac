package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a row of the coupons table.
type Coupon struct {
	Code            string          `json:"code"`
	DiscountPerUnit decimal.Decimal `json:"discount_per_unit"`
	Active          bool            `json:"is_active"`
	ValidFrom       *time.Time      `json:"valid_from,omitempty"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	MaxUses         *int            `json:"max_uses,omitempty"`
	UsedCount       int             `json:"used_count"`
}

func (c *Coupon) SetDiscount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	c.DiscountPerUnit = d
	return nil
}

// UsableAt reports whether the coupon can be redeemed at t.
func (c *Coupon) UsableAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return false
	}
	return c.DiscountPerUnit.IsPositive()
}
