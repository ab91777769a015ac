// Package coupon answers whether a coupon code is valid and how much it takes
// off each ticket.
package coupon

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrEmptyCode = errors.New("coupon code is empty")

type Result struct {
	Code            string          `json:"code"`
	Valid           bool            `json:"valid"`
	DiscountPerUnit decimal.Decimal `json:"discount_per_unit"`
}

type Validator interface {
	Validate(ctx context.Context, code string) (Result, error)
}

// NormalizeCode trims and upper-cases a code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
