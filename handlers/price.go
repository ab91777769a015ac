package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"venue-tickets-api/models"
	"venue-tickets-api/pricing"
	"venue-tickets-api/utils"
)

// Quoter is satisfied by pricing.Service.
type Quoter interface {
	Quote(ctx context.Context, quantity int, couponCode string) (pricing.Quote, error)
}

type PriceHandler struct {
	quoter   Quoter
	currency string
}

func NewPriceHandler(quoter Quoter, currencySymbol string) *PriceHandler {
	return &PriceHandler{quoter: quoter, currency: currencySymbol}
}

// GetPrice answers /api/price?quantity=&coupon=.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	quantity := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("quantity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid quantity")
			return
		}
		quantity = n
	}

	quote, err := h.quoter.Quote(r.Context(), quantity, r.URL.Query().Get("coupon"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data: models.PriceResponse{
			Quantity:      quote.Quantity,
			BaseUnitPrice: quote.BaseUnitPrice.String(),
			UnitPrice:     quote.UnitPrice.String(),
			Discount:      quote.Discount.String(),
			CouponCode:    quote.CouponCode,
			CouponValid:   quote.CouponValid,
			Total:         quote.Total.String(),
			Display:       utils.FormatAmount(quote.Total, h.currency),
		},
	})
}
