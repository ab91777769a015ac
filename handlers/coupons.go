package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"venue-tickets-api/models"
	"venue-tickets-api/services/coupon"
	"venue-tickets-api/utils"
)

// CouponHandler is the discount-validation endpoint.
type CouponHandler struct {
	validator coupon.Validator
}

func NewCouponHandler(validator coupon.Validator) *CouponHandler {
	return &CouponHandler{validator: validator}
}

func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	result, err := h.validator.Validate(r.Context(), code)
	if errors.Is(err, coupon.ErrEmptyCode) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Coupon code is required")
		return
	}
	if err != nil {
		log.Printf("Error validating coupon %s: %v", code, err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Coupon validation unavailable")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   result,
	})
}
