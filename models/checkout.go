package models

import "encoding/json"

// CheckoutRequest is the purchase form as the page posts it.
type CheckoutRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	NationalID   string `json:"national_id"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Street       string `json:"street"`
	City         string `json:"city"`
	Quantity     int    `json:"quantity"`
	CouponCode   string `json:"coupon_code"`
	Installments int    `json:"installments"`
	Language     string `json:"language,omitempty"`
}

// FrameMessageRequest is one window message relayed by the page: the event's
// origin and its data, untouched.
type FrameMessageRequest struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

type LanguageRequest struct {
	Language string `json:"language"`
}
