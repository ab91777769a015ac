package handshake

import (
	"net/mail"
	"strings"

	"venue-tickets-api/utils"
)

// CheckoutForm is what the purchase form submits.
type CheckoutForm struct {
	Customer     Customer `json:"customer"`
	Quantity     int      `json:"quantity"`
	CouponCode   string   `json:"coupon_code"`
	Installments int      `json:"installments"`
}

// Validate runs the local checks that gate idle->loading. The national id is
// optional; when present it must pass the checksum.
func (f CheckoutForm) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", f.Customer.FirstName},
		{"last_name", f.Customer.LastName},
		{"phone", f.Customer.Phone},
		{"email", f.Customer.Email},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "required"}
		}
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(f.Customer.Email)); err != nil {
		return &ValidationError{Field: "email", Message: "malformed address"}
	}
	if f.Quantity < 1 {
		return &ValidationError{Field: "quantity", Message: "at least one ticket is required"}
	}
	if f.Installments < 0 {
		return &ValidationError{Field: "installments", Message: "installment count must be positive"}
	}
	if id := strings.TrimSpace(f.Customer.NationalID); id != "" && !utils.IsValidNationalID(id) {
		return &ValidationError{Field: "national_id", Message: "checksum mismatch"}
	}
	return nil
}
