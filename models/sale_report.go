package models

import "time"

// SaleReportJob is the payload of a sale_report job. Every field comes from
// what the buyer's browser relayed, so none of it is proof of payment.
type SaleReportJob struct {
	CheckoutID    string    `json:"checkout_id"`
	Lang          string    `json:"lang"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	Quantity      int       `json:"quantity"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Confirmation  string    `json:"confirmation"`
	TransactionID string    `json:"transaction_id,omitempty"`
	LastDigits    string    `json:"last_digits,omitempty"`
	Voucher       string    `json:"voucher,omitempty"`
	ReportedAt    time.Time `json:"reported_at"`
}
