package handshake

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProviderConfig is the provider-facing part of the configuration. The
// trusted origin and the frame URL are configured separately and may name
// different hosts.
type ProviderConfig struct {
	Mosad               string
	ApiValid            string
	PaymentType         PaymentType
	Currency            Currency
	Installments        int
	Group               string
	Street              string
	City                string
	CallbackURL         string
	CallbackMailError   string
	ThirdPartyReceipt   bool
	ForceUpdateMatching bool
	TrustedOrigin       string
	FrameURL            string
}

type Customer struct {
	NationalID string `json:"national_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// Order is everything a request is built from.
type Order struct {
	Quantity     int
	UnitPrice    decimal.Decimal
	Installments int
	Customer     Customer
	Comment      string
	Param1       string
	Param2       string
}

func (o Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// BuildRequest assembles the outbound request. It has no side effects: the
// same config and order always give the same request.
func BuildRequest(cfg ProviderConfig, order Order) (PaymentRequest, error) {
	if strings.TrimSpace(cfg.Mosad) == "" {
		return PaymentRequest{}, &ValidationError{Field: "mosad", Message: "institution id is not configured"}
	}
	if strings.TrimSpace(cfg.ApiValid) == "" {
		return PaymentRequest{}, &ValidationError{Field: "api_valid", Message: "api validation token is not configured"}
	}
	if cfg.PaymentType == "" {
		return PaymentRequest{}, &ValidationError{Field: "payment_type", Message: "payment type is not configured"}
	}
	if order.Quantity < 1 {
		return PaymentRequest{}, &ValidationError{Field: "quantity", Message: "at least one ticket is required"}
	}

	amount := order.Total()
	if !amount.IsPositive() {
		return PaymentRequest{}, &ValidationError{Field: "amount", Message: fmt.Sprintf("amount must be positive, got %s", amount.String())}
	}

	installments := order.Installments
	if installments == 0 {
		installments = cfg.Installments
	}
	if installments == 0 {
		installments = 1
	}
	if installments < 1 {
		return PaymentRequest{}, &ValidationError{Field: "installments", Message: "installment count must be positive"}
	}

	currency := cfg.Currency
	if currency == "" {
		currency = CurrencyILS
	}

	comment := order.Comment
	if comment == "" {
		comment = fmt.Sprintf("Order for %d tickets", order.Quantity)
	}

	return PaymentRequest{
		Mosad:               cfg.Mosad,
		ApiValid:            cfg.ApiValid,
		PaymentType:         cfg.PaymentType,
		Amount:              amount.String(),
		Installments:        installments,
		Currency:            currency,
		NationalID:          strings.TrimSpace(order.Customer.NationalID),
		FirstName:           strings.TrimSpace(order.Customer.FirstName),
		LastName:            strings.TrimSpace(order.Customer.LastName),
		Street:              firstNonEmpty(order.Customer.Street, cfg.Street),
		City:                firstNonEmpty(order.Customer.City, cfg.City),
		Phone:               strings.TrimSpace(order.Customer.Phone),
		Email:               strings.TrimSpace(order.Customer.Email),
		Group:               cfg.Group,
		Comment:             comment,
		Param1:              order.Param1,
		Param2:              order.Param2,
		CallbackURL:         cfg.CallbackURL,
		CallbackMailError:   cfg.CallbackMailError,
		ThirdPartyReceipt:   Flag(cfg.ThirdPartyReceipt),
		ForceUpdateMatching: Flag(cfg.ForceUpdateMatching),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
