package handshake

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PaymentType is the provider's transaction kind tag.
type PaymentType string

const (
	PaymentRegular       PaymentType = "Ragil"
	PaymentStandingOrder PaymentType = "HK"
	PaymentTokenize      PaymentType = "CreateToken"
)

func ParsePaymentType(s string) (PaymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ragil", "regular":
		return PaymentRegular, nil
	case "hk", "standing-order", "standing_order":
		return PaymentStandingOrder, nil
	case "createtoken", "tokenize":
		return PaymentTokenize, nil
	}
	return "", fmt.Errorf("unknown payment type %q", s)
}

// Currency is the provider's currency flag: "1" shekel, "2" dollar.
type Currency string

const (
	CurrencyILS Currency = "1"
	CurrencyUSD Currency = "2"
)

func ParseCurrency(s string) (Currency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "ils", "nis", "shekel":
		return CurrencyILS, nil
	case "2", "usd", "dollar":
		return CurrencyUSD, nil
	}
	return "", fmt.Errorf("unknown currency %q", s)
}

func (c Currency) Code() string {
	switch c {
	case CurrencyILS:
		return "ILS"
	case CurrencyUSD:
		return "USD"
	default:
		return ""
	}
}

func (c Currency) Symbol() string {
	switch c {
	case CurrencyILS:
		return "₪"
	case CurrencyUSD:
		return "$"
	default:
		return ""
	}
}

// Flag encodes booleans the way the provider expects them: "0" or "1".
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"1"`), nil
	}
	return []byte(`"0"`), nil
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// PaymentRequest is the structured request posted into the payment frame.
// Every key is always present on the wire, even when empty.
type PaymentRequest struct {
	Mosad               string      `json:"Mosad"`
	ApiValid            string      `json:"ApiValid"`
	PaymentType         PaymentType `json:"PaymentType"`
	Amount              string      `json:"Amount"`
	Installments        int         `json:"Tashlumim,string"`
	Currency            Currency    `json:"Currency"`
	NationalID          string      `json:"Zeout"`
	FirstName           string      `json:"FirstName"`
	LastName            string      `json:"LastName"`
	Street              string      `json:"Street"`
	City                string      `json:"City"`
	Phone               string      `json:"Phone"`
	Email               string      `json:"Mail"`
	Day                 string      `json:"Day"`
	Group               string      `json:"Groupe"`
	Comment             string      `json:"Comment"`
	Param1              string      `json:"Param1"`
	Param2              string      `json:"Param2"`
	CallbackURL         string      `json:"CallBack"`
	CallbackMailError   string      `json:"CallBackMailError"`
	ThirdPartyReceipt   Flag        `json:"ThirdPartyReceipt"`
	ForceUpdateMatching Flag        `json:"ForceUpdateMatching"`
}

const (
	MessageFinishTransaction   = "FinishTransaction2"
	MessageHeight              = "Height"
	MessageTransactionResponse = "TransactionResponse"
)

// OutboundMessage is the envelope the frame understands.
type OutboundMessage struct {
	Name  string         `json:"Name"`
	Value PaymentRequest `json:"Value"`
}

func NewFinishTransaction(req PaymentRequest) OutboundMessage {
	return OutboundMessage{Name: MessageFinishTransaction, Value: req}
}

type OutcomeKind int

const (
	OutcomeFailure OutcomeKind = iota
	OutcomeSuccess
)

func (k OutcomeKind) String() string {
	if k == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Cause records why an attempt failed.
type Cause string

const (
	CauseNone          Cause = ""
	CauseProvider      Cause = "provider"
	CauseProtocolParse Cause = "protocol_parse"
	CauseTimeout       Cause = "timeout"
	CauseDelivery      Cause = "delivery"
)

// TransactionOutcome is the normalized terminal result of one submission.
type TransactionOutcome struct {
	Kind           OutcomeKind     `json:"kind"`
	ConfirmationID string          `json:"confirmation_id,omitempty"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	Amount         string          `json:"amount,omitempty"`
	Currency       Currency        `json:"currency,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	LastDigits     string          `json:"last_digits,omitempty"`
	Voucher        string          `json:"voucher,omitempty"`
	Message        string          `json:"message,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Cause          Cause           `json:"cause,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

func (o TransactionOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

type EventKind int

const (
	EventIgnored EventKind = iota
	EventResize
	EventOutcome
)

func (k EventKind) String() string {
	switch k {
	case EventResize:
		return "resize"
	case EventOutcome:
		return "outcome"
	default:
		return "ignored"
	}
}

// Event is what the classifier makes of one inbound frame message.
type Event struct {
	Kind    EventKind
	Height  int
	Outcome *TransactionOutcome
	// Shape names the entry of the shape table that matched.
	Shape string
}

// ValidationError is a local input problem; it blocks the transition and is
// fixed by correcting the input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
