package handshake

// Surface is the embedded payment frame.
type Surface interface {
	// Load points the frame at url.
	Load(url string)
	// Post sends msg into the frame, restricted to targetOrigin.
	Post(msg OutboundMessage, targetOrigin string) error
	Resize(height int)
	TearDown()
	Loaded() bool
}

// Renderer is the part of the page the controller drives.
type Renderer interface {
	RenderSuccess(Receipt)
	RenderFailure(FailureNotice)
	SetConfirm(ConfirmControl)
}

// Receipt is the localized success panel.
type Receipt struct {
	Title             string `json:"title"`
	ConfirmationLabel string `json:"confirmation_label"`
	Confirmation      string `json:"confirmation"`
	AmountLabel       string `json:"amount_label"`
	Amount            string `json:"amount"`
	CurrencySymbol    string `json:"currency_symbol"`
	DateLabel         string `json:"date_label"`
	Date              string `json:"date"`
	ThankYou          string `json:"thank_you"`
	BackLabel         string `json:"back_label"`
	TransactionLabel  string `json:"transaction_label"`
	TransactionID     string `json:"transaction_id,omitempty"`
	CardLabel         string `json:"card_label"`
	LastDigits        string `json:"last_digits,omitempty"`
	VoucherLabel      string `json:"voucher_label"`
	Voucher           string `json:"voucher,omitempty"`
}

// FailureNotice is the localized error panel with its retry control.
type FailureNotice struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	Instruction string `json:"instruction"`
	RetryLabel  string `json:"retry_label"`
	Code        string `json:"code,omitempty"`
	Cause       Cause  `json:"cause,omitempty"`
}

// ConfirmControl is the state of the "process payment" button.
type ConfirmControl struct {
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}
