package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"venue-tickets-api/locale"
)

const (
	DefaultReadyTimeout   = 5 * time.Second
	DefaultOutcomeTimeout = 3 * time.Minute
)

// Pricer resolves the unit price for a quantity and an optional coupon.
type Pricer interface {
	UnitPrice(ctx context.Context, quantity int, couponCode string) (decimal.Decimal, error)
}

// SuccessHook runs after a checkout reached succeeded, outside the controller lock.
type SuccessHook func(order Order, request PaymentRequest, outcome TransactionOutcome, lang locale.Lang)

type Options struct {
	Provider       ProviderConfig
	Pricer         Pricer
	Locale         *locale.Table
	Lang           locale.Lang
	Surface        Surface
	Renderer       Renderer
	Clock          Clock
	ReadyTimeout   time.Duration
	OutcomeTimeout time.Duration
	OnSuccess      SuccessHook
	Debug          DebugHook
}

// Controller drives one checkout: load the frame, wait for it to report a
// height, post the request, and turn the frame's replies into a terminal
// outcome. All entry points are serialized; timers from an abandoned attempt
// are ignored through the attempt counter.
type Controller struct {
	mu sync.Mutex

	provider       ProviderConfig
	pricer         Pricer
	texts          *locale.Table
	lang           locale.Lang
	surface        Surface
	renderer       Renderer
	clock          Clock
	readyTimeout   time.Duration
	outcomeTimeout time.Duration
	onSuccess      SuccessHook
	debug          DebugHook

	session *Session
	channel *Channel

	order          Order
	request        PaymentRequest
	outcome        *TransactionOutcome
	attempt        uint64
	heightSeen     bool
	awaitingReload bool
	readyTimer     Timer
	outcomeTimer   Timer
	closed         bool
}

func NewController(opts Options) (*Controller, error) {
	if opts.Surface == nil {
		return nil, errors.New("surface is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if opts.Pricer == nil {
		return nil, errors.New("pricer is required")
	}
	if strings.TrimSpace(opts.Provider.FrameURL) == "" {
		return nil, errors.New("frame url is required")
	}

	channel, err := NewChannel(opts.Provider.TrustedOrigin, opts.Debug)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		provider:       opts.Provider,
		pricer:         opts.Pricer,
		texts:          opts.Locale,
		lang:           opts.Lang,
		surface:        opts.Surface,
		renderer:       opts.Renderer,
		clock:          opts.Clock,
		readyTimeout:   opts.ReadyTimeout,
		outcomeTimeout: opts.OutcomeTimeout,
		onSuccess:      opts.OnSuccess,
		debug:          opts.Debug,
		session:        NewSession(),
		channel:        channel,
	}
	if c.lang == "" {
		c.lang = locale.Hebrew
	}
	if c.clock == nil {
		c.clock = SystemClock
	}
	if c.readyTimeout <= 0 {
		c.readyTimeout = DefaultReadyTimeout
	}
	if c.outcomeTimeout <= 0 {
		c.outcomeTimeout = DefaultOutcomeTimeout
	}

	if err := channel.Register(c.handleMessage); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// Outcome returns the terminal outcome of the current attempt, if any.
func (c *Controller) Outcome() (TransactionOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return TransactionOutcome{}, false
	}
	return *c.outcome, true
}

// Request returns the last request that was built.
func (c *Controller) Request() PaymentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request
}

func (c *Controller) Lang() locale.Lang {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

func (c *Controller) SetLang(lang locale.Lang) {
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
}

// Submit validates the form, prices the order and starts loading the frame.
func (c *Controller) Submit(ctx context.Context, form CheckoutForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if state := c.State(); state != StateIdle {
		return fmt.Errorf("%w: submit while %s", ErrIllegalTransition, state)
	}

	unitPrice, err := c.pricer.UnitPrice(ctx, form.Quantity, form.CouponCode)
	if err != nil {
		return fmt.Errorf("failed to price order: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	order := Order{
		Quantity:     form.Quantity,
		UnitPrice:    unitPrice,
		Installments: form.Installments,
		Customer:     form.Customer,
		Comment:      c.orderComment(form.Quantity),
	}
	req, err := BuildRequest(c.provider, order)
	if err != nil {
		return err
	}
	if err := c.session.Transition(StateLoading); err != nil {
		return err
	}

	c.order = order
	c.request = req
	c.attempt++
	c.heightSeen = false
	c.awaitingReload = false
	c.outcome = nil

	c.surface.Load(c.frameURL())
	c.renderer.SetConfirm(ConfirmControl{Visible: true, Enabled: false, Label: c.processLabel()})
	c.armReadyTimer()
	c.emit("submitted", map[string]any{"amount": req.Amount, "quantity": order.Quantity})
	return nil
}

// Deliver hands one frame message to the origin-gated channel.
func (c *Controller) Deliver(origin string, body json.RawMessage) bool {
	return c.channel.Deliver(origin, body)
}

// Confirm is the explicit "process payment" action.
func (c *Controller) Confirm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Transition(StateSubmitting); err != nil {
		return err
	}
	c.renderer.SetConfirm(ConfirmControl{Visible: true, Enabled: false, Label: c.text("processing_payment", "מעבד תשלום...", "Processing payment...")})
	c.armOutcomeTimer()

	// A frame reloaded by Retry gets the request once it reports in.
	if c.awaitingReload {
		c.emit("confirm_deferred", map[string]any{"reason": "reload"})
		return nil
	}
	if err := c.postRequest(); err != nil {
		c.failDelivery()
	}
	return nil
}

// Retry moves a failed checkout back to ready. A torn-down frame is loaded
// again and the request goes out on its first height report; a frame that is
// still loaded gets the request immediately.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Transition(StateReady); err != nil {
		return err
	}
	c.attempt++
	c.stopTimers()
	c.outcome = nil
	c.awaitingReload = false

	if c.surface.Loaded() {
		if err := c.postRequest(); err != nil {
			c.emit("retry_post_failed", map[string]any{"error": err.Error()})
		}
	} else {
		c.awaitingReload = true
		c.heightSeen = false
		c.surface.Load(c.frameURL())
		c.armReadyTimer()
	}
	c.renderer.SetConfirm(ConfirmControl{Visible: true, Enabled: true, Label: c.processLabel()})
	c.emit("retried", map[string]any{"reloaded": c.awaitingReload})
	return nil
}

// Close stops all timers. The controller ignores everything afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.attempt++
	c.stopTimers()
}

func (c *Controller) handleMessage(body json.RawMessage) {
	ev := Classify(body)
	c.emit("message_classified", map[string]any{"kind": ev.Kind.String(), "shape": ev.Shape})

	var after func()
	c.mu.Lock()
	if !c.closed {
		switch ev.Kind {
		case EventResize:
			c.handleHeight(ev.Height)
		case EventOutcome:
			after = c.applyOutcome(*ev.Outcome)
		}
	}
	c.mu.Unlock()

	if after != nil {
		after()
	}
}

func (c *Controller) handleHeight(height int) {
	if c.surface.Loaded() {
		c.surface.Resize(height)
	}

	switch c.session.State() {
	case StateLoading:
		if !c.heightSeen {
			c.heightSeen = true
			c.becomeReady("height")
		}
	case StateReady, StateSubmitting:
		if c.awaitingReload {
			c.resendAfterReload("height")
		}
	}
}

// resendAfterReload posts the request to a frame reloaded by Retry. When the
// user already confirmed, a failed post fails the attempt.
func (c *Controller) resendAfterReload(reason string) {
	c.awaitingReload = false
	c.heightSeen = true
	c.stopReadyTimer()
	if err := c.postRequest(); err != nil {
		c.emit("post_failed", map[string]any{"error": err.Error()})
		if c.session.State() == StateSubmitting {
			c.failDelivery()
		}
		return
	}
	c.emit("reloaded", map[string]any{"reason": reason})
}

func (c *Controller) failDelivery() {
	c.fail(TransactionOutcome{
		Kind:    OutcomeFailure,
		Cause:   CauseDelivery,
		Message: c.text("payment_system_error", "שגיאה בטעינת מערכת התשלומים. אנא נסה שוב.", "Error loading payment system. Please try again."),
	})
}

func (c *Controller) becomeReady(reason string) {
	if err := c.session.Transition(StateReady); err != nil {
		return
	}
	c.stopReadyTimer()
	if err := c.postRequest(); err != nil {
		c.emit("post_failed", map[string]any{"error": err.Error()})
	}
	c.renderer.SetConfirm(ConfirmControl{Visible: true, Enabled: true, Label: c.processLabel()})
	c.emit("ready", map[string]any{"reason": reason})
}

// applyOutcome returns the success hook to run once the lock is released.
func (c *Controller) applyOutcome(o TransactionOutcome) func() {
	if c.session.State() != StateSubmitting {
		c.emit("outcome_ignored", map[string]any{"state": c.session.State().String(), "kind": o.Kind.String()})
		return nil
	}

	if o.Timestamp.IsZero() {
		o.Timestamp = c.clock.Now()
	}
	if o.Amount == "" {
		o.Amount = c.request.Amount
	}
	if o.Currency == "" {
		o.Currency = c.request.Currency
	}

	if !o.Succeeded() {
		c.fail(o)
		return nil
	}

	if err := c.session.Transition(StateSucceeded); err != nil {
		return nil
	}
	c.stopTimers()
	c.outcome = &o
	c.renderer.RenderSuccess(c.receipt(o))
	c.renderer.SetConfirm(ConfirmControl{Visible: false, Enabled: false, Label: c.processLabel()})
	c.surface.TearDown()
	c.emit("succeeded", map[string]any{"confirmation": o.ConfirmationID})

	if c.onSuccess == nil {
		return nil
	}
	hook, order, req, lang := c.onSuccess, c.order, c.request, c.lang
	return func() { hook(order, req, o, lang) }
}

func (c *Controller) fail(o TransactionOutcome) {
	if err := c.session.Transition(StateFailed); err != nil {
		return
	}
	c.stopTimers()
	if o.Timestamp.IsZero() {
		o.Timestamp = c.clock.Now()
	}
	c.outcome = &o
	if o.Cause == CauseTimeout {
		c.surface.TearDown()
	}
	c.renderer.RenderFailure(c.failureNotice(o))
	c.renderer.SetConfirm(ConfirmControl{Visible: true, Enabled: false, Label: c.processLabel()})
	c.emit("failed", map[string]any{"cause": string(o.Cause), "message": o.Message})
}

func (c *Controller) postRequest() error {
	req, err := BuildRequest(c.provider, c.order)
	if err != nil {
		return err
	}
	c.request = req
	if err := c.surface.Post(NewFinishTransaction(req), c.channel.TrustedOrigin()); err != nil {
		return err
	}
	c.emit("request_posted", map[string]any{"amount": req.Amount})
	return nil
}

func (c *Controller) armReadyTimer() {
	c.stopReadyTimer()
	attempt := c.attempt
	c.readyTimer = c.clock.AfterFunc(c.readyTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || attempt != c.attempt {
			return
		}
		switch c.session.State() {
		case StateLoading:
			c.heightSeen = true
			c.becomeReady("fallback")
		case StateReady, StateSubmitting:
			if c.awaitingReload {
				c.resendAfterReload("fallback")
			}
		}
	})
}

func (c *Controller) armOutcomeTimer() {
	if c.outcomeTimer != nil {
		c.outcomeTimer.Stop()
	}
	attempt := c.attempt
	c.outcomeTimer = c.clock.AfterFunc(c.outcomeTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || attempt != c.attempt || c.session.State() != StateSubmitting {
			return
		}
		c.fail(TransactionOutcome{Kind: OutcomeFailure, Cause: CauseTimeout})
	})
}

func (c *Controller) stopReadyTimer() {
	if c.readyTimer != nil {
		c.readyTimer.Stop()
		c.readyTimer = nil
	}
}

func (c *Controller) stopTimers() {
	c.stopReadyTimer()
	if c.outcomeTimer != nil {
		c.outcomeTimer.Stop()
		c.outcomeTimer = nil
	}
}

func (c *Controller) frameURL() string {
	u, err := url.Parse(c.provider.FrameURL)
	if err != nil {
		return c.provider.FrameURL
	}
	q := u.Query()
	q.Set("language", string(c.lang))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) receipt(o TransactionOutcome) Receipt {
	confirmation := o.ConfirmationID
	if confirmation == "" {
		confirmation = c.text("will_be_sent_by_email", "יתקבל במייל", "Will be sent by email")
	}
	return Receipt{
		Title:             c.text("payment_success_title", "✅ תשלום בוצע בהצלחה!", "✅ Payment Successful!"),
		ConfirmationLabel: c.text("confirmation_number", "מספר אישור:", "Confirmation Number:"),
		Confirmation:      confirmation,
		AmountLabel:       c.text("amount", "סכום:", "Amount:"),
		Amount:            o.Amount,
		CurrencySymbol:    o.Currency.Symbol(),
		DateLabel:         c.text("date", "תאריך:", "Date:"),
		Date:              locale.FormatDate(o.Timestamp, c.lang),
		ThankYou:          c.text("thank_you_message", "תודה שבחרת במקוה שלנו!", "Thank you for choosing our Mikvah!"),
		BackLabel:         c.text("back_to_home", "חזור לעמוד הראשי", "Back to Home Page"),
		TransactionLabel:  c.text("transaction_id", "מספר עסקה:", "Transaction ID:"),
		TransactionID:     o.TransactionID,
		CardLabel:         c.text("card_last_digits", "כרטיס:", "Card:"),
		LastDigits:        o.LastDigits,
		VoucherLabel:      c.text("voucher_number", "מספר שובר:", "Voucher Number:"),
		Voucher:           o.Voucher,
	}
}

func (c *Controller) failureNotice(o TransactionOutcome) FailureNotice {
	message := o.Message
	if message == "" || o.Cause == CauseProtocolParse || o.Cause == CauseTimeout {
		message = c.text("unknown_payment_error", "שגיאה לא ידועה בתשלום", "Unknown payment error")
	}
	return FailureNotice{
		Title:       c.text("payment_error_title", "שגיאה בתשלום", "Payment Error"),
		Message:     message,
		Instruction: c.text("payment_error_instruction", "אנא נסה שוב או פנה לשירות לקוחות.", "Please try again or contact customer service."),
		RetryLabel:  c.text("try_again", "נסה שוב", "Try Again"),
		Code:        o.ErrorCode,
		Cause:       o.Cause,
	}
}

func (c *Controller) processLabel() string {
	return c.text("process_payment_btn", "בצע תשלום", "Process Payment")
}

func (c *Controller) orderComment(quantity int) string {
	format := c.text("order_comment", "הזמנה ל-%d כרטיסים", "Order for %d tickets")
	if !strings.Contains(format, "%d") {
		return format
	}
	return fmt.Sprintf(format, quantity)
}

func (c *Controller) text(key, fallbackHe, fallbackEn string) string {
	return c.texts.Pick(key, c.lang, fallbackHe, fallbackEn)
}

func (c *Controller) emit(event string, attrs map[string]any) {
	if c.debug != nil {
		c.debug(event, attrs)
	}
}
