package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-tickets-api/locale"
)

const testOrigin = "https://matara.pro"

type tieredPricer struct {
	err error
}

func (p tieredPricer) UnitPrice(ctx context.Context, quantity int, couponCode string) (decimal.Decimal, error) {
	if p.err != nil {
		return decimal.Zero, p.err
	}
	switch {
	case quantity >= 10:
		return decimal.NewFromInt(140), nil
	case quantity >= 5:
		return decimal.NewFromInt(150), nil
	default:
		return decimal.NewFromInt(160), nil
	}
}

type successCall struct {
	order   Order
	request PaymentRequest
	outcome TransactionOutcome
	lang    locale.Lang
}

type harness struct {
	t         *testing.T
	c         *Controller
	outbox    *Outbox
	clock     *fakeClock
	mu        sync.Mutex
	events    []string
	reasons   []string
	successes []successCall
}

func testProvider() ProviderConfig {
	return ProviderConfig{
		Mosad:         "7000000",
		ApiValid:      "api-valid",
		PaymentType:   PaymentRegular,
		Currency:      CurrencyILS,
		Installments:  1,
		TrustedOrigin: testOrigin,
		FrameURL:      testOrigin + "/nedarimplus/iframe/",
	}
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	texts, err := locale.Default()
	require.NoError(t, err)

	h := &harness{t: t, outbox: NewOutbox(), clock: newFakeClock()}
	opts := Options{
		Provider:       testProvider(),
		Pricer:         tieredPricer{},
		Locale:         texts,
		Lang:           locale.Hebrew,
		Surface:        h.outbox,
		Renderer:       h.outbox,
		Clock:          h.clock,
		ReadyTimeout:   5 * time.Second,
		OutcomeTimeout: 3 * time.Minute,
		OnSuccess: func(order Order, req PaymentRequest, outcome TransactionOutcome, lang locale.Lang) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.successes = append(h.successes, successCall{order, req, outcome, lang})
		},
		Debug: func(event string, attrs map[string]any) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, event)
			if reason, ok := attrs["reason"].(string); ok {
				h.reasons = append(h.reasons, reason)
			}
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	c, err := NewController(opts)
	require.NoError(t, err)
	h.c = c
	return h
}

func testForm(quantity int) CheckoutForm {
	return CheckoutForm{
		Customer: Customer{
			FirstName: "Dana",
			LastName:  "Levi",
			Phone:     "0501234567",
			Email:     "dana@example.com",
		},
		Quantity: quantity,
	}
}

func (h *harness) deliver(name string, value any) bool {
	body, err := json.Marshal(map[string]any{"Name": name, "Value": value})
	require.NoError(h.t, err)
	return h.c.Deliver(testOrigin, body)
}

func (h *harness) successCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.successes)
}

func posts(cmds []Command) []PaymentRequest {
	var out []PaymentRequest
	for _, c := range cmds {
		if c.Type == CommandPost {
			out = append(out, c.Message.Value)
		}
	}
	return out
}

func lastConfirm(cmds []Command) *ConfirmControl {
	var out *ConfirmControl
	for _, c := range cmds {
		if c.Type == CommandConfirm {
			out = c.Confirm
		}
	}
	return out
}

func hasCommand(cmds []Command, typ CommandType) bool {
	for _, c := range cmds {
		if c.Type == typ {
			return true
		}
	}
	return false
}

// toReady submits qty tickets and reports a frame height.
func (h *harness) toReady(quantity int) []Command {
	require.NoError(h.t, h.c.Submit(context.Background(), testForm(quantity)))
	require.True(h.t, h.deliver(MessageHeight, 640))
	require.Equal(h.t, StateReady, h.c.State())
	return h.outbox.Drain()
}

func TestSubmitLoadsFrame(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.c.Submit(context.Background(), testForm(3)))
	assert.Equal(t, StateLoading, h.c.State())
	assert.Equal(t, "480", h.c.Request().Amount)

	cmds := h.outbox.Drain()
	require.NotEmpty(t, cmds)
	assert.Equal(t, CommandLoad, cmds[0].Type)
	assert.Equal(t, testOrigin+"/nedarimplus/iframe/?language=he", cmds[0].URL)
	assert.Empty(t, posts(cmds))

	confirm := lastConfirm(cmds)
	require.NotNil(t, confirm)
	assert.True(t, confirm.Visible)
	assert.False(t, confirm.Enabled)
}

func TestHeightMakesReadyAndPostsOnce(t *testing.T) {
	h := newHarness(t, nil)
	cmds := h.toReady(3)

	reqs := posts(cmds)
	require.Len(t, reqs, 1)
	assert.Equal(t, "480", reqs[0].Amount)
	assert.Equal(t, "הזמנה ל-3 כרטיסים", reqs[0].Comment)
	assert.True(t, lastConfirm(cmds).Enabled)

	for _, c := range cmds {
		if c.Type == CommandPost {
			assert.Equal(t, testOrigin, c.TargetOrigin)
			assert.Equal(t, MessageFinishTransaction, c.Message.Name)
		}
	}

	// Later heights only resize.
	require.True(t, h.deliver(MessageHeight, "700px"))
	cmds = h.outbox.Drain()
	require.Len(t, cmds, 1)
	assert.Equal(t, CommandResize, cmds[0].Type)
	assert.Equal(t, 700, cmds[0].Height)
}

func TestSuccessfulPayment(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(3)

	require.NoError(t, h.c.Confirm())
	assert.Equal(t, StateSubmitting, h.c.State())
	cmds := h.outbox.Drain()
	assert.False(t, lastConfirm(cmds).Enabled)
	assert.Len(t, posts(cmds), 1)

	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK","Confirmation":"X1","LastNum":"4242","Shovar":"V7"}`))
	assert.Equal(t, StateSucceeded, h.c.State())

	outcome, ok := h.c.Outcome()
	require.True(t, ok)
	assert.True(t, outcome.Succeeded())
	assert.Equal(t, "X1", outcome.ConfirmationID)
	assert.Equal(t, "480", outcome.Amount)
	assert.Equal(t, CurrencyILS, outcome.Currency)
	assert.Equal(t, h.clock.Now(), outcome.Timestamp)

	cmds = h.outbox.Drain()
	var receipt *Receipt
	for _, c := range cmds {
		if c.Type == CommandSuccess {
			receipt = c.Receipt
		}
	}
	require.NotNil(t, receipt)
	assert.Equal(t, "X1", receipt.Confirmation)
	assert.Equal(t, "₪", receipt.CurrencySymbol)
	assert.Equal(t, "1.5.2024", receipt.Date)
	assert.Equal(t, "4242", receipt.LastDigits)
	assert.Equal(t, "כרטיס:", receipt.CardLabel)
	assert.Equal(t, "V7", receipt.Voucher)
	assert.Equal(t, "מספר שובר:", receipt.VoucherLabel)
	assert.Equal(t, "מספר עסקה:", receipt.TransactionLabel)
	assert.True(t, hasCommand(cmds, CommandTearDown))
	assert.False(t, lastConfirm(cmds).Visible)

	require.Equal(t, 1, h.successCount())
	assert.Equal(t, 3, h.successes[0].order.Quantity)
	assert.Equal(t, locale.Hebrew, h.successes[0].lang)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestDuplicateSuccessIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	require.NoError(t, h.c.Confirm())
	h.outbox.Drain()

	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK","Confirmation":"X1"}`))
	h.outbox.Drain()

	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK","Confirmation":"X2"}`))
	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"Error","Message":"late"}`))

	assert.Equal(t, StateSucceeded, h.c.State())
	outcome, _ := h.c.Outcome()
	assert.Equal(t, "X1", outcome.ConfirmationID)
	assert.Empty(t, h.outbox.Drain())
	assert.Equal(t, 1, h.successCount())
	assert.Contains(t, h.events, "outcome_ignored")
}

func TestOutcomeBeforeConfirmIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)

	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK","Confirmation":"X1"}`))
	assert.Equal(t, StateReady, h.c.State())
	_, ok := h.c.Outcome()
	assert.False(t, ok)
	assert.Equal(t, 0, h.successCount())
}

func TestMalformedResponseFailsAndRetryResends(t *testing.T) {
	h := newHarness(t, nil)
	ready := h.toReady(3)
	first := posts(ready)[0]

	require.NoError(t, h.c.Confirm())
	h.outbox.Drain()

	require.True(t, h.deliver(MessageTransactionResponse, "not json"))
	assert.Equal(t, StateFailed, h.c.State())

	outcome, ok := h.c.Outcome()
	require.True(t, ok)
	assert.False(t, outcome.Succeeded())
	assert.Equal(t, CauseProtocolParse, outcome.Cause)

	cmds := h.outbox.Drain()
	var failure *FailureNotice
	for _, c := range cmds {
		if c.Type == CommandFailure {
			failure = c.Failure
		}
	}
	require.NotNil(t, failure)
	assert.Equal(t, "שגיאה לא ידועה בתשלום", failure.Message)
	assert.Equal(t, "נסה שוב", failure.RetryLabel)
	confirm := lastConfirm(cmds)
	assert.True(t, confirm.Visible)
	assert.False(t, confirm.Enabled)
	assert.False(t, hasCommand(cmds, CommandTearDown))

	require.NoError(t, h.c.Retry())
	assert.Equal(t, StateReady, h.c.State())
	_, ok = h.c.Outcome()
	assert.False(t, ok)

	cmds = h.outbox.Drain()
	resent := posts(cmds)
	require.Len(t, resent, 1)
	assert.Equal(t, first, resent[0])
	assert.True(t, lastConfirm(cmds).Enabled)
	assert.Equal(t, "בצע תשלום", lastConfirm(cmds).Label)
}

func TestProviderErrorMessageIsShown(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Lang = locale.English })
	h.toReady(2)
	require.NoError(t, h.c.Confirm())
	h.outbox.Drain()

	require.True(t, h.deliver(MessageTransactionResponse, map[string]any{
		"Status":    "Error",
		"Message":   "Card declined",
		"ErrorCode": "033",
	}))
	assert.Equal(t, StateFailed, h.c.State())

	var failure *FailureNotice
	for _, c := range h.outbox.Drain() {
		if c.Type == CommandFailure {
			failure = c.Failure
		}
	}
	require.NotNil(t, failure)
	assert.Equal(t, "Payment Error", failure.Title)
	assert.Equal(t, "Card declined", failure.Message)
	assert.Equal(t, "033", failure.Code)
	assert.Equal(t, CauseProvider, failure.Cause)
}

func TestUntrustedOriginIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Submit(context.Background(), testForm(1)))
	h.outbox.Drain()

	body := json.RawMessage(`{"Name":"Height","Value":640}`)
	for _, origin := range []string{"https://www.matara.pro", "http://matara.pro", "https://evil.example", "null", ""} {
		assert.False(t, h.c.Deliver(origin, body), origin)
	}
	assert.Equal(t, StateLoading, h.c.State())
	assert.Empty(t, h.outbox.Drain())

	assert.True(t, h.c.Deliver("https://MATARA.pro:443", body))
	assert.Equal(t, StateReady, h.c.State())
}

func TestReadyFallbackPostsWithoutHeight(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Submit(context.Background(), testForm(5)))
	h.outbox.Drain()

	h.clock.Advance(4 * time.Second)
	assert.Equal(t, StateLoading, h.c.State())

	h.clock.Advance(time.Second)
	assert.Equal(t, StateReady, h.c.State())
	cmds := h.outbox.Drain()
	reqs := posts(cmds)
	require.Len(t, reqs, 1)
	assert.Equal(t, "750", reqs[0].Amount)
	assert.True(t, lastConfirm(cmds).Enabled)
	assert.Contains(t, h.reasons, "fallback")

	// A late height does not post again.
	require.True(t, h.deliver(MessageHeight, 600))
	assert.Empty(t, posts(h.outbox.Drain()))
}

func TestOutcomeTimeout(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	require.NoError(t, h.c.Confirm())
	h.outbox.Drain()

	h.clock.Advance(3 * time.Minute)
	assert.Equal(t, StateFailed, h.c.State())
	outcome, _ := h.c.Outcome()
	assert.Equal(t, CauseTimeout, outcome.Cause)

	cmds := h.outbox.Drain()
	assert.True(t, hasCommand(cmds, CommandTearDown))
	assert.True(t, hasCommand(cmds, CommandFailure))

	// A reply after the timeout changes nothing.
	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK"}`))
	assert.Equal(t, StateFailed, h.c.State())

	// Retry reloads the torn-down frame and posts on its first height.
	require.NoError(t, h.c.Retry())
	cmds = h.outbox.Drain()
	assert.True(t, hasCommand(cmds, CommandLoad))
	assert.Empty(t, posts(cmds))

	require.True(t, h.deliver(MessageHeight, 640))
	reqs := posts(h.outbox.Drain())
	require.Len(t, reqs, 1)
	assert.Equal(t, "160", reqs[0].Amount)
}

func TestRetryReloadFallsBackWithoutHeight(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	require.NoError(t, h.c.Confirm())
	h.clock.Advance(3 * time.Minute)
	require.NoError(t, h.c.Retry())
	h.outbox.Drain()

	h.clock.Advance(5 * time.Second)
	assert.Len(t, posts(h.outbox.Drain()), 1)
}

func TestConfirmBeforeReloadedFrameReports(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	require.NoError(t, h.c.Confirm())
	h.clock.Advance(3 * time.Minute)
	require.NoError(t, h.c.Retry())
	h.outbox.Drain()

	// Confirmed while the reloaded frame is still loading: nothing is sent yet.
	require.NoError(t, h.c.Confirm())
	assert.Equal(t, StateSubmitting, h.c.State())
	assert.Empty(t, posts(h.outbox.Drain()))

	require.True(t, h.deliver(MessageHeight, 640))
	reqs := posts(h.outbox.Drain())
	require.Len(t, reqs, 1)
	assert.Equal(t, "160", reqs[0].Amount)
	assert.Equal(t, StateSubmitting, h.c.State())

	// Later heights do not resend.
	require.True(t, h.deliver(MessageHeight, 700))
	assert.Empty(t, posts(h.outbox.Drain()))

	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"OK","Confirmation":"X2"}`))
	assert.Equal(t, StateSucceeded, h.c.State())
	assert.Equal(t, 1, h.successCount())
}

func TestConfirmBeforeReloadFallsBackWithoutHeight(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	require.NoError(t, h.c.Confirm())
	h.clock.Advance(3 * time.Minute)
	require.NoError(t, h.c.Retry())
	require.NoError(t, h.c.Confirm())
	h.outbox.Drain()

	h.clock.Advance(5 * time.Second)
	assert.Len(t, posts(h.outbox.Drain()), 1)
	assert.Equal(t, StateSubmitting, h.c.State())
	assert.Contains(t, h.reasons, "fallback")

	// The outcome timer of the confirmed attempt is still running.
	h.clock.Advance(3 * time.Minute)
	assert.Equal(t, StateFailed, h.c.State())
	outcome, _ := h.c.Outcome()
	assert.Equal(t, CauseTimeout, outcome.Cause)
}

func TestStaleTimerAfterRetryIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.clock.leaky = true
	h.toReady(1)

	require.NoError(t, h.c.Confirm())
	h.clock.Advance(time.Minute)
	require.True(t, h.deliver(MessageTransactionResponse, `{"Status":"Error","Message":"declined"}`))
	require.NoError(t, h.c.Retry())

	h.clock.Advance(time.Minute)
	require.NoError(t, h.c.Confirm())

	// The first attempt's timer fires here; the second attempt is untouched.
	h.clock.Advance(time.Minute + time.Second)
	assert.Equal(t, StateSubmitting, h.c.State())

	h.clock.Advance(2 * time.Minute)
	assert.Equal(t, StateFailed, h.c.State())
	outcome, _ := h.c.Outcome()
	assert.Equal(t, CauseTimeout, outcome.Cause)
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, nil)

	form := testForm(1)
	form.Customer.Email = ""
	err := h.c.Submit(context.Background(), form)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)
	assert.Equal(t, StateIdle, h.c.State())
	assert.Empty(t, h.outbox.Drain())

	form = testForm(1)
	form.Customer.NationalID = "123456789"
	require.True(t, errors.As(h.c.Submit(context.Background(), form), &verr))
	assert.Equal(t, "national_id", verr.Field)

	form.Customer.NationalID = "000000018"
	require.NoError(t, h.c.Submit(context.Background(), form))
	assert.ErrorIs(t, h.c.Submit(context.Background(), form), ErrIllegalTransition)
}

func TestSubmitPricingError(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Pricer = tieredPricer{err: errors.New("pricing down")} })

	err := h.c.Submit(context.Background(), testForm(1))
	require.Error(t, err)
	assert.Equal(t, StateIdle, h.c.State())
	assert.Empty(t, h.outbox.Drain())
}

func TestConfirmAndRetryGuards(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.c.Confirm(), ErrIllegalTransition)
	assert.ErrorIs(t, h.c.Retry(), ErrIllegalTransition)

	require.NoError(t, h.c.Submit(context.Background(), testForm(1)))
	assert.ErrorIs(t, h.c.Confirm(), ErrIllegalTransition)
	assert.Equal(t, StateLoading, h.c.State())
}

func TestConfirmWithoutFrameFails(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	h.outbox.TearDown()
	h.outbox.Drain()

	require.NoError(t, h.c.Confirm())
	assert.Equal(t, StateFailed, h.c.State())
	outcome, _ := h.c.Outcome()
	assert.Equal(t, CauseDelivery, outcome.Cause)
}

func TestSetLangChangesLabels(t *testing.T) {
	h := newHarness(t, nil)
	h.toReady(1)
	h.c.SetLang(locale.English)
	assert.Equal(t, locale.English, h.c.Lang())

	require.NoError(t, h.c.Confirm())
	assert.Equal(t, "Processing payment...", lastConfirm(h.outbox.Drain()).Label)
}

func TestClosedControllerIgnoresEverything(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.Submit(context.Background(), testForm(1)))
	h.outbox.Drain()

	h.c.Close()
	assert.True(t, h.deliver(MessageHeight, 640))
	h.clock.Advance(time.Hour)
	assert.Equal(t, StateLoading, h.c.State())
	assert.Empty(t, h.outbox.Drain())
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"surface", func(o *Options) { o.Surface = nil }},
		{"renderer", func(o *Options) { o.Renderer = nil }},
		{"pricer", func(o *Options) { o.Pricer = nil }},
		{"frame url", func(o *Options) { o.Provider.FrameURL = "" }},
		{"origin", func(o *Options) { o.Provider.TrustedOrigin = "matara.pro" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outbox := NewOutbox()
			opts := Options{Provider: testProvider(), Pricer: tieredPricer{}, Surface: outbox, Renderer: outbox}
			tt.mutate(&opts)
			_, err := NewController(opts)
			assert.Error(t, err)
		})
	}
}
