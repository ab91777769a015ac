package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"venue-tickets-api/handshake"
	"venue-tickets-api/locale"
	"venue-tickets-api/models"
	"venue-tickets-api/queue"
	"venue-tickets-api/utils"
	"venue-tickets-api/worker"
)

// TokenIssuer is satisfied by auth.JWTService.
type TokenIssuer interface {
	GenerateToken(checkoutID string) (string, time.Time, error)
}

// Enqueuer is satisfied by queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload interface{}) (string, error)
}

type CheckoutOptions struct {
	Provider       handshake.ProviderConfig
	Pricer         handshake.Pricer
	Texts          *locale.Table
	Languages      *LanguageHandler
	Registry       *handshake.Registry
	Tokens         TokenIssuer
	Jobs           Enqueuer // nil disables sale reports
	Clock          handshake.Clock
	ReadyTimeout   time.Duration
	OutcomeTimeout time.Duration
	Debug          bool
}

// CheckoutHandler exposes the payment handshake to the page relay.
type CheckoutHandler struct {
	opts CheckoutOptions
}

// CheckoutView is what every checkout endpoint answers with.
type CheckoutView struct {
	CheckoutID string                        `json:"checkout_id"`
	Token      string                        `json:"token,omitempty"`
	ExpiresAt  *time.Time                    `json:"expires_at,omitempty"`
	State      handshake.State               `json:"state"`
	Accepted   *bool                         `json:"accepted,omitempty"`
	Outcome    *handshake.TransactionOutcome `json:"outcome,omitempty"`
	Commands   []handshake.Command           `json:"commands"`
}

func NewCheckoutHandler(opts CheckoutOptions) *CheckoutHandler {
	return &CheckoutHandler{opts: opts}
}

// CreateCheckout starts a checkout for the submitted form.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lang, ok := locale.ParseLang(req.Language)
	if !ok {
		lang = h.opts.Languages.Current(r)
	}

	checkoutID := uuid.New().String()
	outbox := handshake.NewOutbox()

	controller, err := handshake.NewController(handshake.Options{
		Provider:       h.opts.Provider,
		Pricer:         h.opts.Pricer,
		Locale:         h.opts.Texts,
		Lang:           lang,
		Surface:        outbox,
		Renderer:       outbox,
		Clock:          h.opts.Clock,
		ReadyTimeout:   h.opts.ReadyTimeout,
		OutcomeTimeout: h.opts.OutcomeTimeout,
		OnSuccess:      h.successHook(checkoutID),
		Debug:          h.debugHook(checkoutID),
	})
	if err != nil {
		log.Printf("[CheckoutID: %s] Error creating controller: %v", checkoutID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Payment system unavailable")
		return
	}

	if err := controller.Submit(r.Context(), formFromRequest(req)); err != nil {
		controller.Close()
		var verr *handshake.ValidationError
		if errors.As(err, &verr) {
			utils.SendErrorResponseWithData(w, http.StatusBadRequest, h.validationMessage(verr, lang), verr)
			return
		}
		log.Printf("[CheckoutID: %s] Error submitting checkout: %v", checkoutID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, h.opts.Texts.Pick("payment_system_error", lang,
			"שגיאה בטעינת מערכת התשלומים. אנא נסה שוב.", "Error loading payment system. Please try again."))
		return
	}

	token, expiresAt, err := h.opts.Tokens.GenerateToken(checkoutID)
	if err != nil {
		controller.Close()
		log.Printf("[CheckoutID: %s] Error issuing token: %v", checkoutID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not start checkout")
		return
	}

	h.opts.Registry.Add(&handshake.Entry{ID: checkoutID, Controller: controller, Outbox: outbox})
	log.Printf("[CheckoutID: %s] Checkout started for %d tickets, amount %s", checkoutID, req.Quantity, controller.Request().Amount)

	view := h.view(checkoutID, controller, outbox)
	view.Token = token
	view.ExpiresAt = &expiresAt
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: view})
}

// RelayMessage feeds one frame message into the checkout. The origin in the
// body is whatever the page's message event carried; it keeps a page from
// relaying frames it did not mean to, but a caller with the token can set it
// to anything.
func (h *CheckoutHandler) RelayMessage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	var req models.FrameMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("null")
	}

	h.syncLanguage(r, entry.Controller)
	accepted := entry.Controller.Deliver(req.Origin, req.Data)

	view := h.view(entry.ID, entry.Controller, entry.Outbox)
	view.Accepted = &accepted
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: view})
}

// Confirm is the user's explicit go-ahead for the charge.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm", (*handshake.Controller).Confirm)
}

// Retry goes back to ready after a failure.
func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "retry", (*handshake.Controller).Retry)
}

// GetCheckout returns state, outcome and any commands queued by timers.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	h.syncLanguage(r, entry.Controller)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(entry.ID, entry.Controller, entry.Outbox),
	})
}

func (h *CheckoutHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(*handshake.Controller) error) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	h.syncLanguage(r, entry.Controller)
	if err := fn(entry.Controller); err != nil {
		log.Printf("[CheckoutID: %s] %s rejected: %v", entry.ID, action, err)
		status := http.StatusInternalServerError
		if errors.Is(err, handshake.ErrIllegalTransition) {
			status = http.StatusConflict
		}
		utils.SendErrorResponseWithData(w, status, "Action not allowed in the current state",
			h.view(entry.ID, entry.Controller, entry.Outbox))
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(entry.ID, entry.Controller, entry.Outbox),
	})
}

func (h *CheckoutHandler) entry(w http.ResponseWriter, r *http.Request) (*handshake.Entry, bool) {
	id := mux.Vars(r)["id"]
	entry, ok := h.opts.Registry.Get(id)
	if !ok {
		utils.SendErrorResponse(w, http.StatusNotFound, "Checkout not found")
		return nil, false
	}
	return entry, true
}

// syncLanguage follows a language toggle made while the checkout is open.
func (h *CheckoutHandler) syncLanguage(r *http.Request, c *handshake.Controller) {
	if lang, ok := h.opts.Languages.Stored(r); ok && lang != c.Lang() {
		c.SetLang(lang)
	}
}

func (h *CheckoutHandler) view(id string, c *handshake.Controller, outbox *handshake.Outbox) CheckoutView {
	view := CheckoutView{
		CheckoutID: id,
		State:      c.State(),
		Commands:   outbox.Drain(),
	}
	if outcome, ok := c.Outcome(); ok {
		view.Outcome = &outcome
	}
	return view
}

// successHook queues a sale report for the venue's mailbox. The outcome was
// relayed by the buyer's page, so it is reported as unverified and nothing is
// ever mailed to an address taken from the request.
func (h *CheckoutHandler) successHook(checkoutID string) handshake.SuccessHook {
	return func(order handshake.Order, req handshake.PaymentRequest, outcome handshake.TransactionOutcome, lang locale.Lang) {
		log.Printf("[CheckoutID: %s] Page reported payment, confirmation %q amount %s", checkoutID, outcome.ConfirmationID, outcome.Amount)
		if h.opts.Jobs == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		job := worker.NewSaleReportJob(checkoutID, order, outcome, lang)
		if _, err := h.opts.Jobs.Enqueue(ctx, queue.JobTypeSaleReport, job); err != nil {
			log.Printf("[CheckoutID: %s] Error enqueuing sale report: %v", checkoutID, err)
		}
	}
}

func (h *CheckoutHandler) debugHook(checkoutID string) handshake.DebugHook {
	if !h.opts.Debug {
		return nil
	}
	return func(event string, attrs map[string]any) {
		log.Printf("[CheckoutID: %s] handshake %s %v", checkoutID, event, attrs)
	}
}

func (h *CheckoutHandler) validationMessage(err *handshake.ValidationError, lang locale.Lang) string {
	if err.Field == "national_id" {
		return h.opts.Texts.Pick("invalid_id_number", lang, "מספר תעודת זהות לא תקין", "Invalid ID number")
	}
	return h.opts.Texts.Pick("fill_required_fields", lang, "אנא מלא את כל השדות הנדרשים", "Please fill in all required fields")
}

func formFromRequest(req models.CheckoutRequest) handshake.CheckoutForm {
	return handshake.CheckoutForm{
		Customer: handshake.Customer{
			NationalID: strings.TrimSpace(req.NationalID),
			FirstName:  strings.TrimSpace(req.FirstName),
			LastName:   strings.TrimSpace(req.LastName),
			Street:     strings.TrimSpace(req.Street),
			City:       strings.TrimSpace(req.City),
			Phone:      strings.TrimSpace(req.Phone),
			Email:      strings.TrimSpace(req.Email),
		},
		Quantity:     req.Quantity,
		CouponCode:   strings.TrimSpace(req.CouponCode),
		Installments: req.Installments,
	}
}
