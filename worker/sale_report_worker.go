package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"venue-tickets-api/handshake"
	"venue-tickets-api/locale"
	"venue-tickets-api/models"
	"venue-tickets-api/queue"
	"venue-tickets-api/services/email"
)

// JobQueue is the part of queue.Queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, cause error) error
	ProcessDelayedJobs(ctx context.Context) error
}

// Worker mails sale reports to the venue in the background.
type Worker struct {
	queue     JobQueue
	sender    email.EmailSender
	texts     *locale.Table
	reportTo  string
	shutdown  chan struct{}
	isRunning bool
}

// NewWorker sends every report to reportTo. The address is configuration,
// never taken from a job.
func NewWorker(q JobQueue, sender email.EmailSender, texts *locale.Table, reportTo string) *Worker {
	return &Worker{
		queue:    q,
		sender:   sender,
		texts:    texts,
		reportTo: reportTo,
		shutdown: make(chan struct{}),
	}
}

// Start begins processing jobs
func (w *Worker) Start(concurrency int) {
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		go w.processJobs(i)
	}
	go w.pumpDelayed()

	log.Printf("Started %d worker goroutines", concurrency)
}

// Stop signals the worker to stop processing jobs
func (w *Worker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("Stopping worker...")
	close(w.shutdown)
	w.isRunning = false
}

func (w *Worker) pumpDelayed() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				log.Printf("Error processing delayed jobs: %v", err)
			}
			cancel()
		}
	}
}

func (w *Worker) processJobs(workerID int) {
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			cancel()

			if err != nil {
				log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			w.handle(workerID, job)
		}
	}
}

// handle runs one job and settles it on the queue.
func (w *Worker) handle(workerID int, job *queue.Job) {
	log.Printf("Worker %d processing job %s of type %s", workerID, job.ID, job.Type)

	if jobErr := w.processJob(job); jobErr != nil {
		log.Printf("Worker %d: Error processing job %s: %v", workerID, job.ID, jobErr)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.queue.FailJob(ctx, job, jobErr); err != nil {
			log.Printf("Worker %d: Error marking job %s as failed: %v", workerID, job.ID, err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.CompleteJob(ctx, job); err != nil {
		log.Printf("Worker %d: Error marking job %s as complete: %v", workerID, job.ID, err)
	}
}

func (w *Worker) processJob(job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeSaleReport:
		return w.processSaleReport(job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) processSaleReport(job *queue.Job) error {
	var payload models.SaleReportJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("invalid sale report payload: %v", err)
	}
	if strings.TrimSpace(w.reportTo) == "" {
		log.Printf("[CheckoutID: %s] No report address configured, dropping sale report", payload.CheckoutID)
		return nil
	}

	data := SaleReportData(w.texts, payload)
	if err := w.sender.SendSaleReport(w.reportTo, data); err != nil {
		if job.IsLastAttempt() {
			log.Printf("[CheckoutID: %s] Giving up on sale report", payload.CheckoutID)
		}
		return fmt.Errorf("failed to send sale report: %v", err)
	}

	log.Printf("[CheckoutID: %s] Sale report sent", payload.CheckoutID)
	return nil
}

// SaleReportData localizes a report job for the email template.
func SaleReportData(texts *locale.Table, p models.SaleReportJob) email.SaleReportData {
	lang, _ := locale.ParseLang(p.Lang)
	pick := func(key, he, en string) string {
		return texts.Pick(key, lang, he, en)
	}

	confirmation := p.Confirmation
	if confirmation == "" {
		confirmation = "-"
	}

	return email.SaleReportData{
		Lang:           string(lang),
		Dir:            lang.Dir(),
		CheckoutID:     p.CheckoutID,
		Name:           strings.TrimSpace(p.FirstName + " " + p.LastName),
		CustomerEmail:  p.CustomerEmail,
		CustomerPhone:  p.CustomerPhone,
		Quantity:       p.Quantity,
		Amount:         p.Amount,
		CurrencySymbol: handshake.Currency(p.Currency).Symbol(),
		Confirmation:   confirmation,
		TransactionID:  p.TransactionID,
		LastDigits:     p.LastDigits,
		Voucher:        p.Voucher,
		Date:           locale.FormatDate(p.ReportedAt, lang),
		Labels: email.SaleReportLabels{
			Subject:      pick("sale_report_subject", "דיווח מכירת כרטיסים", "Ticket sale reported by checkout"),
			Title:        pick("sale_report_title", "דווחה מכירת כרטיסים", "Ticket sale reported"),
			Unverified:   pick("sale_report_unverified", "הדיווח התקבל מהדפדפן של הרוכש ולא אומת מול ספק הסליקה.", "This report came from the buyer's browser and was not verified with the payment provider."),
			Checkout:     pick("checkout_reference", "מזהה הזמנה:", "Checkout:"),
			Customer:     pick("customer", "לקוח:", "Customer:"),
			Email:        pick("email", "אימייל", "Email"),
			Phone:        pick("phone", "טלפון", "Phone"),
			Tickets:      pick("ticket_quantity", "מספר כרטיסים", "Number of Tickets"),
			Amount:       pick("amount", "סכום:", "Amount:"),
			Confirmation: pick("confirmation_number", "מספר אישור:", "Confirmation Number:"),
			Transaction:  pick("transaction_id", "מספר עסקה:", "Transaction ID:"),
			Card:         pick("card_last_digits", "כרטיס:", "Card:"),
			Voucher:      pick("voucher_number", "מספר שובר:", "Voucher Number:"),
			Date:         pick("date", "תאריך:", "Date:"),
		},
	}
}

// NewSaleReportJob captures a checkout the buyer's page reported as paid.
func NewSaleReportJob(checkoutID string, order handshake.Order, outcome handshake.TransactionOutcome, lang locale.Lang) models.SaleReportJob {
	return models.SaleReportJob{
		CheckoutID:    checkoutID,
		Lang:          string(lang),
		FirstName:     order.Customer.FirstName,
		LastName:      order.Customer.LastName,
		CustomerEmail: strings.TrimSpace(order.Customer.Email),
		CustomerPhone: strings.TrimSpace(order.Customer.Phone),
		Quantity:      order.Quantity,
		Amount:        outcome.Amount,
		Currency:      string(outcome.Currency),
		Confirmation:  outcome.ConfirmationID,
		TransactionID: outcome.TransactionID,
		LastDigits:    outcome.LastDigits,
		Voucher:       outcome.Voucher,
		ReportedAt:    outcome.Timestamp,
	}
}
