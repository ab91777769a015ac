package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"venue-tickets-api/config"
	"venue-tickets-api/database"
	"venue-tickets-api/handlers"
	"venue-tickets-api/handshake"
	"venue-tickets-api/locale"
	"venue-tickets-api/middleware"
	"venue-tickets-api/pricing"
	"venue-tickets-api/queue"
	"venue-tickets-api/services/auth"
	"venue-tickets-api/services/coupon"
	"venue-tickets-api/services/email"
	"venue-tickets-api/worker"
)

const saleReportQueueName = "ticket_sale_reports"

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		// Only slow or failing requests are logged; the relay polls constantly.
		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			log.Printf(
				"[RequestID: %s] %s %s %s %d %v",
				requestID,
				r.Method,
				r.RequestURI,
				r.RemoteAddr,
				wrapper.status,
				elapsed,
			)
		}
	})
}

// frameOrigins lists the trusted origin and, when it differs, the origin the
// frame is loaded from.
func frameOrigins(p handshake.ProviderConfig) []string {
	origins := []string{p.TrustedOrigin}
	if u, err := url.Parse(p.FrameURL); err == nil && u.Host != "" {
		if frame := u.Scheme + "://" + u.Host; frame != p.TrustedOrigin {
			origins = append(origins, frame)
		}
	}
	return origins
}

func loadTexts(path string) *locale.Table {
	var (
		texts *locale.Table
		err   error
	)
	if path != "" {
		texts, err = locale.LoadFile(path)
	} else {
		texts, err = locale.Default()
	}
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}
	return texts
}

func connectDatabase(cfg database.DatabaseConfig) *database.Connection {
	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg)
		if err == nil {
			return db
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	log.Fatalf("Failed to connect to database after retries: %v", err)
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)
	log.Printf("Server starting with %d CPUs available", runtime.NumCPU())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Configuration loaded successfully")

	texts := loadTexts(cfg.Checkout.LocaleFile)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	pingCancel()
	log.Println("Successfully connected to Redis")

	// Coupons come either from a remote validation endpoint or the local
	// coupons table; both sit behind the Redis cache.
	var db *database.Connection
	var source coupon.Validator
	if cfg.Coupons.ValidationURL != "" {
		var transport http.RoundTripper = http.DefaultTransport
		if cfg.Server.OtelEnabled {
			transport = otelhttp.NewTransport(transport)
		}
		source = coupon.NewRemoteValidator(cfg.Coupons.ValidationURL, cfg.Coupons.Timeout, transport)
		log.Printf("Validating coupons against %s", cfg.Coupons.ValidationURL)
	} else {
		db = connectDatabase(cfg.Database)
		defer db.Close()
		source = coupon.NewSQLStore(db)
		log.Println("Successfully connected to database")
	}
	coupons := coupon.NewCachedValidator(source, redisClient, cfg.Coupons.CacheTTL)
	priceService := pricing.NewService(coupons)

	jobQueue := queue.NewQueue(redisClient, saleReportQueueName)

	emailService := email.NewSMTPService(cfg.SMTP)
	workerConcurrency := cfg.Redis.WorkerConcurrency
	if workerConcurrency < 1 {
		workerConcurrency = 1
	} else if workerConcurrency > 8 {
		workerConcurrency = 8
	}
	reportWorker := worker.NewWorker(jobQueue, emailService, texts, cfg.Checkout.SaleReportEmail)
	reportWorker.Start(workerConcurrency)
	log.Printf("Started sale report worker with %d threads", workerConcurrency)

	var reports handlers.Enqueuer
	if cfg.Checkout.SaleReportEmail != "" {
		reports = jobQueue
	} else {
		log.Println("Warning: SALE_REPORT_EMAIL not set, sale reports disabled")
	}

	registry := handshake.NewRegistry(cfg.Checkout.SessionTTL)
	registry.Start(time.Minute)

	tokens := auth.NewJWTService(cfg.Checkout.TokenSecret, "venue-tickets-api", cfg.Checkout.SessionTTL)

	languageHandler := handlers.NewLanguageHandler(handlers.NewCookieStore(cfg.Session), texts)
	pageHandler, err := handlers.NewPageHandler(languageHandler, texts, cfg.Provider.TrustedOrigin, cfg.Provider.Currency.Symbol())
	if err != nil {
		log.Fatalf("Failed to load page templates: %v", err)
	}
	priceHandler := handlers.NewPriceHandler(priceService, cfg.Provider.Currency.Symbol())
	couponHandler := handlers.NewCouponHandler(coupons)
	checkoutHandler := handlers.NewCheckoutHandler(handlers.CheckoutOptions{
		Provider:       cfg.Provider,
		Pricer:         priceService,
		Texts:          texts,
		Languages:      languageHandler,
		Registry:       registry,
		Tokens:         tokens,
		Jobs:           reports,
		ReadyTimeout:   cfg.Checkout.ReadyTimeout,
		OutcomeTimeout: cfg.Checkout.OutcomeTimeout,
		Debug:          cfg.Checkout.Debug,
	})

	var dbPinger handlers.Pinger
	if db != nil {
		dbPinger = db
	}
	healthHandler := handlers.NewHealthHandler(dbPinger, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, registry)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware(frameOrigins(cfg.Provider)...))

	router.HandleFunc("/", pageHandler.Index).Methods("GET")
	router.PathPrefix("/static/").Handler(handlers.Static()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(rateLimiter.RateLimitMiddleware())

	api.HandleFunc("/health", healthHandler.Health).Methods("GET")
	api.HandleFunc("/translations", languageHandler.GetTranslations).Methods("GET")
	api.HandleFunc("/language", languageHandler.SetLanguage).Methods("POST")
	api.HandleFunc("/price", priceHandler.GetPrice).Methods("GET")
	api.HandleFunc("/coupons/{code}", couponHandler.ValidateCoupon).Methods("GET")
	api.HandleFunc("/checkout", checkoutHandler.CreateCheckout).Methods("POST")

	checkout := api.PathPrefix("/checkout/{id}").Subrouter()
	checkout.Use(middleware.CheckoutAuth(tokens))
	checkout.HandleFunc("", checkoutHandler.GetCheckout).Methods("GET")
	checkout.HandleFunc("/messages", checkoutHandler.RelayMessage).Methods("POST")
	checkout.HandleFunc("/confirm", checkoutHandler.Confirm).Methods("POST")
	checkout.HandleFunc("/retry", checkoutHandler.Retry).Methods("POST")

	var handler http.Handler = router
	if cfg.Server.OtelEnabled {
		handler = otelhttp.NewHandler(router, "venue-tickets-api")
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopping checkout sweeper...")
	registry.Stop()

	log.Println("Stopping sale report worker...")
	reportWorker.Stop()

	log.Println("Closing Redis connections...")
	redisClient.Close()

	log.Println("Server exited properly")
}
