package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"venue-tickets-api/models"
)

// Pinger is satisfied by database.Connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger wraps a redis client so the handler can be tested without one.
type RedisPinger func(ctx context.Context) error

type CheckoutCounter interface {
	Len() int
}

type HealthHandler struct {
	db        Pinger
	redis     RedisPinger
	checkouts CheckoutCounter
	startTime time.Time
}

// NewHealthHandler accepts a nil db when coupons are validated remotely.
func NewHealthHandler(db Pinger, redis RedisPinger, checkouts CheckoutCounter) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		checkouts: checkouts,
		startTime: time.Now(),
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := models.HealthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Database:  "disabled",
		Redis:     "connected",
		Uptime:    fmt.Sprintf("%v", time.Since(h.startTime).Round(time.Second)),
		GoVersion: runtime.Version(),
	}
	if h.checkouts != nil {
		health.Checkouts = h.checkouts.Len()
	}

	if h.db != nil {
		dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer dbCancel()

		health.Database = "connected"
		if err := h.db.Ping(dbCtx); err != nil {
			health.Status = "degraded"
			health.Database = "error"
		}
	}

	if h.redis != nil {
		redisCtx, redisCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer redisCancel()

		if err := h.redis(redisCtx); err != nil {
			health.Status = "degraded"
			health.Redis = "error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
