// Package handler serves the liveness/readiness endpoint.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ger/backend/internal/log"
)

const checkTimeout = 2 * time.Second

// Status values reported by the health endpoint.
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Handler reports SERVING when every registered dependency answers a ping.
type Handler struct {
	checks map[string]Pinger
}

// NewHandler returns a Handler. Nil pingers are skipped.
func NewHandler(checks map[string]Pinger) *Handler {
	h := &Handler{checks: make(map[string]Pinger, len(checks))}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP answers 200 when healthy and 503 otherwise. Failure details go to the log only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := response{Status: StatusServing}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			log.Warn(ctx).Err(err).Str("check", name).Msg("health: check failed")
			resp.Checks[name] = StatusNotServing
			resp.Status = StatusNotServing
			continue
		}
		resp.Checks[name] = StatusServing
	}

	code := http.StatusOK
	if resp.Status != StatusServing {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
