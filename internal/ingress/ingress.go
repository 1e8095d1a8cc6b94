// Package ingress implements the HTTP surface named in spec.md section 6:
// POST /payments, GET /payments-summary, GET /health. It never dispatches
// to a processor itself; it only validates, timestamps, and enqueues.
package ingress

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
	"github.com/rinha-intermediary/payment-intermediary/internal/queue"
)

// Handler wires the ingress endpoints to a Queue Adapter and a Ledger.
type Handler struct {
	queue  queue.Adapter
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(q queue.Adapter, l ledger.Ledger, logger *slog.Logger) *Handler {
	return &Handler{queue: q, ledger: l, logger: logger}
}

// Register attaches the ingress routes to router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/payments", h.handlePayments).Methods(http.MethodPost)
	router.HandleFunc("/payments-summary", h.handleSummary).Methods(http.MethodGet)
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

type paymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

// handlePayments implements spec.md section 4.1: validate, stamp
// requested_at, enqueue. It never blocks on a processor call.
func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	correlationID, err := uuid.Parse(req.CorrelationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "correlationId must be a valid UUID")
		return
	}
	if !validAmount(req.Amount) {
		writeError(w, http.StatusBadRequest, "amount must be > 0 with at most two decimal digits")
		return
	}

	msg := domain.PaymentMessage{
		CorrelationID: correlationID,
		AmountCents:   int64(math.Round(req.Amount * 100)),
		RequestedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ingress: marshal payment message failed", "correlation_id", correlationID, "error", err)
		writeError(w, http.StatusInternalServerError, "unable to accept payment")
		return
	}

	if err := h.queue.Enqueue(r.Context(), payload); err != nil {
		h.logger.Error("ingress: enqueue failed", "correlation_id", correlationID, "error", err)
		writeError(w, http.StatusInternalServerError, "unable to accept payment")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// validAmount rejects non-positive amounts and amounts carrying more than
// two decimal digits, per spec.md section 4.1.
func validAmount(amount float64) bool {
	if amount <= 0 {
		return false
	}
	cents := amount * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

type summaryBucket struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type summaryResponse struct {
	Default  summaryBucket `json:"default"`
	Fallback summaryBucket `json:"fallback"`
}

// handleSummary implements GET /payments-summary, a thin pass-through to
// the Ledger's aggregation query.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, err := parseOptionalTime(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an ISO-8601 timestamp")
		return
	}
	to, err := parseOptionalTime(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an ISO-8601 timestamp")
		return
	}

	summary, err := h.ledger.Summarize(r.Context(), from, to)
	if err != nil {
		h.logger.Error("ingress: summarize failed", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to compute summary")
		return
	}

	resp := summaryResponse{
		Default:  summaryBucket{TotalRequests: summary.Default.TotalRequests, TotalAmount: round2(summary.Default.TotalAmount)},
		Fallback: summaryBucket{TotalRequests: summary.Fallback.TotalRequests, TotalAmount: round2(summary.Fallback.TotalAmount)},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
