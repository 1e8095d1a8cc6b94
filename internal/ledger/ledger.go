// Package ledger defines the durable, idempotent payment record store
// (spec.md section 4.5). Two backends implement Ledger: ledger/postgres
// (production, via database/sql + lib/pq) and ledger/embedded (bbolt,
// for local/dev/test runs without a Postgres instance).
package ledger

import (
	"context"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// ProcessorSummary is the per-processor aggregate spec.md section 4.5
// and section 6's /payments-summary contract require.
type ProcessorSummary struct {
	TotalRequests int
	TotalAmount   float64
}

// Summary is the full two-processor aggregation result.
type Summary struct {
	Default  ProcessorSummary
	Fallback ProcessorSummary
}

// Ledger is the durable, idempotent payment record store.
type Ledger interface {
	// Record inserts payment under processor, ignoring the call if
	// payment.CorrelationID already has a row (spec.md's "ON CONFLICT
	// DO NOTHING" idempotence contract, invariant I3). It never returns an
	// error for a duplicate; only genuine I/O failures are errors.
	Record(ctx context.Context, payment domain.PaymentMessage, processor domain.Processor) error

	// Summarize returns per-processor counts and totals for records whose
	// RequestedAt falls within [from, to]. Either bound may be the zero
	// time.Time, meaning unbounded on that side.
	Summarize(ctx context.Context, from, to time.Time) (Summary, error)
}
