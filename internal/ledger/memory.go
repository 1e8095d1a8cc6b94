package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// Memory is an in-process Ledger used by tests. It enforces the same
// idempotence contract as the real backends: the first Record for a
// given CorrelationID wins, later calls are silently ignored.
type Memory struct {
	mu      sync.Mutex
	records map[string]domain.ProcessedPayment
}

// NewMemory constructs an empty Memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.ProcessedPayment)}
}

func (m *Memory) Record(_ context.Context, payment domain.PaymentMessage, processor domain.Processor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := payment.CorrelationID.String()
	if _, exists := m.records[key]; exists {
		return nil
	}
	m.records[key] = domain.ProcessedPayment{
		CorrelationID: payment.CorrelationID,
		AmountCents:   payment.AmountCents,
		RequestedAt:   payment.RequestedAt,
		Processor:     processor,
		PersistedAt:   time.Now().UTC(),
	}
	return nil
}

func (m *Memory) Summarize(_ context.Context, from, to time.Time) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out Summary
	for _, rec := range m.records {
		if !from.IsZero() && rec.RequestedAt.Before(from) {
			continue
		}
		if !to.IsZero() && rec.RequestedAt.After(to) {
			continue
		}
		amount := domain.AmountFromCents(rec.AmountCents)
		switch rec.Processor {
		case domain.Default:
			out.Default.TotalRequests++
			out.Default.TotalAmount += amount
		case domain.Fallback:
			out.Fallback.TotalRequests++
			out.Fallback.TotalAmount += amount
		}
	}
	return out, nil
}

// Records returns a snapshot of all stored records, for test assertions.
func (m *Memory) Records() []domain.ProcessedPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProcessedPayment, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out
}

var _ Ledger = (*Memory)(nil)
