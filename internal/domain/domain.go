// Package domain holds the core types shared by every subsystem: the
// message that crosses the queue, the durable record it becomes, and the
// processor verdicts the health oracle maintains.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Processor names the external payment processor an intermediary can
// dispatch to. It is a closed sum type over exactly two values, not an
// open interface: the two processors differ only in URL and fee, so the
// selection algorithm is a total function over a two-element lattice
// rather than a plugin point.
type Processor string

const (
	Default  Processor = "default"
	Fallback Processor = "fallback"
)

// Valid reports whether p is one of the two known processors.
func (p Processor) Valid() bool {
	return p == Default || p == Fallback
}

// PaymentMessage is the unit of work that crosses the queue. It is
// immutable once enqueued: nothing downstream rewrites CorrelationID,
// AmountCents, or RequestedAt.
type PaymentMessage struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	AmountCents   int64     `json:"amountCents"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Amount returns the payment amount as a decimal value with two
// fractional digits of precision.
func (m PaymentMessage) Amount() float64 {
	return float64(m.AmountCents) / 100
}

// ProcessedPayment is the durable record written to the ledger exactly
// once per CorrelationID.
type ProcessedPayment struct {
	CorrelationID uuid.UUID
	AmountCents   int64
	RequestedAt   time.Time
	Processor     Processor
	PersistedAt   time.Time
}

// ProcessorHealth is the volatile, TTL-bounded verdict the health oracle
// holds for a single processor. Absence of a ProcessorHealth (as opposed
// to a zero value) is itself meaningful: it means no observation has been
// made, or the last one has expired.
type ProcessorHealth struct {
	Failing         bool
	MinResponseTime time.Duration
	ObservedAt      time.Time
}

// AmountFromCents renders integer cents as a decimal amount with two
// fractional digits, matching the wire format of PaymentMessage.Amount.
func AmountFromCents(cents int64) float64 {
	return float64(cents) / 100
}
