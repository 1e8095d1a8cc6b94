// Package embedded implements ledger.Ledger on top of go.etcd.io/bbolt,
// for local and test runs that don't have a Postgres instance available.
// Adapted from the teacher repo's internal/database/database.go: same
// open/bucket/gob-encode shape, generalized from a free-form Payment
// record to the processed_payments idempotence contract of
// ledger.Ledger. Unlike a SQL UNIQUE constraint, bbolt has no native
// conflict-on-insert primitive, so idempotence here is enforced by
// checking for an existing key inside the same read-write transaction
// before writing.
package embedded

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	goBolt "go.etcd.io/bbolt"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
)

const paymentsBucket = "processed_payments"

// Ledger is a bbolt-backed ledger.Ledger.
type Ledger struct {
	db *goBolt.DB
}

type record struct {
	CorrelationID string
	AmountCents   int64
	RequestedAt   time.Time
	Processor     string
	PersistedAt   time.Time
}

// Open opens (creating if absent) the bbolt database at path.
func Open(path string) (*Ledger, error) {
	db, err := goBolt.Open(path, 0600, &goBolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger/embedded: open: %w", err)
	}
	err = db.Update(func(tx *goBolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(paymentsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger/embedded: create bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying file handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record implements ledger.Ledger, ignoring the call if CorrelationID is
// already present (idempotence, invariant I3).
func (l *Ledger) Record(_ context.Context, payment domain.PaymentMessage, processor domain.Processor) error {
	key := []byte(payment.CorrelationID.String())
	err := l.db.Update(func(tx *goBolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentsBucket))
		if bucket.Get(key) != nil {
			// Already recorded: a redelivery of an already-persisted
			// payment, or a duplicate correlation id. Silently ignored.
			return nil
		}
		rec := record{
			CorrelationID: payment.CorrelationID.String(),
			AmountCents:   payment.AmountCents,
			RequestedAt:   payment.RequestedAt.UTC(),
			Processor:     string(processor),
			PersistedAt:   time.Now().UTC(),
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return bucket.Put(key, buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("ledger/embedded: record: %w", err)
	}
	return nil
}

// Summarize implements ledger.Ledger, scanning the whole bucket and
// filtering in-process. Adequate for local/dev/test scale; the
// production path is ledger/postgres, whose SQL does the filtering.
func (l *Ledger) Summarize(_ context.Context, from, to time.Time) (ledger.Summary, error) {
	var out ledger.Summary
	err := l.db.View(func(tx *goBolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentsBucket))
		return bucket.ForEach(func(_, v []byte) error {
			var rec record
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if !from.IsZero() && rec.RequestedAt.Before(from) {
				return nil
			}
			if !to.IsZero() && rec.RequestedAt.After(to) {
				return nil
			}
			amount := domain.AmountFromCents(rec.AmountCents)
			switch domain.Processor(rec.Processor) {
			case domain.Default:
				out.Default.TotalRequests++
				out.Default.TotalAmount += amount
			case domain.Fallback:
				out.Fallback.TotalRequests++
				out.Fallback.TotalAmount += amount
			}
			return nil
		})
	})
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("ledger/embedded: summarize: %w", err)
	}
	return out, nil
}

var _ ledger.Ledger = (*Ledger)(nil)
