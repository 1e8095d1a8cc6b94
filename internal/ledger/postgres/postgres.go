// Package postgres implements ledger.Ledger on top of database/sql and
// lib/pq, with the table layout
// processed_payments(correlation_id PK, amount_cents, requested_at,
// processor, persisted_at); the amount is stored as integer cents.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
)

// Ledger is a Postgres-backed ledger.Ledger.
type Ledger struct {
	db *sql.DB
}

// Open connects to dsn and ensures the processed_payments table exists.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger/postgres: ping: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS processed_payments (
	correlation_id UUID PRIMARY KEY,
	amount_cents   BIGINT NOT NULL,
	requested_at   TIMESTAMPTZ NOT NULL,
	processor      TEXT NOT NULL,
	persisted_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS processed_payments_requested_at_idx ON processed_payments (requested_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("ledger/postgres: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record implements ledger.Ledger.
func (l *Ledger) Record(ctx context.Context, payment domain.PaymentMessage, processor domain.Processor) error {
	const stmt = `
INSERT INTO processed_payments (correlation_id, amount_cents, requested_at, processor, persisted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (correlation_id) DO NOTHING
`
	_, err := l.db.ExecContext(ctx, stmt,
		payment.CorrelationID,
		payment.AmountCents,
		payment.RequestedAt.UTC(),
		string(processor),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger/postgres: record: %w", err)
	}
	return nil
}

// Summarize implements ledger.Ledger. The window filters on requested_at
// exclusively, per spec.md's Open Question resolution in favor of the
// end-to-end timestamp over persisted_at.
func (l *Ledger) Summarize(ctx context.Context, from, to time.Time) (ledger.Summary, error) {
	const query = `
SELECT processor, COUNT(*), COALESCE(SUM(amount_cents), 0)
FROM processed_payments
WHERE ($1::timestamptz IS NULL OR requested_at >= $1)
  AND ($2::timestamptz IS NULL OR requested_at <= $2)
GROUP BY processor
`
	rows, err := l.db.QueryContext(ctx, query, nullableTime(from), nullableTime(to))
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("ledger/postgres: summarize: %w", err)
	}
	defer rows.Close()

	var out ledger.Summary
	for rows.Next() {
		var processor string
		var count int
		var cents int64
		if err := rows.Scan(&processor, &count, &cents); err != nil {
			return ledger.Summary{}, fmt.Errorf("ledger/postgres: summarize scan: %w", err)
		}
		summary := ledger.ProcessorSummary{TotalRequests: count, TotalAmount: domain.AmountFromCents(cents)}
		switch domain.Processor(processor) {
		case domain.Default:
			out.Default = summary
		case domain.Fallback:
			out.Fallback = summary
		}
	}
	if err := rows.Err(); err != nil {
		return ledger.Summary{}, fmt.Errorf("ledger/postgres: summarize rows: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

var _ ledger.Ledger = (*Ledger)(nil)
