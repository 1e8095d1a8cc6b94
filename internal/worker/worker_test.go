package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
	"github.com/rinha-intermediary/payment-intermediary/internal/queue"
)

type fixedSelector struct{ processor domain.Processor }

func (s fixedSelector) BestProcessor(_ context.Context) domain.Processor { return s.processor }

type fakeDispatcher struct {
	mu        sync.Mutex
	failFor   map[string]int
	calls     map[string]int
	processor domain.Processor
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failFor: make(map[string]int), calls: make(map[string]int)}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, p domain.Processor, msg domain.PaymentMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := msg.CorrelationID.String()
	d.calls[key]++
	d.processor = p
	if remaining := d.failFor[key]; remaining > 0 {
		d.failFor[key] = remaining - 1
		return errors.New("dispatch failed")
	}
	return nil
}

func (d *fakeDispatcher) callCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueuePayment(t *testing.T, q queue.Adapter, msg domain.PaymentMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), payload))
}

func TestWorkerHappyPathDispatchPersistAck(t *testing.T) {
	q := queue.NewMemoryAdapter()
	l := ledger.NewMemory()
	dispatcher := newFakeDispatcher()
	msg := domain.PaymentMessage{CorrelationID: uuid.New(), AmountCents: 1000, RequestedAt: time.Now().UTC()}
	enqueuePayment(t, q, msg)

	pool := NewPool(Config{Concurrency: 1, VisibilityTimeout: time.Second, PollSleep: 5 * time.Millisecond, ErrorSleep: 5 * time.Millisecond},
		q, fixedSelector{domain.Default}, dispatcher, l, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	records := l.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.Default, records[0].Processor)
}

func TestWorkerDropsPoisonMessage(t *testing.T) {
	q := queue.NewMemoryAdapter()
	l := ledger.NewMemory()
	dispatcher := newFakeDispatcher()
	require.NoError(t, q.Enqueue(context.Background(), []byte("not json")))

	pool := NewPool(Config{Concurrency: 1, VisibilityTimeout: time.Second, PollSleep: 5 * time.Millisecond, ErrorSleep: 5 * time.Millisecond},
		q, fixedSelector{domain.Default}, dispatcher, l, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	assert.Empty(t, l.Records())

	// The queue must be drained, not stuck retrying the poison message.
	msg, err := q.Receive(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestWorkerDoesNotAckOnDispatchFailureThenRedelivers(t *testing.T) {
	q := queue.NewMemoryAdapter()
	l := ledger.NewMemory()
	dispatcher := newFakeDispatcher()
	id := uuid.New()
	dispatcher.failFor[id.String()] = 1 // fail once, then succeed

	msg := domain.PaymentMessage{CorrelationID: id, AmountCents: 725, RequestedAt: time.Now().UTC()}
	enqueuePayment(t, q, msg)

	pool := NewPool(Config{Concurrency: 1, VisibilityTimeout: 20 * time.Millisecond, PollSleep: 5 * time.Millisecond, ErrorSleep: 5 * time.Millisecond},
		q, fixedSelector{domain.Default}, dispatcher, l, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	records := l.Records()
	require.Len(t, records, 1)
	assert.GreaterOrEqual(t, dispatcher.callCount(id.String()), 2)
}

func TestWorkerPersistFailureStillAcks(t *testing.T) {
	q := queue.NewMemoryAdapter()
	l := &alwaysFailLedger{}
	dispatcher := newFakeDispatcher()
	msg := domain.PaymentMessage{CorrelationID: uuid.New(), AmountCents: 100, RequestedAt: time.Now().UTC()}
	enqueuePayment(t, q, msg)

	pool := NewPool(Config{Concurrency: 1, VisibilityTimeout: time.Second, PollSleep: 5 * time.Millisecond, ErrorSleep: 5 * time.Millisecond},
		q, fixedSelector{domain.Default}, dispatcher, l, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	// Even though persistence always fails, the message must have been
	// acked (not redelivered) since dispatch already succeeded externally.
	msg2, err := q.Receive(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg2)
}

type alwaysFailLedger struct{}

func (alwaysFailLedger) Record(_ context.Context, _ domain.PaymentMessage, _ domain.Processor) error {
	return errors.New("persist failed")
}

func (alwaysFailLedger) Summarize(_ context.Context, _, _ time.Time) (ledger.Summary, error) {
	return ledger.Summary{}, nil
}
