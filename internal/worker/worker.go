// Package worker implements the pool described in spec.md section 4.4:
// N cooperative workers sharing a Queue Adapter, Health Oracle, Ledger,
// and HTTP client, each running the receive/parse/select/dispatch/
// persist/ack loop.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/health"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
	"github.com/rinha-intermediary/payment-intermediary/internal/queue"
)

// Dispatcher performs the outbound call to a processor. Implemented by
// internal/processor.Client in production.
type Dispatcher interface {
	Dispatch(ctx context.Context, p domain.Processor, msg domain.PaymentMessage) error
}

// Selector answers which processor a worker should use for the next
// dispatch. Implemented by health.Oracle in production.
type Selector interface {
	BestProcessor(ctx context.Context) domain.Processor
}

// Config bundles the pool's tunables, named in spec.md section 6.
type Config struct {
	Concurrency       int
	VisibilityTimeout time.Duration
	PollSleep         time.Duration
	ErrorSleep        time.Duration
}

// Pool runs Config.Concurrency independent Worker loops.
type Pool struct {
	cfg        Config
	queue      queue.Adapter
	selector   Selector
	dispatcher Dispatcher
	ledger     ledger.Ledger
	logger     *slog.Logger
}

// NewPool constructs a Pool. The single queue.Adapter q is shared by all
// worker goroutines; the Pool does not create per-worker queue handles.
// Each goroutine issues its own Receive/Ack calls sequentially, but
// different goroutines call q concurrently.
func NewPool(cfg Config, q queue.Adapter, selector Selector, dispatcher Dispatcher, l ledger.Ledger, logger *slog.Logger) *Pool {
	return &Pool{cfg: cfg, queue: q, selector: selector, dispatcher: dispatcher, ledger: l, logger: logger}
}

// Run starts Config.Concurrency workers and blocks until ctx is
// cancelled, at which point each worker finishes its current iteration
// and returns (spec.md section 5, "Worker shutdown is cooperative").
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	n := p.cfg.Concurrency
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

// loop is one worker's independent receive/parse/select/dispatch/
// persist/ack cycle, per spec.md section 4.4.
func (p *Pool) loop(ctx context.Context, id int) {
	log := p.logger.With("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.queue.Receive(ctx, p.cfg.VisibilityTimeout)
		if err != nil {
			log.Warn("worker: receive failed", "error", err)
			if !sleepCtx(ctx, p.cfg.ErrorSleep) {
				return
			}
			continue
		}
		if msg == nil {
			if !sleepCtx(ctx, p.cfg.PollSleep) {
				return
			}
			continue
		}

		// The iteration runs to completion even if ctx is cancelled
		// meanwhile: cancellation is observed only between iterations.
		p.handle(context.WithoutCancel(ctx), log, *msg)
	}
}

func (p *Pool) handle(ctx context.Context, log *slog.Logger, msg queue.Message) {
	var payment domain.PaymentMessage
	if err := json.Unmarshal(msg.Payload, &payment); err != nil {
		// Poison payload: unprocessable, retry will not help. Ack-and-drop.
		log.Warn("worker: dropping unparseable message", "message_id", msg.ID, "error", err)
		if err := p.queue.Ack(ctx, msg.ID); err != nil {
			log.Error("worker: ack of dropped message failed", "message_id", msg.ID, "error", err)
		}
		return
	}

	processor := p.selector.BestProcessor(ctx)

	start := time.Now()
	dispatchErr := p.dispatcher.Dispatch(ctx, processor, payment)
	latency := time.Since(start)
	if dispatchErr != nil {
		// Do not ack: the visibility timeout will expire and another
		// worker (or this one) will retry.
		log.Warn("worker: dispatch failed, leaving unacked for redelivery",
			"correlation_id", payment.CorrelationID, "processor", processor, "latency_ms", latency.Milliseconds(), "error", dispatchErr)
		return
	}

	log.Info("worker: dispatch succeeded",
		"correlation_id", payment.CorrelationID, "processor", processor, "latency_ms", latency.Milliseconds())

	if err := p.ledger.Record(ctx, payment, processor); err != nil {
		// A dispatched-and-externally-successful payment must never be
		// retried; log and ack regardless of the persistence outcome.
		log.Error("worker: ledger record failed after successful dispatch",
			"correlation_id", payment.CorrelationID, "processor", processor, "error", err)
	}

	if err := p.queue.Ack(ctx, msg.ID); err != nil {
		log.Error("worker: ack failed", "message_id", msg.ID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
