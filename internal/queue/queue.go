// Package queue defines the durable queue contract the ingress and
// worker pool share (spec.md section 4.2). The queue broker itself is an
// external collaborator; this package only defines the interface and an
// in-memory fake used by tests. The production implementation lives in
// queue/redisqueue.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by nothing in this package directly, but is kept
// here so implementations can sentinel-wrap "no message available" if
// they need to distinguish it from a transient error; Receive instead
// signals absence via a nil *Message, no error, matching spec.md's
// Option<{id, msg}> contract.
var ErrEmpty = errors.New("queue: no message available")

// Message is a reserved queue entry: an opaque ID used to Ack it, and the
// raw bytes the caller must deserialize into a domain.PaymentMessage.
type Message struct {
	ID      string
	Payload []byte
}

// Adapter is the durable queue contract: enqueue, receive-with-visibility,
// and ack. Implementations must provide at-least-once delivery: messages
// reserved by Receive and not Acked before the visibility window elapses
// become visible to other receivers again.
type Adapter interface {
	// Enqueue durably appends payload to the queue. It returns once the
	// append is committed, never before.
	Enqueue(ctx context.Context, payload []byte) error

	// Receive atomically reserves one message for the given visibility
	// window. It returns (nil, nil) if no message is available within the
	// adapter's own long-poll timeout — absence is not an error.
	Receive(ctx context.Context, visibility time.Duration) (*Message, error)

	// Ack irreversibly removes/archives a reserved message. Acking a
	// message whose visibility window has already expired is not an error.
	// Messages keep their id across redeliveries, so if the message has
	// since been reserved again, a late Ack removes that reservation too.
	Ack(ctx context.Context, id string) error
}
