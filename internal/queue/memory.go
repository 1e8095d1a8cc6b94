package queue

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAdapter is an in-process Adapter backed by a doubly-linked list
// and a map of in-flight reservations. It is used by tests (the binaries
// always use queue/redisqueue); it implements the same visibility-timeout semantics
// as the Redis-backed adapter, including silent reappearance of
// unacknowledged messages once their visibility window elapses.
type MemoryAdapter struct {
	mu       sync.Mutex
	pending  *list.List // of *Message, FIFO
	inFlight map[string]*inFlightEntry
	seq      int64
}

type inFlightEntry struct {
	msg     *Message
	timer   *time.Timer
	revived bool
}

// NewMemoryAdapter constructs an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		pending:  list.New(),
		inFlight: make(map[string]*inFlightEntry),
	}
}

func (a *MemoryAdapter) Enqueue(_ context.Context, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	id := strconv.FormatInt(a.seq, 10) + "-" + uuid.NewString()
	a.pending.PushBack(&Message{ID: id, Payload: append([]byte(nil), payload...)})
	return nil
}

func (a *MemoryAdapter) Receive(_ context.Context, visibility time.Duration) (*Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	front := a.pending.Front()
	if front == nil {
		return nil, nil
	}
	msg := a.pending.Remove(front).(*Message)

	entry := &inFlightEntry{msg: msg}
	a.inFlight[msg.ID] = entry
	entry.timer = time.AfterFunc(visibility, func() {
		a.requeueIfStillInFlight(msg.ID)
	})

	return msg, nil
}

func (a *MemoryAdapter) Ack(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.inFlight[id]; ok {
		entry.timer.Stop()
		delete(a.inFlight, id)
	}
	return nil
}

func (a *MemoryAdapter) requeueIfStillInFlight(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.inFlight[id]
	if !ok {
		return
	}
	delete(a.inFlight, id)
	a.pending.PushBack(entry.msg)
}
