package rpc

import (
	"context"
	"sync"
	"time"
)

// Broker moves opaque messages between named queues. Delivery is at least once
// at best; a queue may have several competing receivers.
type Broker interface {
	Publish(ctx context.Context, queue string, body []byte) error
	// Receive waits up to wait for a message on queue. ok is false when the
	// wait elapsed without a message.
	Receive(ctx context.Context, queue string, wait time.Duration) (body []byte, ok bool, err error)
}

// MemoryBroker is an in-process Broker for tests and single-process runs.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]chan []byte)}
}

func (b *MemoryBroker) queue(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan []byte, 1024)
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, queue string, body []byte) error {
	msg := append([]byte(nil), body...)
	select {
	case b.queue(queue) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Receive(ctx context.Context, queue string, wait time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case msg := <-b.queue(queue):
		return msg, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Ping satisfies health checks.
func (b *MemoryBroker) Ping(context.Context) error { return nil }
