package memq

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrClosed is returned by Pop and Push once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Message is one delivery of a job identifier. ID identifies the delivery
// itself and is what Ack expects.
type Message struct {
	ID         string
	JobID      string
	Deliveries int64
}

// Queue is a FIFO of job identifiers shared by one producer and any number of
// consumers. Pop blocks until an entry is available and hands it to exactly
// one consumer.
type Queue interface {
	Push(ctx context.Context, jobID string) error
	Pop(ctx context.Context, consumer string) (Message, error)
	Ack(ctx context.Context, msg Message) error
	Len(ctx context.Context) (int64, error)
	Close() error
}

type memQueue struct {
	buf     chan Message
	seq     atomic.Int64
	closing chan struct{}
	closed  atomic.Bool
}

// NewMemoryQueue returns a process-local queue. It is not durable and only
// serves single-process deployments and tests.
func NewMemoryQueue(buffer int) Queue {
	return &memQueue{
		buf:     make(chan Message, buffer),
		closing: make(chan struct{}),
	}
}

func (q *memQueue) Push(ctx context.Context, jobID string) error {
	if q.closed.Load() {
		return ErrClosed
	}
	msg := Message{
		ID:         fmt.Sprintf("mem-%d", q.seq.Add(1)),
		JobID:      jobID,
		Deliveries: 1,
	}
	select {
	case q.buf <- msg:
		return nil
	case <-q.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memQueue) Pop(ctx context.Context, consumer string) (Message, error) {
	select {
	case msg := <-q.buf:
		return msg, nil
	case <-q.closing:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Ack is a no-op: entries leave the channel when popped.
func (q *memQueue) Ack(ctx context.Context, msg Message) error {
	return nil
}

func (q *memQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.buf)), nil
}

func (q *memQueue) Close() error {
	if q.closed.CompareAndSwap(false, true) {
		close(q.closing)
	}
	return nil
}
