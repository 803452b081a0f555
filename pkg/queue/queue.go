package queue

/*
 * Queue is the bounded, ordered, multi-producer multi-consumer channel of encoded records that
 * couples the input side of the pipeline to the output side. The bound is the backpressure
 * mechanism: producers block while the queue is full.
 */

import (
	"context"
	"sync"
)

const DefaultSize = 10000

type Queue struct {
	ch        chan []byte
	closeOnce sync.Once
}

// New creates a queue holding at most size entries
func New(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch: make(chan []byte, size),
	}
}

// Push enqueues data, blocking while the queue is full. It returns ctx.Err() if ctx is cancelled
// before room is available. Push must not be called after Close.
func (q *Queue) Push(ctx context.Context, data []byte) error {
	select {
	case q.ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next entry, blocking while the queue is empty. ok is false once the queue
// has been closed and fully drained.
func (q *Queue) Pop() (data []byte, ok bool) {
	data, ok = <-q.ch
	return
}

// Close signals end-of-stream to consumers. Entries already queued are still delivered.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}
