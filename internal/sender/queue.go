package sender

import (
	logx "congratbot/pkg/logx"
)

// Queue is a bounded FIFO command queue.
//
// Push never blocks: when the queue is full the command is dropped with a
// warning. TryPop never blocks either; the supervisor cycle takes at most one
// item per queue per cycle, so accepted items are processed in arrival order.
type Queue[T any] struct {
	name string
	log  logx.Logger
	ch   chan T
}

func NewQueue[T any](name string, size int, log logx.Logger) *Queue[T] {
	if size <= 0 {
		size = 64
	}
	return &Queue[T]{name: name, log: log, ch: make(chan T, size)}
}

// Push enqueues v. Returns false if the queue is full.
func (q *Queue[T]) Push(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		if !q.log.IsZero() {
			q.log.Warn("queue full; dropping command",
				logx.String("queue", q.name),
				logx.Int("queue_cap", cap(q.ch)),
			)
		}
		return false
	}
}

// TryPop removes and returns the oldest item, or ok=false when empty.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func (q *Queue[T]) Len() int { return len(q.ch) }
