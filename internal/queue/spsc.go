// Package queue implements a bounded single-producer/single-consumer ring
// buffer of Quotes. It is correct only with exactly one producer goroutine
// and one consumer goroutine — the design enforces this by construction
// (one transport receive loop per Obtainer pushes; one Consumer worker
// drains), not by locking.
package queue

import (
	"sync/atomic"

	"mdgateway/pkg/types"
)

// Capacity is the fixed ring size. It is a power of two so index wraparound
// is a cheap mask instead of a modulo.
const Capacity = 1024

const mask = Capacity - 1

// cachelinePad is sized to push head and tail onto separate cachelines so
// producer writes to head don't invalidate the consumer's cached tail and
// vice versa.
type cachelinePad [64 - 8]byte

// SPSC is a fixed-capacity lock-free ring buffer of types.Quote.
type SPSC struct {
	head uint64 // written by the producer only
	_    cachelinePad
	tail uint64 // written by the consumer only
	_    cachelinePad

	buf [Capacity]types.Quote
}

// New returns an empty queue ready to use.
func New() *SPSC {
	return &SPSC{}
}

// Push appends q to the queue. It returns false (a non-fatal overflow) when
// the queue is full; the caller drops the quote and logs a warning — the
// pipeline must remain live.
func (q *SPSC) Push(v types.Quote) bool {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head-tail >= Capacity {
		return false
	}
	q.buf[head&mask] = v
	atomic.StoreUint64(&q.head, head+1)
	return true
}

// Pop removes and returns the oldest queued quote. ok is false when the
// queue is empty.
func (q *SPSC) Pop() (v types.Quote, ok bool) {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	if tail >= head {
		return types.Quote{}, false
	}
	v = q.buf[tail&mask]
	atomic.StoreUint64(&q.tail, tail+1)
	return v, true
}

// Len reports the number of quotes currently queued. It is advisory: in the
// presence of a concurrent producer the true length may have changed by the
// time the caller observes this value.
func (q *SPSC) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	return int(head - tail)
}
