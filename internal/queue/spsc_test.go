package queue

import (
	"sync"
	"testing"
	"time"

	"mdgateway/pkg/types"
)

func TestPushPopFIFO(t *testing.T) {
	t.Parallel()
	q := New()

	for i := 0; i < 10; i++ {
		if !q.Push(types.Quote{Price: float64(i)}) {
			t.Fatalf("push %d: unexpected overflow", i)
		}
	}

	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: expected a value", i)
		}
		if v.Price != float64(i) {
			t.Errorf("pop %d: price = %v, want %v", i, v.Price, i)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue: expected ok=false")
	}
}

func TestPushOverflowIsNonFatal(t *testing.T) {
	t.Parallel()
	q := New()

	for i := 0; i < Capacity; i++ {
		if !q.Push(types.Quote{Price: float64(i)}) {
			t.Fatalf("push %d: unexpected overflow before capacity reached", i)
		}
	}

	if q.Push(types.Quote{Price: 99}) {
		t.Error("push into full queue: expected false")
	}

	// Queue must remain usable after a dropped push.
	v, ok := q.Pop()
	if !ok || v.Price != 0 {
		t.Errorf("pop after overflow = (%v, %v), want (0, true)", v, ok)
	}
}

func TestConcurrentSingleProducerSingleConsumer(t *testing.T) {
	t.Parallel()
	q := New()
	const n = 100_000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Push(types.Quote{Price: float64(i)}) {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	received := make([]float64, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			v, ok := q.Pop()
			if !ok {
				continue
			}
			received = append(received, v.Price)
		}
	}()

	wg.Wait()

	for i, v := range received {
		if v != float64(i) {
			t.Fatalf("out-of-order delivery at index %d: got %v, want %v", i, v, i)
		}
	}
}
