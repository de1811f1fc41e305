// Package snapshot implements the wait-free double-buffered publish path
// between a single writer (the consumer worker) and any number of
// concurrent readers.
package snapshot

import (
	"sync/atomic"
	"time"

	"mdgateway/internal/book"
	"mdgateway/pkg/types"
)

// cachelinePad keeps the active index off the cacheline the slot array
// lives on, so a reader loading the index never false-shares with the
// writer's slot copy.
type cachelinePad [64 - 8]byte

// View is a double-buffered snapshot: two slots and an atomic index
// selecting the reader-visible one. Exactly one writer (the owning
// consumer) calls PublishFrom; any number of readers call Read
// concurrently.
type View struct {
	active int64
	_      cachelinePad
	slots  [2]types.OrderBookSnapshot
}

// New returns an empty View. The zero value is also usable directly.
func New() *View {
	return &View{}
}

// PublishFrom builds a fresh snapshot from b (truncated to maxLevels per
// side), writes it into the inactive slot, and flips the active index.
// Only the writer goroutine may call this.
func (v *View) PublishFrom(b *book.OrderBook, maxLevels int) {
	cur := atomic.LoadInt64(&v.active)
	next := 1 - cur

	snap := b.Snapshot(maxLevels)
	snap.MonoTS = time.Now()

	v.slots[next] = snap
	atomic.StoreInt64(&v.active, next)
}

// Read returns a by-value copy of the currently active snapshot.
func (v *View) Read() types.OrderBookSnapshot {
	idx := atomic.LoadInt64(&v.active)
	return v.slots[idx]
}
