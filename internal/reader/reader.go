// Package reader exposes the single operation a visualiser or strategy
// consumer needs: read the latest published order-book snapshot.
package reader

import (
	"mdgateway/internal/snapshot"
	"mdgateway/pkg/types"
)

// Reader wraps a snapshot.View with the narrow read-only contract external
// consumers are given — they never see the Consumer, the Obtainers, or the
// underlying book.
type Reader struct {
	view *snapshot.View
}

// New wraps v for read-only access.
func New(v *snapshot.View) *Reader {
	return &Reader{view: v}
}

// Read returns a value copy of the current snapshot.
func (r *Reader) Read() types.OrderBookSnapshot {
	return r.view.Read()
}
