// Package book maintains a per-symbol Level-2 order book: two unordered
// price->level maps fed by Quotes from one or more venues, read out as
// point-in-time snapshots with bids descending and asks ascending.
package book

import (
	"math"
	"sort"
	"sync"

	"mdgateway/pkg/types"
)

// OrderBook holds bid and ask price levels for a single symbol. It is safe
// for concurrent use, though in the gateway's normal operation only the
// consumer worker ever calls Update — concurrent access is exercised by
// tests and by the Consumer.OrderBook() accessor.
type OrderBook struct {
	mu     sync.RWMutex
	symbol string
	bids   map[float64]types.PriceLevel
	asks   map[float64]types.PriceLevel
}

// New creates an empty order book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   make(map[float64]types.PriceLevel),
		asks:   make(map[float64]types.PriceLevel),
	}
}

// Symbol returns the symbol this book was created for.
func (b *OrderBook) Symbol() string { return b.symbol }

// Update applies one quote. A zero-size quote deletes that price level; any
// other size replaces it (last-write-wins). No crossing protection is
// applied — a bid above the best ask is accepted and represented verbatim.
func (b *OrderBook) Update(q types.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := b.bids
	if q.Side == types.Ask {
		side = b.asks
	}

	if q.Size == 0 {
		delete(side, q.Price)
		return
	}
	side[q.Price] = types.PriceLevel{Price: q.Price, Size: q.Size}
}

// BestBid returns the greatest bid price, or the 0.0 sentinel when the bid
// side is empty.
func (b *OrderBook) BestBid() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return 0.0
	}
	best := math.Inf(-1)
	for p := range b.bids {
		if p > best {
			best = p
		}
	}
	return best
}

// BestAsk returns the least ask price, or the 0.0 sentinel when the ask
// side is empty.
func (b *OrderBook) BestAsk() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return 0.0
	}
	best := math.Inf(1)
	for p := range b.asks {
		if p < best {
			best = p
		}
	}
	return best
}

// Snapshot copies up to maxLevels price levels from each side — bids in
// descending order, asks ascending — into a fresh OrderBookSnapshot. An
// empty side is reported as NaN in BestBid/BestAsk (unlike the book's own
// accessors, which use the 0.0 sentinel).
func (b *OrderBook) Snapshot(maxLevels int) types.OrderBookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bidPrices := make([]float64, 0, len(b.bids))
	for p := range b.bids {
		bidPrices = append(bidPrices, p)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(bidPrices)))

	askPrices := make([]float64, 0, len(b.asks))
	for p := range b.asks {
		askPrices = append(askPrices, p)
	}
	sort.Float64s(askPrices)

	if len(bidPrices) > maxLevels {
		bidPrices = bidPrices[:maxLevels]
	}
	if len(askPrices) > maxLevels {
		askPrices = askPrices[:maxLevels]
	}

	bidLevels := make([]types.PriceLevel, len(bidPrices))
	for i, p := range bidPrices {
		bidLevels[i] = b.bids[p]
	}
	askLevels := make([]types.PriceLevel, len(askPrices))
	for i, p := range askPrices {
		askLevels[i] = b.asks[p]
	}

	bestBid := math.NaN()
	if len(bidLevels) > 0 {
		bestBid = bidLevels[0].Price
	}
	bestAsk := math.NaN()
	if len(askLevels) > 0 {
		bestAsk = askLevels[0].Price
	}

	return types.OrderBookSnapshot{
		Symbol:    b.symbol,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		BidLevels: bidLevels,
		AskLevels: askLevels,
	}
}
