// Package consumer aggregates one or more obtainer.Obtainer instances for
// a single symbol, draining their quote queues into a shared order book
// and publishing snapshots to an attached view on a coalescing timer.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mdgateway/internal/book"
	"mdgateway/internal/obtainer"
	"mdgateway/internal/queue"
	"mdgateway/internal/snapshot"
)

const (
	defaultPublishPeriod = 20 * time.Millisecond
	defaultPublishLevels = 80
	idleSleep            = 100 * time.Microsecond
)

// Consumer owns the order book for one symbol and the worker goroutine
// that keeps it up to date from every attached Obtainer.
type Consumer struct {
	symbol    string
	obtainers []*obtainer.Obtainer
	book      *book.OrderBook
	logger    *slog.Logger

	mu            sync.Mutex
	view          *snapshot.View
	publishLevels int
	publishPeriod time.Duration

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Consumer for symbol, owning obtainers for its lifetime.
func New(symbol string, obtainers []*obtainer.Obtainer, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		symbol:        symbol,
		obtainers:     obtainers,
		book:          book.New(symbol),
		logger:        logger.With("component", "consumer", "symbol", symbol),
		publishLevels: defaultPublishLevels,
		publishPeriod: defaultPublishPeriod,
	}
}

// AttachView installs the snapshot view the worker publishes into. Must be
// called before Start to take effect on the first tick.
func (c *Consumer) AttachView(v *snapshot.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// SetPublishLevels overrides the default per-side snapshot depth (80).
func (c *Consumer) SetPublishLevels(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLevels = n
}

// SetPublishPeriod overrides the default coalescing period (20ms).
func (c *Consumer) SetPublishPeriod(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishPeriod = d
}

// OrderBook exposes the underlying book for tests; not used in the hot path.
func (c *Consumer) OrderBook() *book.OrderBook { return c.book }

// Start is idempotent: it connects every Obtainer and spawns the worker
// goroutine exactly once.
func (c *Consumer) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	for _, ob := range c.obtainers {
		if !ob.Connect() {
			c.logger.Warn("obtainer failed initial connect", "market", c.symbol)
		}
	}

	c.wg.Add(1)
	go c.run()
}

// Stop is idempotent: it signals the worker, disconnects every Obtainer,
// and joins the worker before returning.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	for _, ob := range c.obtainers {
		ob.Disconnect()
	}
	c.wg.Wait()
}

// ObtainerStats fans out a per-source report across every attached
// Obtainer — queue depths and peak/interval statistics.
func (c *Consumer) ObtainerStats() []obtainer.Stats {
	stats := make([]obtainer.Stats, 0, len(c.obtainers))
	for _, ob := range c.obtainers {
		stats = append(stats, ob.Stats())
	}
	return stats
}

func (c *Consumer) run() {
	defer c.wg.Done()

	var (
		lastBb, lastBa   = 0.0, 0.0
		sinceLastPublish int
		nextPublish      time.Time
	)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		didWork := false
		for _, ob := range c.obtainers {
			if drainInto(c.book, ob.BidQueue()) {
				didWork = true
			}
			if drainInto(c.book, ob.AskQueue()) {
				didWork = true
			}
		}
		if didWork {
			sinceLastPublish++
		}

		bb := c.book.BestBid()
		ba := c.book.BestAsk()
		tobChanged := bb != lastBb || ba != lastBa

		now := time.Now()
		timeToPublish := now.After(nextPublish) && sinceLastPublish > 0

		c.mu.Lock()
		view := c.view
		levels := c.publishLevels
		period := c.publishPeriod
		c.mu.Unlock()

		if view != nil && (timeToPublish || tobChanged) {
			view.PublishFrom(c.book, levels)
			sinceLastPublish = 0
			nextPublish = now.Add(period)
			lastBb, lastBa = bb, ba
		}

		if !didWork {
			time.Sleep(idleSleep)
		}
	}
}

func drainInto(b *book.OrderBook, q *queue.SPSC) bool {
	did := false
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		b.Update(v)
		did = true
	}
	return did
}
