// Package obtainer owns one venue transport and the two SPSC queues fed
// from it, reconnecting with exponential backoff and jitter when the
// transport reports a failure.
package obtainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"mdgateway/internal/gwerr"
	"mdgateway/internal/parser"
	"mdgateway/internal/queue"
	"mdgateway/internal/transport"
	"mdgateway/pkg/types"
)

const (
	defaultMaxReconnectAttempts = 10
	baseBackoff                 = 100 * time.Millisecond
	maxBackoff                  = 3000 * time.Millisecond
	jitterMax                   = 50 * time.Millisecond
	maxTimestampHistory         = 100
)

// Config describes the venue a single Obtainer connects to.
type Config struct {
	Host   string
	Port   string
	Market string
	Kind   transport.Kind
	Logger *slog.Logger

	// MaxReconnectAttempts overrides the default of 10 when > 0.
	MaxReconnectAttempts int
}

// Stats reports peak quotes and rolling update-interval statistics, used
// for diagnostics and the fan-out report exposed by Consumer.ObtainerStats.
type Stats struct {
	Market             string
	PeakBid            types.Quote
	HasPeakBid         bool
	PeakAsk            types.Quote
	HasPeakAsk         bool
	AverageBidInterval time.Duration
	AverageAskInterval time.Duration
	BidQueueDepth      int
	AskQueueDepth      int
	LastNonce          uint64
	NonceGaps          int
}

// Obtainer owns exactly one transport, two SPSC queues (bid, ask), and the
// venue parameters needed to (re)connect to it.
type Obtainer struct {
	cfg    Config
	client transport.FeedClient
	logger *slog.Logger

	bidQ *queue.SPSC
	askQ *queue.SPSC

	reconnecting atomic.Bool
	stopCtx      context.Context
	stopCancel   context.CancelFunc

	statsMu       sync.Mutex
	peakBid       types.Quote
	hasPeakBid    bool
	peakAsk       types.Quote
	hasPeakAsk    bool
	bidTimestamps []time.Time
	askTimestamps []time.Time

	lastNonce    uint64
	hasLastNonce bool
	nonceGaps    int
}

// New constructs an Obtainer around an already-built transport client. The
// client's callbacks are installed here; Connect must not have been called
// on it yet.
func New(cfg Config, client transport.FeedClient) *Obtainer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "obtainer", "market", cfg.Market, "kind", cfg.Kind.String())

	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	o := &Obtainer{
		cfg:        cfg,
		client:     client,
		logger:     logger,
		bidQ:       queue.New(),
		askQ:       queue.New(),
		stopCtx:    ctx,
		stopCancel: cancel,
	}

	client.SetMessageHandler(o.handleMessage)
	client.SetErrorHandler(o.handleError)

	return o
}

// BidQueue exposes the consumer side of the bid queue.
func (o *Obtainer) BidQueue() *queue.SPSC { return o.bidQ }

// AskQueue exposes the consumer side of the ask queue.
func (o *Obtainer) AskQueue() *queue.SPSC { return o.askQ }

// Connect dials the venue and, for a websocket transport, sends the book
// subscription once connected.
func (o *Obtainer) Connect() bool {
	if !o.client.Connect(o.cfg.Host, o.cfg.Port) {
		return false
	}
	if o.cfg.Kind == transport.KindWebSocket {
		sub := fmt.Sprintf(`{"action":"subscribe","channels":[{"name":"book","markets":["%s"]}]}`, o.cfg.Market)
		o.client.Send([]byte(sub))
	}
	return true
}

// Disconnect tears down the transport and cancels any in-flight reconnect
// loop.
func (o *Obtainer) Disconnect() {
	o.stopCancel()
	o.client.Disconnect()
}

func (o *Obtainer) handleMessage(msg []byte) {
	var q types.Quote
	var ok bool

	switch o.cfg.Kind {
	case transport.KindTCP:
		q, ok = parser.ParseFix(msg)
	case transport.KindWebSocket:
		q, ok = parser.ParseJSONBook(msg, o.cfg.Market)
	}
	if !ok {
		return
	}
	o.storeQuote(q)
}

func (o *Obtainer) handleError(err error) {
	o.logger.Warn("transport error", "error", err, "cause", gwerr.ErrIOLost)
	o.client.Disconnect()
	o.startReconnectLoop()
}

func (o *Obtainer) storeQuote(q types.Quote) {
	switch q.Side {
	case types.Bid:
		if !o.bidQ.Push(q) {
			o.logger.Warn("bid queue full, dropping quote", "error", gwerr.ErrQueueOverflow)
		}
	case types.Ask:
		if !o.askQ.Push(q) {
			o.logger.Warn("ask queue full, dropping quote", "error", gwerr.ErrQueueOverflow)
		}
	}

	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	switch q.Side {
	case types.Bid:
		if !o.hasPeakBid || q.Price > o.peakBid.Price {
			o.peakBid = q
			o.hasPeakBid = true
		}
		o.bidTimestamps = append(o.bidTimestamps, q.Timestamp)
		if len(o.bidTimestamps) > maxTimestampHistory {
			o.bidTimestamps = o.bidTimestamps[1:]
		}
	case types.Ask:
		if !o.hasPeakAsk || q.Price < o.peakAsk.Price {
			o.peakAsk = q
			o.hasPeakAsk = true
		}
		o.askTimestamps = append(o.askTimestamps, q.Timestamp)
		if len(o.askTimestamps) > maxTimestampHistory {
			o.askTimestamps = o.askTimestamps[1:]
		}
	}
}

// Stats returns a point-in-time snapshot of peak quotes, rolling interval
// averages, and current queue depths.
func (o *Obtainer) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	return Stats{
		Market:             o.cfg.Market,
		PeakBid:            o.peakBid,
		HasPeakBid:         o.hasPeakBid,
		PeakAsk:            o.peakAsk,
		HasPeakAsk:         o.hasPeakAsk,
		AverageBidInterval: averageInterval(o.bidTimestamps),
		AverageAskInterval: averageInterval(o.askTimestamps),
		BidQueueDepth:      o.bidQ.Len(),
		AskQueueDepth:      o.askQ.Len(),
	}
}

func averageInterval(ts []time.Time) time.Duration {
	if len(ts) < 2 {
		return 0
	}
	total := ts[len(ts)-1].Sub(ts[0])
	return total / time.Duration(len(ts)-1)
}

// startReconnectLoop is single-flight: while reconnecting is set, further
// error callbacks do not spawn additional loops.
func (o *Obtainer) startReconnectLoop() {
	if !o.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer o.reconnecting.Store(false)

		for attempt := 1; attempt <= o.cfg.MaxReconnectAttempts; attempt++ {
			delay := backoffDelay(attempt)

			select {
			case <-o.stopCtx.Done():
				return
			case <-time.After(delay):
			}

			o.logger.Info("reconnect attempt", "attempt", attempt)
			if o.Connect() {
				o.logger.Info("reconnected")
				return
			}
		}

		o.logger.Warn("reconnect exhausted, leaving disconnected", "error", gwerr.ErrReconnectExhausted, "attempts", o.cfg.MaxReconnectAttempts)
	}()
}

func backoffDelay(attempt int) time.Duration {
	d := baseBackoff * time.Duration(1<<uint(attempt))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(jitterMax)))
	return d + jitter
}
