// websocket.go implements the secure-websocket FeedClient variant: TLS
// with SNI set to the connect host, target path /v2/, one receive
// goroutine per successful connect, and a single synchronous send path.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const wsTargetPath = "/v2/"

// WSClient is the secure-websocket FeedClient. It is owned by exactly one
// Obtainer; Connect spawns one receive goroutine, Disconnect tears it down.
type WSClient struct {
	opts Options

	connMu sync.Mutex
	conn   *websocket.Conn

	onMessage MessageHandler
	onError   ErrorHandler

	running  atomic.Bool
	recvDone chan struct{}
	recvGID  atomic.Int64

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewWSClient constructs a disconnected WebSocket client.
func NewWSClient(opts Options) *WSClient {
	return &WSClient{opts: opts}
}

func (c *WSClient) SetMessageHandler(fn MessageHandler) { c.onMessage = fn }
func (c *WSClient) SetErrorHandler(fn ErrorHandler)      { c.onError = fn }

// Connect dials host:port over TLS with SNI=host, upgrades to a websocket
// at /v2/, and spawns one receive goroutine. It blocks for at most the
// configured connect timeout.
func (c *WSClient) Connect(host, port string) bool {
	logger := c.opts.logger().With("component", "ws_transport", "host", host)

	u := url.URL{Scheme: "wss", Host: fmt.Sprintf("%s:%s", host, port), Path: wsTargetPath}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.connectTimeout())
	defer cancel()

	dialer := &websocket.Dialer{
		TLSClientConfig: &tls.Config{ServerName: host},
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Warn("websocket connect failed", "error", err)
		if c.onError != nil {
			c.onError(fmt.Errorf("transport: connect: %w", err))
		}
		return false
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.running.Store(true)
	c.recvDone = make(chan struct{})

	runCtx, runCancel := context.WithCancel(context.Background())
	c.cancelMu.Lock()
	c.cancel = runCancel
	c.cancelMu.Unlock()

	go c.receiveLoop(runCtx, conn, logger)

	logger.Info("websocket connected")
	return true
}

func (c *WSClient) receiveLoop(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	c.recvGID.Store(goroutineID())
	defer close(c.recvDone)

	for {
		if !c.running.Load() {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isExpectedCloseError(err) {
				return
			}
			logger.Warn("websocket read failed", "error", err)
			if c.onError != nil {
				c.onError(fmt.Errorf("transport: read: %w", err))
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// Send synchronously writes one complete frame.
func (c *WSClient) Send(b []byte) bool {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		if c.onError != nil {
			c.onError(fmt.Errorf("transport: send: not connected"))
		}
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.connectTimeout()))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if c.onError != nil {
			c.onError(fmt.Errorf("transport: send: %w", err))
		}
		return false
	}
	return true
}

// Disconnect is idempotent. Closing the underlying socket wakes the
// blocked receive goroutine. If called from that goroutine (e.g. from
// within the error callback), the wait for its completion is skipped to
// avoid a self-join deadlock — the goroutine is left to exit on its own.
func (c *WSClient) Disconnect() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.cancelMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancelMu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}

	if c.recvDone != nil && c.recvGID.Load() != goroutineID() {
		<-c.recvDone
	}
}

func isExpectedCloseError(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
