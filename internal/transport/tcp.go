// tcp.go implements the persistent TCP FeedClient variant: a tag-value
// (FIX-like) record stream with a sliding-buffer framer, a logon
// handshake, and an outgoing market-data request sent once the logon is
// acknowledged.
package transport

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	soh         = 0x01
	recvBufSize = 8192
)

// TCPClient is the persistent-TCP FeedClient. SenderID/TargetID populate
// the FIX header tags 49/56; Symbol is the market the market-data request
// subscribes to once logon is acknowledged.
type TCPClient struct {
	opts     Options
	SenderID string
	TargetID string
	Symbol   string

	connMu sync.Mutex
	conn   net.Conn

	onMessage MessageHandler
	onError   ErrorHandler

	running  atomic.Bool
	loggedOn atomic.Bool
	recvDone chan struct{}
	recvGID  atomic.Int64

	seqNum     atomic.Int64
	reqCounter atomic.Int64
}

// NewTCPClient constructs a disconnected TCP client for the given symbol.
func NewTCPClient(opts Options, senderID, targetID, symbol string) *TCPClient {
	return &TCPClient{opts: opts, SenderID: senderID, TargetID: targetID, Symbol: symbol}
}

func (c *TCPClient) SetMessageHandler(fn MessageHandler) { c.onMessage = fn }
func (c *TCPClient) SetErrorHandler(fn ErrorHandler)      { c.onError = fn }

// Connect dials host:port, resets the per-connection sequence number to 1,
// spawns one receive goroutine, and sends the logon record.
func (c *TCPClient) Connect(host, port string) bool {
	logger := c.opts.logger().With("component", "tcp_transport", "host", host)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), c.opts.connectTimeout())
	if err != nil {
		logger.Warn("tcp connect failed", "error", err)
		if c.onError != nil {
			c.onError(fmt.Errorf("transport: connect: %w", err))
		}
		return false
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.seqNum.Store(1)
	c.loggedOn.Store(false)
	c.running.Store(true)
	c.recvDone = make(chan struct{})

	go c.receiveLoop(conn, logger)

	if !c.sendLogon() {
		c.Disconnect()
		return false
	}

	logger.Info("tcp connected")
	return true
}

func (c *TCPClient) receiveLoop(conn net.Conn, logger *slog.Logger) {
	c.recvGID.Store(goroutineID())
	defer close(c.recvDone)

	var sliding []byte
	readBuf := make([]byte, recvBufSize)

	for {
		if !c.running.Load() {
			return
		}

		n, err := conn.Read(readBuf)
		if err != nil {
			if !c.running.Load() {
				return // expected: socket closed by Disconnect
			}
			logger.Warn("tcp read failed", "error", err)
			if c.onError != nil {
				c.onError(fmt.Errorf("transport: read: %w", err))
			}
			return
		}

		sliding = append(sliding, readBuf[:n]...)

		for {
			end, ok := findRecordEnd(sliding)
			if !ok {
				break
			}
			record := sliding[:end]
			sliding = sliding[end:]
			c.handleRecord(record)
		}
	}
}

// findRecordEnd returns the index one past the end of the first complete
// record in b: the first occurrence of "10=" followed by three digits and
// an SOH byte.
func findRecordEnd(b []byte) (int, bool) {
	idx := bytes.Index(b, []byte("10="))
	for idx >= 0 {
		end := idx + 3
		if end+3 < len(b) &&
			isDigit(b[end]) && isDigit(b[end+1]) && isDigit(b[end+2]) &&
			b[end+3] == soh {
			return end + 4, true
		}
		next := bytes.Index(b[idx+1:], []byte("10="))
		if next < 0 {
			return 0, false
		}
		idx = idx + 1 + next
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (c *TCPClient) handleRecord(record []byte) {
	msgType, _ := extractTag(record, "35")
	if msgType == "A" && !c.loggedOn.Load() {
		sender, _ := extractTag(record, "49")
		target, _ := extractTag(record, "56")
		if sender == c.TargetID && target == c.SenderID && c.loggedOn.CompareAndSwap(false, true) {
			c.sendMarketDataRequest()
		}
	}

	if c.onMessage != nil {
		c.onMessage(record)
	}
}

// Send synchronously writes one already-framed record.
func (c *TCPClient) Send(b []byte) bool {
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
	_, err := conn.Write(b)
	if err != nil {
		if c.onError != nil {
			c.onError(fmt.Errorf("transport: send: %w", err))
		}
		return false
	}
	return true
}

// Disconnect is idempotent. It closes the socket, resets the sequence
// number and logged-on flag, and joins the receive goroutine unless
// called from that goroutine itself (self-join avoidance).
func (c *TCPClient) Disconnect() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}

	c.seqNum.Store(1)
	c.loggedOn.Store(false)

	if c.recvDone != nil && c.recvGID.Load() != goroutineID() {
		<-c.recvDone
	}
}

func (c *TCPClient) nextSeq() int64 { return c.seqNum.Add(1) - 1 }

func (c *TCPClient) header() string {
	seq := c.nextSeq()
	return fmt.Sprintf("49=%s\x0156=%s\x0134=%d\x0152=%s\x01",
		c.SenderID, c.TargetID, seq, fixTimestamp())
}

func (c *TCPClient) sendLogon() bool {
	body := "35=A\x01" + c.header() + "98=0\x01108=30\x01"
	return c.Send(buildFixRecord(body))
}

func (c *TCPClient) sendMarketDataRequest() {
	reqID := c.reqCounter.Add(1)
	body := "35=V\x01" + c.header() +
		fmt.Sprintf("262=req-%d\x01", reqID) +
		"263=1\x01264=1\x01265=0\x01267=2\x01269=0\x01269=1\x01146=1\x01" +
		"55=" + c.Symbol + "\x01460=4\x01"
	c.Send(buildFixRecord(body))
}

// buildFixRecord wraps body (everything between tag 9's value and the
// checksum field) with the standard header and a trailing checksum field.
func buildFixRecord(body string) []byte {
	head := fmt.Sprintf("8=FIX.4.4\x019=%d\x01", len(body))
	withoutChecksum := head + body
	sum := 0
	for i := 0; i < len(withoutChecksum); i++ {
		sum += int(withoutChecksum[i])
	}
	return []byte(withoutChecksum + fmt.Sprintf("10=%03d\x01", sum%256))
}

func fixTimestamp() string {
	return time.Now().UTC().Format("20060102-15:04:05.000")
}

func extractTag(record []byte, tag string) (string, bool) {
	prefix := []byte(tag + "=")
	pos := 0
	for pos < len(record) {
		idx := bytes.Index(record[pos:], prefix)
		if idx < 0 {
			return "", false
		}
		start := pos + idx
		if start > 0 && record[start-1] != soh {
			pos = start + 1
			continue
		}
		valStart := start + len(prefix)
		end := bytes.IndexByte(record[valStart:], soh)
		if end < 0 {
			return "", false
		}
		return string(record[valStart : valStart+end]), true
	}
	return "", false
}
