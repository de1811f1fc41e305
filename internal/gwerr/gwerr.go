// Package gwerr names the error taxonomy every layer of the gateway reports
// against. Nothing in the core panics or calls os.Exit on these — each is
// handled locally (logged, and in most cases triggers a reconnect) per the
// policy table.
package gwerr

import "errors"

var (
	// ErrConnectFailed covers resolve/dial/TLS/websocket-handshake failure.
	ErrConnectFailed = errors.New("transport: connect failed")

	// ErrIOLost covers a send or receive failure on an already-established
	// connection.
	ErrIOLost = errors.New("transport: io lost")

	// ErrQueueOverflow is reported (never returned up a call chain — only
	// logged) when a push to a full SPSC queue is dropped.
	ErrQueueOverflow = errors.New("queue: overflow, quote dropped")

	// ErrOperationCanceled marks a read/write error that is expected during
	// a cooperative shutdown and must be swallowed by the caller.
	ErrOperationCanceled = errors.New("transport: operation canceled")

	// ErrReconnectExhausted is reported when the reconnect loop has made
	// maxReconnectAttempts without success.
	ErrReconnectExhausted = errors.New("obtainer: reconnect attempts exhausted")
)
