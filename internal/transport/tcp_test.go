package transport

import (
	"net"
	"testing"
	"time"
)

// TestTCPClientLogonHandshake drives a TCPClient against a real loopback
// listener that plays the role of the venue: it echoes back a logon ack
// once it has received the client's logon, then asserts the client follows
// up with a market-data request.
func TestTCPClientLogonHandshake(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	var sawMarketDataRequest bool

	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		var sliding []byte

		// Read the logon, reply with an ack.
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		sliding = append(sliding, buf[:n]...)
		end, ok := findRecordEnd(sliding)
		if !ok {
			return
		}
		logon := sliding[:end]
		if mt, _ := extractTag(logon, "35"); mt != "A" {
			return
		}
		sliding = sliding[end:]

		sender, _ := extractTag(logon, "49")
		target, _ := extractTag(logon, "56")
		ack := buildFixRecord("35=A\x0149=" + target + "\x0156=" + sender + "\x0134=1\x0198=0\x01108=30\x01")
		conn.Write(ack)

		// Read until the market-data request arrives or we time out.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			mdEnd, ok := findRecordEnd(sliding)
			if ok {
				if mt, _ := extractTag(sliding[:mdEnd], "35"); mt == "V" {
					sawMarketDataRequest = true
					return
				}
				sliding = sliding[mdEnd:]
				continue
			}
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			sliding = append(sliding, buf[:n]...)
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}

	client := NewTCPClient(Options{ConnectTimeout: 2 * time.Second}, "GATEWAY", "VENUE", "BTC-EUR")
	client.SetErrorHandler(func(err error) { t.Logf("transport error: %v", err) })

	if !client.Connect(host, port) {
		t.Fatal("connect failed")
	}
	defer client.Disconnect()

	select {
	case <-serverDone:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server handshake")
	}

	if !sawMarketDataRequest {
		t.Error("expected client to send a market-data request after logon ack")
	}
	if !client.loggedOn.Load() {
		t.Error("expected client to record itself as logged on")
	}
}

func TestTCPClientDisconnectResetsSequenceAndLogonState(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf) // consume the logon, never ack it
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	client := NewTCPClient(Options{ConnectTimeout: 2 * time.Second}, "GATEWAY", "VENUE", "BTC-EUR")

	if !client.Connect(host, port) {
		t.Fatal("connect failed")
	}
	client.Disconnect()

	if client.loggedOn.Load() {
		t.Error("expected logged-on flag cleared after disconnect")
	}
	if client.seqNum.Load() != 1 {
		t.Errorf("seqNum = %d, want 1 after disconnect", client.seqNum.Load())
	}

	// Disconnect must be idempotent.
	client.Disconnect()
}
