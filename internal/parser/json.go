package parser

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mdgateway/pkg/types"
)

const bookEventMarker = `"event":"book"`

// ParseJSONBook parses a UTF-8 JSON book-frame (e.g. Bitvavo's WebSocket
// "book" event) into the top-of-book Quote. Only the first bid or first ask
// level is read; deeper-depth ingestion is out of scope for the hot path.
//
// The anchor pattern `"<key>":[[` must match exactly — whitespace inside it
// fails closed rather than attempting a tolerant reparse.
func ParseJSONBook(frame []byte, market string) (types.Quote, bool) {
	s := string(frame)
	if !strings.Contains(s, bookEventMarker) {
		return types.Quote{}, false
	}

	now := time.Now()

	if px, qty, ok := parseFirstLevel(s, "bids"); ok {
		return types.Quote{Price: px, Size: qty, Timestamp: now, Symbol: truncateSymbol(market), Side: types.Bid}, true
	}
	if px, qty, ok := parseFirstLevel(s, "asks"); ok {
		return types.Quote{Price: px, Size: qty, Timestamp: now, Symbol: truncateSymbol(market), Side: types.Ask}, true
	}
	return types.Quote{}, false
}

// parseFirstLevel locates `"<key>":[[` and reads the first [price, qty]
// pair as two quoted decimal strings.
func parseFirstLevel(frame, key string) (price, qty float64, ok bool) {
	anchor := `"` + key + `":[[`
	idx := strings.Index(frame, anchor)
	if idx < 0 {
		return 0, 0, false
	}
	rest := frame[idx+len(anchor):]

	priceStr, rest, ok := readQuoted(rest)
	if !ok || priceStr == "" {
		return 0, 0, false
	}
	qtyStr, _, ok := readQuoted(rest)
	if !ok || qtyStr == "" {
		return 0, 0, false
	}

	px, err := decimal.NewFromString(priceStr)
	if err != nil {
		return 0, 0, false
	}
	qt, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return 0, 0, false
	}
	pf, _ := px.Float64()
	qf, _ := qt.Float64()
	return pf, qf, true
}

// readQuoted returns the contents of the next "..." literal in s, and the
// remainder of s following the closing quote.
func readQuoted(s string) (value, remainder string, ok bool) {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return "", s, false
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return "", s, false
	}
	end += start + 1
	return s[start+1 : end], s[end+1:], true
}

// ExtractNonce returns the numeric nonce field of a JSON frame: the digits
// immediately following `"nonce":`, stopping at the first non-digit. Returns
// 0 if the key is absent or the first character is non-digit.
func ExtractNonce(frame []byte) uint64 {
	const key = `"nonce":`
	s := string(frame)
	idx := strings.Index(s, key)
	if idx < 0 {
		return 0
	}
	i := idx + len(key)
	var v uint64
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		v = v*10 + uint64(s[i]-'0')
		i++
	}
	return v
}
