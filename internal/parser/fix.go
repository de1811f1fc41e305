// Package parser maps a bounded byte slice received by a transport into an
// optional types.Quote. Two wire formats are supported: a tag-value
// (FIX-like) record and a JSON book-frame. Both parsers are deliberately
// minimal — first level of book depth only — because the book-building
// hot path only needs top-of-book.
package parser

import (
	"time"

	"github.com/shopspring/decimal"

	"mdgateway/pkg/types"
)

// soh is the FIX field terminator, byte 0x01.
const soh = 0x01

// ParseFix parses a single tag-value (FIX-like) record. It returns ok=false
// — never an error — when the record is malformed, is not a market-data
// message (tag 35 not in {X, W}), or carries zero entries (tag 268). Only
// the first repeating 269/270/271 entry is read; this is a deliberate
// latency-first, top-of-book-only limitation.
func ParseFix(record []byte) (types.Quote, bool) {
	fields, ok := splitFixFields(record)
	if !ok {
		return types.Quote{}, false
	}

	msgType, ok := fields["35"]
	if !ok || (msgType != "X" && msgType != "W") {
		return types.Quote{}, false
	}

	symbol, ok := fields["55"]
	if !ok {
		return types.Quote{}, false
	}

	numEntries, ok := parseIntField(fields["268"])
	if !ok || numEntries <= 0 {
		return types.Quote{}, false
	}

	sideField, priceField, sizeField, ok := firstRepeatingEntry(record)
	if !ok {
		return types.Quote{}, false
	}

	price, ok := parsePrefixDecimal(priceField)
	if !ok {
		return types.Quote{}, false
	}
	size, ok := parsePrefixDecimal(sizeField)
	if !ok {
		return types.Quote{}, false
	}

	side := types.Ask
	if sideField == "0" {
		side = types.Bid
	}

	return types.Quote{
		Price:     price,
		Size:      size,
		Timestamp: time.Now(),
		Symbol:    truncateSymbol(symbol),
		Side:      side,
	}, true
}

// splitFixFields scans record for SOH-delimited "tag=value" pairs and
// returns a tag→value map. Scanning stops at the first "=" with no SOH
// after it; a record in which no "=" is followed by an SOH is treated as
// malformed.
func splitFixFields(record []byte) (map[string]string, bool) {
	fields := make(map[string]string)
	pos := 0
	found := false
	for pos < len(record) {
		eq := indexByte(record, pos, '=')
		if eq < 0 {
			break
		}
		end := indexByte(record, eq, soh)
		if end < 0 {
			break
		}
		tag := string(record[pos:eq])
		value := string(record[eq+1 : end])
		fields[tag] = value
		found = true
		pos = end + 1
	}
	if !found {
		return nil, false
	}
	return fields, true
}

// firstRepeatingEntry locates the first 269 (side) field and the 270
// (price) / 271 (size) fields that follow it, mirroring the original
// parser: it does not fence the search to stay "inside" one repeating
// group, it just takes the next occurrence of each tag after the first 269.
func firstRepeatingEntry(record []byte) (side, price, size string, ok bool) {
	entryStart := indexOfTag(record, 0, "269=")
	if entryStart < 0 {
		return "", "", "", false
	}
	sideStart := entryStart + len("269=")
	sideEnd := indexByte(record, sideStart, soh)
	if sideEnd < 0 {
		return "", "", "", false
	}
	side = string(record[sideStart:sideEnd])

	pxStart := indexOfTag(record, entryStart, "270=")
	if pxStart < 0 {
		return "", "", "", false
	}
	pxValStart := pxStart + len("270=")
	pxEnd := indexByte(record, pxValStart, soh)
	if pxEnd < 0 {
		return "", "", "", false
	}
	price = string(record[pxValStart:pxEnd])

	szStart := indexOfTag(record, entryStart, "271=")
	if szStart < 0 {
		return "", "", "", false
	}
	szValStart := szStart + len("271=")
	szEnd := indexByte(record, szValStart, soh)
	if szEnd < 0 {
		return "", "", "", false
	}
	size = string(record[szValStart:szEnd])

	return side, price, size, true
}

func indexByte(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func indexOfTag(b []byte, from int, tag string) int {
	n := len(tag)
	for i := from; i+n <= len(b); i++ {
		if string(b[i:i+n]) == tag {
			return i
		}
	}
	return -1
}

func parseIntField(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == 0 {
		return 0, false
	}
	return n, true
}

// parsePrefixDecimal parses the longest valid leading numeric prefix of s
// (optional sign, digits, optional '.', digits) and ignores any trailing
// non-numeric characters — the FIX parser's numeric fields are
// prefix-tolerant.
func parsePrefixDecimal(s string) (float64, bool) {
	end := numericPrefixLen(s)
	if end == 0 {
		return 0, false
	}
	d, err := decimal.NewFromString(s[:end])
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

func numericPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	if i == start {
		return 0
	}
	return i
}

func truncateSymbol(s string) string {
	if len(s) > types.MaxSymbolLen {
		return s[:types.MaxSymbolLen]
	}
	return s
}
