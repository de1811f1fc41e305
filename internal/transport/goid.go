package transport

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the numeric id from the current goroutine's stack
// trace header ("goroutine 123 [running]:"). It exists for exactly one
// purpose: letting Disconnect tell whether it is being called from the
// receive goroutine itself, so it can detach instead of joining and avoid
// a self-join deadlock. Never used for anything else.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
