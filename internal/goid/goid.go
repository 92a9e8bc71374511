// Package goid recovers the calling goroutine's runtime id.
//
// Go intentionally does not expose goroutine-local storage or a public
// goroutine id. The otrace runtime needs a stable identity per calling
// goroutine to stand in for the per-OS-thread identity the original
// otrace.hpp uses (tid() via a syscall on every platform it supports).
// The only public way to recover that id from pure Go is to parse the
// leading "goroutine N [...]:" line out of a runtime.Stack dump of the
// current goroutine. That is slower than a thread_local read and has to
// run on every call — there is no hook that fires once per goroutine
// lifetime to cache it at — so callers that emit at high frequency
// should expect this to dominate emit cost more than anything else in
// the hot path.
package goid

import (
	"runtime"
	"strconv"
)

// Get parses and returns the current goroutine's id. It allocates a small
// stack buffer on every call.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts the decimal id from a line of the form "goroutine 123 [running]:".
func parse(b []byte) int64 {
	const prefix = "goroutine "
	if len(b) <= len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
