//go:build amd64

package otrace

// readCycleCounter reads the x86 time-stamp counter via RDTSC (see
// clock_tsc_amd64.s). It is the Go equivalent of otrace.hpp's __rdtsc()
// path under OTRACE_CLOCK=2.
func readCycleCounter() uint64
