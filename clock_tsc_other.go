//go:build !amd64

package otrace

// readCycleCounter reports that no cycle counter is available on this
// architecture; calibrate() then leaves cycleAvailable false and NowUS
// falls back to the steady source. Go exposes no portable intrinsic for
// reading a hardware cycle counter outside of asm stubs per-arch, and
// writing one for every GOARCH is out of scope for this tracer.
func readCycleCounter() uint64 { return 0 }
