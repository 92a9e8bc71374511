package otrace

// xorshiftState is a small thread-local PRNG for the admission gate's
// sampling step (spec §4.4 item 2: "draw a uniform double in [0,1) from
// a thread-local xorshift seeded from thread id and time").
type xorshiftState struct{ s uint64 }

func newXorshift(seed uint64) *xorshiftState {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	return &xorshiftState{s: seed}
}

func (x *xorshiftState) next() uint64 {
	x.s ^= x.s << 13
	x.s ^= x.s >> 7
	x.s ^= x.s << 17
	return x.s
}

// float64 returns a uniform draw in [0, 1).
func (x *xorshiftState) float64() float64 {
	// Use the top 53 bits for a full-precision mantissa.
	return float64(x.next()>>11) / float64(1<<53)
}

// shouldEmit implements the admission gate from spec §4.4, evaluated in
// the documented order with short-circuiting. rng is the caller
// goroutine's cached xorshift state (see emit.go).
func shouldEmit(cfg *Config, enabled bool, rng *xorshiftState, name, category string) bool {
	if !enabled {
		return false
	}
	if cfg.KeepProbability < 1.0 {
		if rng.float64() > cfg.KeepProbability {
			return false
		}
	}
	if cfg.AllowCategories != "" && !matchesCSV(cfg.AllowCategories, category) {
		return false
	}
	if cfg.DenyCategories != "" && matchesCSV(cfg.DenyCategories, category) {
		return false
	}
	if cfg.Predicate != nil && !cfg.Predicate.Allow(name, category) {
		return false
	}
	return true
}
