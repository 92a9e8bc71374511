package otrace

import (
	"os"
	"sync"
	"sync/atomic"
)

// registry is the process-wide state described in spec §3/§4.3: an
// intrusive, append-only, lock-free singly-linked list of goroutine
// buffers plus the mutable process configuration.
//
// The list head is a CAS target; next pointers are written once, before
// a buffer is published, and never mutated afterward (spec §4.3, §9
// "do not mutate next after publication").
type registry struct {
	head atomic.Pointer[goroutineBuffer]

	enabled atomic.Bool

	pid         atomic.Uint32
	processName atomic.Pointer[string]

	cfgMu sync.RWMutex
	cfg   Config

	rotateIndex atomic.Uint64

	clock *clock

	// lookup caches the per-goroutine buffer by goroutine id so repeat
	// emits from the same goroutine don't walk the intrusive list. It
	// is a pure performance aid, not part of the spec's data model; the
	// intrusive list remains the authoritative structure flush walks.
	lookup sync.Map // int64 goroutine id -> *goroutineBuffer

	logger logFn
}

// logFn lets the registry log without importing the Tracer's logrus
// dependency into every file that touches it.
type logFn func(level string, msg string, fields map[string]any)

func newRegistry(cfg Config) *registry {
	r := &registry{cfg: cfg}
	r.enabled.Store(cfg.Enabled)
	r.pid.Store(uint32(os.Getpid()))
	r.clock = newClock(cfg.ClockSource)
	return r
}

// currentPID re-reads the OS pid lazily, detecting post-fork changes per
// spec invariant 6: "subsequent events carry the new pid but pre-fork
// slots retain the old pid."
func (r *registry) currentPID() uint32 {
	cur := uint32(os.Getpid())
	if prev := r.pid.Load(); prev != cur {
		if r.pid.CompareAndSwap(prev, cur) {
			r.log("info", "pid changed, likely post-fork", map[string]any{"old": prev, "new": cur})
		}
	}
	return r.pid.Load()
}

func (r *registry) log(level, msg string, fields map[string]any) {
	if r.logger != nil {
		r.logger(level, msg, fields)
	}
}

func (r *registry) config() Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

func (r *registry) updateConfig(fn func(*Config)) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	fn(&r.cfg)
}

// bufferForCurrentGoroutine returns the calling goroutine's buffer,
// creating and publishing one on first use (spec §3 "Lifecycles", §4.3).
func (r *registry) bufferForCurrentGoroutine(tid int64, capacity int) *goroutineBuffer {
	if v, ok := r.lookup.Load(tid); ok {
		return v.(*goroutineBuffer)
	}
	buf := newGoroutineBuffer(tid, capacity)
	r.publish(buf)
	r.lookup.Store(tid, buf)
	return buf
}

// publish CAS-pushes buf onto the registry head, per spec §4.3.
func (r *registry) publish(buf *goroutineBuffer) {
	for {
		head := r.head.Load()
		buf.next = head // written before the CAS, never touched again
		if r.head.CompareAndSwap(head, buf) {
			return
		}
	}
}

// forEachBuffer traverses the intrusive list under an acquire load on
// head and plain next reads, per spec §4.3.
func (r *registry) forEachBuffer(fn func(*goroutineBuffer)) {
	for b := r.head.Load(); b != nil; b = b.next {
		fn(b)
	}
}

func (r *registry) setProcessName(name string) {
	s := name
	r.processName.Store(&s)
}

func (r *registry) getProcessName() string {
	if p := r.processName.Load(); p != nil {
		return *p
	}
	return ""
}

// nextRotateIndex increments the process-local rotation counter and
// returns the index to use, wrapped modulo maxFiles (spec §4.11).
func (r *registry) nextRotateIndex(maxFiles int) uint64 {
	if maxFiles < 1 {
		maxFiles = 1
	}
	return (r.rotateIndex.Add(1) - 1) % uint64(maxFiles)
}
