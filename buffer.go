package otrace

import (
	"sync/atomic"
	"time"
)

func nowSeed() int64 { return time.Now().UnixNano() }

// goroutineBuffer is the Go port of spec's "Thread Buffer": a
// fixed-capacity ring of Events exclusively owned by the goroutine that
// created it, discoverable by the flush path through the Registry's
// intrusive list (spec §3, §4.2, §4.3).
//
// Event storage and commit flags are kept in separate parallel slices
// (grounded on storj-storj's flightrecorder.CircularBuffer) rather than
// embedding an atomic flag inside Event itself: it lets CleanEvent
// snapshots copy plain Event values without ever copying a value that
// an atomic type is embedded in.
type goroutineBuffer struct {
	events    []Event
	committed []atomic.Uint32

	head    atomic.Uint64
	wrapped atomic.Bool
	seq     atomic.Uint64
	appends atomic.Uint64

	tid  int64
	cap  int

	// pendingColor is a one-shot color hint consumed by the next
	// emitted event on this goroutine only (spec §4.5 set_next_color).
	// It is owner-exclusive: only the producing goroutine ever touches
	// it, so it needs no synchronization.
	pendingColor string

	// threadName/sortIndex are set by the owning goroutine and read by
	// the flush path from a different goroutine, hence atomic.
	threadName atomic.Pointer[string]
	sortIndex  atomic.Int64
	sortIndexSet atomic.Bool

	next *goroutineBuffer // intrusive list link, written once before publication

	// The following are owner-exclusive, goroutine-local working state
	// that has no equivalent field in the spec's Thread Buffer record;
	// they ride along on the same struct purely because it is already
	// the per-goroutine handle this port uses in place of real TLS.
	rng         *xorshiftState
	reentrant   bool
	zones       []zoneFrame
	namedBegins map[string]namedBegin
}

type namedBegin struct {
	ts  uint64
	cat string
}

func newGoroutineBuffer(tid int64, capacity int) *goroutineBuffer {
	return &goroutineBuffer{
		events:    make([]Event, capacity),
		committed: make([]atomic.Uint32, capacity),
		tid:       tid,
		cap:       capacity,
		rng:       newXorshift(uint64(tid)*2654435761 ^ uint64(nowSeed())),
	}
}


// append reserves the slot at head, per spec §4.2. It must only be
// called by the owning goroutine. The returned slot's commit flag is
// cleared (relaxed) before the caller fills it; commit() must be called
// once filling is complete. overwrote reports whether, after the ring
// has wrapped, the reserved slot still held a committed event from an
// earlier lap; flushing does not clear commit flags, so this is true
// whether or not that event was already written out by a Flush.
func (b *goroutineBuffer) append() (ev *Event, slot int, overwrote bool) {
	slot = int(b.head.Load())
	next := (slot + 1) % b.cap
	if next == 0 {
		b.wrapped.Store(true)
	}
	b.head.Store(uint64(next))

	overwrote = b.wrapped.Load() && b.committed[slot].Load() != 0

	// Clear the commit flag for this slot before the producer starts
	// filling it, so a concurrent collector never observes half-written
	// data as committed (spec invariant 2).
	b.committed[slot].Store(0)

	ev = &b.events[slot]
	ev.reset()
	ev.Seq = b.seq.Add(1)
	if b.pendingColor != "" {
		ev.setColor(b.pendingColor)
		b.pendingColor = ""
	}
	b.appends.Add(1)
	return ev, slot, overwrote
}

// commit publishes a filled slot with release semantics (spec §4.2,
// invariant 2).
func (b *goroutineBuffer) commit(slot int) {
	b.committed[slot].Store(1)
}

// setThreadName/threadSortIndex implement the metadata mirrors spec §4.5
// describes ("update the owning thread buffer / registry mirrors").
func (b *goroutineBuffer) setThreadName(name string) {
	s := name
	b.threadName.Store(&s)
}

func (b *goroutineBuffer) getThreadName() string {
	if p := b.threadName.Load(); p != nil {
		return *p
	}
	return ""
}

func (b *goroutineBuffer) setThreadSortIndex(i int64) {
	b.sortIndex.Store(i)
	b.sortIndexSet.Store(true)
}
