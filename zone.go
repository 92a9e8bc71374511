package otrace

import "sync/atomic"

// zoneSeq is a process-wide counter minting flow ids that link parent
// and child zones, mirrored from original_source/examples/zones.cpp.
var zoneSeq atomic.Uint64

// zoneFrame is one entry of a goroutine's zone stack (see buffer.go's
// goroutineBuffer.zones).
type zoneFrame struct {
	name     string
	category string
	t0       uint64
	flowID   uint64 // shared with its parent and children; 0 while it has neither
}

// ZoneGuard is the SUPPLEMENT nested-region guard described in
// SPEC_FULL.md §4.17: like ScopeGuard, but pushes onto a per-goroutine
// stack and, when nested inside another open zone, links parent and
// child with an automatic FlowStep.
type ZoneGuard struct {
	t    *Tracer
	buf  *goroutineBuffer
	live bool
}

// Zone opens a nested named region on the calling goroutine's zone
// stack. Releasing zones out of LIFO order is a caller error: the
// offending guard still emits its own Complete event correctly, but
// only its own stack slot is popped (SPEC_FULL.md §8).
func (t *Tracer) Zone(name string, category ...string) *ZoneGuard {
	cat := firstOr(category, "zone")
	enabled := t.reg.enabled.Load()
	if !enabled {
		return &ZoneGuard{live: false}
	}
	buf := currentGoroutineBuffer(t)
	cfg := t.reg.config()
	if buf.reentrant || !shouldEmit(&cfg, enabled, buf.rng, name, cat) {
		return &ZoneGuard{live: false}
	}

	var flowID uint64
	if n := len(buf.zones); n > 0 {
		parent := &buf.zones[n-1]
		if parent.flowID == 0 {
			parent.flowID = zoneSeq.Add(1)
			t.Flow('s', parent.flowID, parent.name, parent.category)
		}
		flowID = parent.flowID
		t.Flow('t', flowID, name, cat)
	}

	buf.zones = append(buf.zones, zoneFrame{name: name, category: cat, t0: t.reg.clock.NowUS(), flowID: flowID})
	return &ZoneGuard{t: t, buf: buf, live: true}
}

// Release pops this zone's stack slot and emits its Complete event.
func (z *ZoneGuard) Release() {
	if z == nil || !z.live {
		return
	}
	z.live = false
	n := len(z.buf.zones)
	if n == 0 {
		return
	}
	frame := z.buf.zones[n-1]
	z.buf.zones = z.buf.zones[:n-1]

	if !beginReentrant(z.buf) {
		z.t.metrics.incDropped("reentrant")
		return
	}
	defer endReentrant(z.buf)
	ev, slot, overwrote := z.buf.append()
	if overwrote {
		z.t.metrics.incRingOverwrite()
	}
	ev.PID = z.t.pid()
	ev.TID = z.buf.tid
	ev.Ts = frame.t0
	ev.setName(frame.name)
	ev.setCat(frame.category)
	ev.Dur = z.t.reg.clock.NowUS() - frame.t0
	ev.Phase = PhaseComplete
	z.buf.commit(slot)
	z.t.metrics.incEmitted(PhaseComplete)

	if frame.flowID != 0 {
		z.t.Flow('f', frame.flowID, frame.name, frame.category)
	}
}
