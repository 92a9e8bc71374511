package otrace

// ScopeGuard is the scoped-acquisition value from spec §4.6: Scope
// records the entry time when the admission gate would accept, and
// Release emits a Complete event with the elapsed duration. If
// admission would have rejected at entry, the guard is a no-op — the
// rejection decision is never revisited at Release.
type ScopeGuard struct {
	t        *Tracer
	buf      *goroutineBuffer
	name     string
	category string
	t0       uint64
	live     bool
	kvs      []any
}

// Scope opens a scoped acquisition. Call Release (typically via defer)
// to emit the matching Complete event.
func (t *Tracer) Scope(name string, category string, kvs ...any) *ScopeGuard {
	enabled := t.reg.enabled.Load()
	if !enabled {
		return &ScopeGuard{live: false}
	}
	buf := currentGoroutineBuffer(t)
	cfg := t.reg.config()
	if buf.reentrant || !shouldEmit(&cfg, enabled, buf.rng, name, category) {
		return &ScopeGuard{live: false}
	}
	return &ScopeGuard{
		t: t, buf: buf, name: name, category: category,
		t0: t.reg.clock.NowUS(), live: true, kvs: kvs,
	}
}

// Release emits the scope's Complete event. Safe to call multiple
// times or on a nil guard; only the first call has an effect.
func (g *ScopeGuard) Release() {
	if g == nil || !g.live {
		return
	}
	g.live = false
	if !beginReentrant(g.buf) {
		g.t.metrics.incDropped("reentrant")
		return
	}
	defer endReentrant(g.buf)
	ev, slot, overwrote := g.buf.append()
	if overwrote {
		g.t.metrics.incRingOverwrite()
	}
	ev.PID = g.t.pid()
	ev.TID = g.buf.tid
	ev.Ts = g.t0
	ev.setName(g.name)
	ev.setCat(g.category)
	ev.Dur = g.t.reg.clock.NowUS() - g.t0
	fillArgs(ev, g.t.reg.config().MaxArgs, g.kvs...)
	ev.Phase = PhaseComplete
	g.buf.commit(slot)
	g.t.metrics.incEmitted(PhaseComplete)
}
