package otrace

// BeginNamed and EndNamed are the SUPPLEMENT call-by-name convenience
// layer mirrored from original_source/examples/call_by_name_aliases.cpp:
// a begin/end pair addressed by a caller-chosen string key rather than
// a guard value, for call sites where threading a ScopeGuard through
// two separate functions is awkward.
//
// Matching EndNamed twice for one key is a silent no-op (the map entry
// is gone after the first); never matching EndNamed leaks only the map
// entry, never a ring slot. Goroutine buffers are never released, so
// such an entry stays for the life of the Tracer.
func (t *Tracer) BeginNamed(key, name, category string) {
	enabled := t.reg.enabled.Load()
	if !enabled {
		return
	}
	buf := currentGoroutineBuffer(t)
	cfg := t.reg.config()
	if buf.reentrant || !shouldEmit(&cfg, enabled, buf.rng, name, category) {
		return
	}
	if buf.namedBegins == nil {
		buf.namedBegins = make(map[string]namedBegin)
	}
	buf.namedBegins[key] = namedBegin{ts: t.reg.clock.NowUS(), cat: category}
}

func (t *Tracer) EndNamed(key, name string) {
	buf := currentGoroutineBuffer(t)
	pending, ok := buf.namedBegins[key]
	if !ok {
		return
	}
	delete(buf.namedBegins, key)
	if !beginReentrant(buf) {
		t.metrics.incDropped("reentrant")
		return
	}
	defer endReentrant(buf)
	ev, slot, overwrote := buf.append()
	if overwrote {
		t.metrics.incRingOverwrite()
	}
	ev.PID = t.pid()
	ev.TID = buf.tid
	ev.Ts = pending.ts
	ev.setName(name)
	ev.setCat(pending.cat)
	ev.Dur = t.reg.clock.NowUS() - pending.ts
	ev.Phase = PhaseComplete
	buf.commit(slot)
	t.metrics.incEmitted(PhaseComplete)
}
