package otrace

// reserve runs the gate→reserve→fill step shared by every emit
// function (spec §4.5): check admission, get the calling goroutine's
// buffer, and reserve a slot. It returns nil if the event should be
// dropped (disabled, gated, or reentrant).
func (t *Tracer) reserve(name, category string) (*goroutineBuffer, *Event, int, bool) {
	enabled := t.reg.enabled.Load()
	if !enabled {
		t.metrics.incDropped("disabled")
		return nil, nil, 0, false
	}
	buf := currentGoroutineBuffer(t)
	if !beginReentrant(buf) {
		t.metrics.incDropped("reentrant")
		return nil, nil, 0, false
	}
	cfg := t.reg.config()
	if !shouldEmit(&cfg, enabled, buf.rng, name, category) {
		endReentrant(buf)
		t.metrics.incDropped(dropReason(&cfg, buf.rng, name, category))
		return nil, nil, 0, false
	}
	ev, slot, overwrote := buf.append()
	if overwrote {
		t.metrics.incRingOverwrite()
	}
	ev.PID = t.pid()
	ev.TID = buf.tid
	ev.Ts = t.reg.clock.NowUS()
	ev.setName(name)
	ev.setCat(category)
	return buf, ev, slot, true
}

// dropReason re-derives which gate step rejected the event, purely for
// the self-metrics label (spec §7 never exposes this to the caller).
func dropReason(cfg *Config, rng *xorshiftState, name, category string) string {
	if cfg.AllowCategories != "" && !matchesCSV(cfg.AllowCategories, category) {
		return "category"
	}
	if cfg.DenyCategories != "" && matchesCSV(cfg.DenyCategories, category) {
		return "category"
	}
	if cfg.Predicate != nil && !cfg.Predicate.Allow(name, category) {
		return "predicate"
	}
	return "sampled"
}

func (t *Tracer) finish(buf *goroutineBuffer, slot int, phase Phase) {
	buf.events[slot].Phase = phase
	buf.commit(slot)
	endReentrant(buf)
	t.metrics.incEmitted(phase)
}

// Begin records a Begin (B) phase event (spec §4.5).
func (t *Tracer) Begin(name string, category ...string) {
	cat := firstOr(category, "")
	buf, _, slot, ok := t.reserve(name, cat)
	if !ok {
		return
	}
	t.finish(buf, slot, PhaseBegin)
}

// End records an End (E) phase event (spec §4.5).
func (t *Tracer) End(name string, category ...string) {
	cat := firstOr(category, "")
	buf, _, slot, ok := t.reserve(name, cat)
	if !ok {
		return
	}
	t.finish(buf, slot, PhaseEnd)
}

// Complete records a Complete (X) phase event with a caller-measured
// duration and optional key/value args (spec §4.5).
func (t *Tracer) Complete(name string, durationUS uint64, category string, kvs ...any) {
	buf, ev, slot, ok := t.reserve(name, category)
	if !ok {
		return
	}
	ev.Dur = durationUS
	fillArgs(ev, t.reg.config().MaxArgs, kvs...)
	t.finish(buf, slot, PhaseComplete)
}

// Instant records an Instant (I) phase event (spec §4.5).
func (t *Tracer) Instant(name string, category ...string) {
	cat := firstOr(category, "")
	buf, _, slot, ok := t.reserve(name, cat)
	if !ok {
		return
	}
	t.finish(buf, slot, PhaseInstant)
}

// InstantKVs records an Instant event carrying key/value args, numeric
// or string, dropping any pair beyond the configured MaxArgs (spec §4.5,
// §8 boundary "MAX_ARGS+1").
func (t *Tracer) InstantKVs(name, category string, kvs ...any) {
	buf, ev, slot, ok := t.reserve(name, category)
	if !ok {
		return
	}
	fillArgs(ev, t.reg.config().MaxArgs, kvs...)
	t.finish(buf, slot, PhaseInstant)
}

// CounterN records a Counter (C) event with n named numeric series. If
// keys/vals are both empty, a single series named after the event is
// attached with value 0 (spec §4.5).
func (t *Tracer) CounterN(name, category string, keys []string, vals []float64) {
	buf, ev, slot, ok := t.reserve(name, category)
	if !ok {
		return
	}
	maxArgs := t.reg.config().MaxArgs
	n := len(keys)
	if n > len(vals) {
		n = len(vals)
	}
	if n == 0 {
		if maxArgs > 0 {
			ev.Args[0].setNumber(name, 0)
			ev.ArgC = 1
		}
	} else {
		for i := 0; i < n && i < maxArgs; i++ {
			ev.Args[i].setNumber(keys[i], vals[i])
			ev.ArgC++
		}
	}
	t.finish(buf, slot, PhaseCounter)
}

// Counter is the single-series convenience form of CounterN.
func (t *Tracer) Counter(name, category string, value float64) {
	t.CounterN(name, category, []string{name}, []float64{value})
}

// flowPhase maps the 's'/'t'/'f' abbreviations from spec §4.5/§6.4 onto
// the Phase enum.
func flowPhase(letter byte) (Phase, bool) {
	switch letter {
	case 's':
		return PhaseFlowStart, true
	case 't':
		return PhaseFlowStep, true
	case 'f':
		return PhaseFlowEnd, true
	default:
		return 0, false
	}
}

// Flow records a flow event (s/t/f) linking the given id across
// goroutines, defaulting name/cat to "flow"/"flow" (spec §4.5, invariant
// 6).
func (t *Tracer) Flow(letter byte, id uint64, nameCat ...string) {
	phase, ok := flowPhase(letter)
	if !ok {
		return
	}
	name, cat := "flow", "flow"
	if len(nameCat) > 0 {
		name = nameCat[0]
	}
	if len(nameCat) > 1 {
		cat = nameCat[1]
	}
	buf, ev, slot, ok := t.reserve(name, cat)
	if !ok {
		return
	}
	ev.FlowID = id
	t.finish(buf, slot, phase)
}

func (t *Tracer) FlowBegin(id uint64) { t.Flow('s', id) }
func (t *Tracer) FlowStep(id uint64)  { t.Flow('t', id) }
func (t *Tracer) FlowEnd(id uint64)   { t.Flow('f', id) }

// MarkFrame and MarkFrameLabeled emit the "frame" instants the FPS
// synthesizer scans for (spec §4.9's "Frame marker": name==cat=="frame").
func (t *Tracer) MarkFrame(index int64) {
	t.InstantKVs("frame", "frame", "index", float64(index))
}

func (t *Tracer) MarkFrameLabeled(label string) {
	t.InstantKVs("frame", "frame", "label", label)
}

// metaThreadName/metaProcessName/metaThreadSortIndex emit the metadata
// events described in spec §4.5/§6.1. They bypass the admission gate:
// metadata is process/registry bookkeeping, not a sampled annotation.
func (t *Tracer) metaThreadName(buf *goroutineBuffer, name string) {
	t.emitMetaOnBuffer(buf, PhaseMetaThreadName, name)
}

func (t *Tracer) metaThreadSortIndex(buf *goroutineBuffer, idx int64) {
	ev, slot, _ := buf.append()
	ev.PID = t.pid()
	ev.TID = buf.tid
	ev.Ts = 0
	ev.setName("thread_sort_index")
	ev.Args[0].setNumber("sort_index", float64(idx))
	ev.ArgC = 1
	ev.Phase = PhaseMetaThreadSortIndex
	buf.commit(slot)
}

func (t *Tracer) emitMetaOnBuffer(buf *goroutineBuffer, phase Phase, name string) {
	ev, slot, _ := buf.append()
	ev.PID = t.pid()
	ev.TID = buf.tid
	ev.Ts = 0
	ev.setName("thread_name")
	if phase == PhaseMetaProcessName {
		ev.setName("process_name")
	}
	ev.Args[0].setString("name", name)
	ev.ArgC = 1
	ev.Phase = phase
	buf.commit(slot)
}

func (t *Tracer) metaProcessName(name string) {
	// Process-name metadata isn't tied to any one goroutine's buffer;
	// attach it to the calling goroutine's buffer, same as the C++
	// original attaches it to whichever thread called
	// TRACE_SET_PROCESS_NAME. The Collector synthesizes a canonical
	// single MetaProcessName event at flush time regardless (spec
	// §4.7), so this copy is informational only.
	buf := currentGoroutineBuffer(t)
	t.emitMetaOnBuffer(buf, PhaseMetaProcessName, name)
}

func (t *Tracer) emitHeapLiveBytes(live int64) {
	t.Counter("heap_live_bytes", "heap", float64(live))
	t.metrics.setHeapLiveBytes(live)
}

// firstOr returns s[0] if present, else def.
func firstOr(s []string, def string) string {
	if len(s) > 0 {
		return s[0]
	}
	return def
}

// fillArgs fills ev.Args from a flat key,value,key,value... list,
// accepting float64/int/string values, dropping surplus pairs beyond
// maxArgs (spec §4.5, §8).
func fillArgs(ev *Event, maxArgs int, kvs ...any) {
	pairs := len(kvs) / 2
	for i := 0; i < pairs; i++ {
		if i >= maxArgs {
			return
		}
		key, _ := kvs[2*i].(string)
		val := kvs[2*i+1]
		switch v := val.(type) {
		case string:
			ev.Args[i].setString(key, v)
		case float64:
			ev.Args[i].setNumber(key, v)
		case int:
			ev.Args[i].setNumber(key, float64(v))
		case int64:
			ev.Args[i].setNumber(key, float64(v))
		case bool:
			if v {
				ev.Args[i].setNumber(key, 1)
			} else {
				ev.Args[i].setNumber(key, 0)
			}
		default:
			ev.Args[i].setKey(key)
			ev.Args[i].Kind = ArgNone
		}
		ev.ArgC++
	}
}
