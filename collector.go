package otrace

// collect implements the Collector from spec §4.7: pause emission,
// walk every goroutine buffer copying committed slots in circular
// order, synthesize per-thread and process metadata, then restore the
// pre-flush enabled value.
func (t *Tracer) collect() []CleanEvent {
	prevEnabled := t.reg.enabled.Swap(false)
	defer t.reg.enabled.Store(prevEnabled)

	var out []CleanEvent
	t.reg.forEachBuffer(func(buf *goroutineBuffer) {
		out = append(out, collectBuffer(buf)...)

		if name := buf.getThreadName(); name != "" {
			out = append(out, metaThreadNameEvent(buf, t.pid(), name))
		}
		if buf.sortIndexSet.Load() {
			out = append(out, metaThreadSortIndexEvent(buf, t.pid()))
		}
	})

	if name := t.reg.getProcessName(); name != "" {
		out = append(out, metaProcessNameEvent(t.pid(), name))
	}

	return out
}

// collectBuffer copies every committed slot of buf in oldest-to-newest
// circular order (spec invariant 4).
func collectBuffer(buf *goroutineBuffer) []CleanEvent {
	wrapped := buf.wrapped.Load()
	head := int(buf.head.Load())

	count := head
	start := 0
	if wrapped {
		count = buf.cap
		start = head
	}

	out := make([]CleanEvent, 0, count)
	for i := 0; i < count; i++ {
		slot := (start + i) % buf.cap
		if buf.committed[slot].Load() == 0 {
			continue // in-flight or never-written slot, skip per spec §4.7
		}
		out = append(out, cleanEventFrom(&buf.events[slot]))
	}
	return out
}

func metaThreadNameEvent(buf *goroutineBuffer, pid uint32, name string) CleanEvent {
	return CleanEvent{
		Ts: 0, PID: pid, TID: buf.tid, Phase: PhaseMetaThreadName,
		Name: "thread_name",
		Args: []CleanArg{{Key: "name", Kind: ArgString, Str: name}},
	}
}

func metaThreadSortIndexEvent(buf *goroutineBuffer, pid uint32) CleanEvent {
	return CleanEvent{
		Ts: 0, PID: pid, TID: buf.tid, Phase: PhaseMetaThreadSortIndex,
		Name: "thread_sort_index",
		Args: []CleanArg{{Key: "sort_index", Kind: ArgNumber, Num: float64(buf.sortIndex.Load())}},
	}
}

func metaProcessNameEvent(pid uint32, name string) CleanEvent {
	return CleanEvent{
		Ts: 0, PID: pid, TID: 0, Phase: PhaseMetaProcessName,
		Name: "process_name",
		Args: []CleanArg{{Key: "name", Kind: ArgString, Str: name}},
	}
}
