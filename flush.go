package otrace

import (
	"io"
	"time"
)

// Flush implements the Flush/Collect pipeline from spec §4.6/§4.7:
// pause emission, collect every goroutine buffer's committed events,
// sort to the canonical order, synthesize derived tracks and re-sort,
// serialize as Chrome Trace Event JSON, and rotate/compress to disk.
// An empty path uses the tracer's configured default/rotation path.
// Emission resumes (restored to its pre-flush value) before Flush
// returns, even on error.
func (t *Tracer) Flush(path string) error {
	started := time.Now()
	cfg := t.reg.config()

	events := t.collect()
	sortSnapshot(events)
	if extra := synthesize(events, cfg); len(extra) > 0 {
		events = append(events, extra...)
		sortSnapshot(events)
	}

	if path != "" {
		cfg.RotatePattern = path
		cfg.MaxFiles = 1
	}
	idx := rotateIndexFromMaxFiles(t.reg, cfg.MaxFiles)

	written, err := writeRotated(&cfg, idx, func(w io.Writer) error {
		return writeTrace(w, events)
	})
	t.metrics.observeFlush(time.Since(started))
	if err != nil {
		t.metrics.incFlushError()
		t.reg.log("warn", "flush failed", map[string]any{"error": err.Error(), "path": written})
		return err
	}
	t.reg.log("info", "flush complete", map[string]any{"path": written, "events": len(events)})
	return nil
}

// GenerateHeapReport implements spec §4.12: an explicit, caller-invoked
// snapshot of the heap layer's leak/site tables, emitted as a bracketed
// run of instant events (heap_report_started, up to ten heap_leaks, up
// to ten heap_sites, heap_report_done) so it shows up inline in the next
// Flush's output. It is a no-op, returning false, if the heap layer was
// never enabled.
func (t *Tracer) GenerateHeapReport() bool {
	if t.heap == nil {
		return false
	}
	report := t.heap.GenerateReport()

	t.InstantKVs("heap_report_started", "heap", "live_bytes", float64(report.LiveBytes))
	for _, s := range report.TopLeaks {
		t.InstantKVs("heap_leaks", "heap",
			"hash", float64(s.Hash), "count", float64(s.Count), "bytes", float64(s.TotalBytes))
	}
	for _, s := range report.TopSites {
		t.InstantKVs("heap_sites", "heap",
			"hash", float64(s.Hash), "count", float64(s.Count), "bytes", float64(s.TotalBytes))
	}
	t.InstantKVs("heap_report_done", "heap", "live_bytes", float64(report.LiveBytes))
	return true
}

// TrackAlloc and TrackFree expose the heap layer's explicit allocation
// hooks (spec §4.12's REDESIGN note: Go has no operator-new-style
// allocator hook, so programs that want heap accounting call these
// themselves from their own allocation wrapper). Both are no-ops when
// the heap layer was never enabled.
func (t *Tracer) TrackAlloc(ptr uintptr, size int64) {
	if t.heap != nil {
		t.heap.TrackAlloc(ptr, size)
	}
}

func (t *Tracer) TrackFree(ptr uintptr) {
	if t.heap != nil {
		t.heap.TrackFree(ptr)
	}
}
