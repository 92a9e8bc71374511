package otrace

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// selfMetrics is the optional Prometheus sink described in SPEC_FULL.md
// §4.15. It is nil-safe throughout: every method tolerates a nil
// receiver or a nil underlying registerer so the hot emit path never
// has to branch on whether metrics were configured.
type selfMetrics struct {
	emitted        *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	ringOverwrites prometheus.Counter
	flushSeconds   prometheus.Histogram
	flushErrors    prometheus.Counter
	heapLiveBytes  prometheus.Gauge
}

func newSelfMetrics(reg prometheus.Registerer, logger interface {
	Warnf(string, ...any)
}) *selfMetrics {
	if reg == nil {
		return nil
	}
	m := &selfMetrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otrace_events_emitted_total",
			Help: "Events committed to a goroutine buffer, by phase.",
		}, []string{"phase"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otrace_events_dropped_total",
			Help: "Events rejected before being committed, by reason.",
		}, []string{"reason"}),
		ringOverwrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otrace_ring_overwrites_total",
			Help: "Ring-buffer slots holding a committed event that were silently overwritten.",
		}),
		flushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "otrace_flush_duration_seconds",
			Help:    "Wall-clock duration of Flush calls.",
			Buckets: prometheus.DefBuckets,
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otrace_flush_errors_total",
			Help: "Flush attempts that could not produce an output file.",
		}),
		heapLiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otrace_heap_live_bytes",
			Help: "Live tracked heap bytes, mirrored from the heap layer's atomic counter.",
		}),
	}
	for _, c := range []prometheus.Collector{m.emitted, m.dropped, m.ringOverwrites, m.flushSeconds, m.flushErrors, m.heapLiveBytes} {
		if err := reg.Register(c); err != nil && logger != nil {
			logger.Warnf("otrace: metric registration skipped: %v", err)
		}
	}
	return m
}

func (m *selfMetrics) incEmitted(phase Phase) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(phase.String()).Inc()
}

func (m *selfMetrics) incDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *selfMetrics) incRingOverwrite() {
	if m == nil {
		return
	}
	m.ringOverwrites.Inc()
}

func (m *selfMetrics) observeFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushSeconds.Observe(d.Seconds())
}

func (m *selfMetrics) incFlushError() {
	if m == nil {
		return
	}
	m.flushErrors.Inc()
}

func (m *selfMetrics) setHeapLiveBytes(v int64) {
	if m == nil {
		return
	}
	m.heapLiveBytes.Set(float64(v))
}
