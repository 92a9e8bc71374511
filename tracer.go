// Package otrace is an in-process, low-overhead timeline tracer.
// Application code annotates scopes, instants, counters, flows, and
// frames; the tracer buffers those events per-goroutine and, on demand
// or at process exit, writes a single timeline document in the Chrome
// Trace Event JSON format consumable by Perfetto and chrome://tracing.
//
// Ported from the single-header otrace.hpp (see original_source/), with
// "thread" read as "goroutine" throughout — Go exposes no thread-local
// storage to user code, and associating events with goroutines rather
// than OS threads is also how the Go runtime's own execution tracer
// (runtime/trace) does it.
package otrace

import (
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dqminh/otrace-go/internal/goid"
	"github.com/dqminh/otrace-go/internal/heapacct"
)

// Tracer owns one process-wide registry of goroutine buffers plus the
// configuration that governs admission, synthesis, rotation, and the
// optional heap layer. Most programs use the package-level default
// instance (Default) via the free functions in default.go, but New lets a
// program run an isolated tracer, e.g. in tests.
type Tracer struct {
	reg    *registry
	metrics *selfMetrics
	heap   *heapacct.Accountant

	exitOnce sync.Once
}

// New constructs a Tracer from the given options, applied over the
// documented defaults (spec §6.2) and the runtime environment (spec
// §6.3).
func New(opts ...Option) *Tracer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := newRegistry(cfg)
	t := &Tracer{reg: r}
	r.logger = t.logAdapter(cfg.Logger)
	t.metrics = newSelfMetrics(cfg.Registry, cfg.Logger)

	if cfg.HeapEnabled {
		t.heap = heapacct.New(heapacct.Config{
			SampleRate: cfg.HeapSampleRate,
			StackDepth: cfg.HeapStackDepth,
			Shards:     cfg.HeapShards,
			Stacks:     cfg.HeapStacks,
			HashSeed:   cfg.HashSeed,
			OnLiveBytes: func(live int64) {
				t.emitHeapLiveBytes(live)
			},
		})
	}

	if cfg.OnExit {
		t.installExitHook()
	}
	return t
}

func (t *Tracer) logAdapter(l *logrus.Logger) logFn {
	if l == nil {
		l = discardLogger()
	}
	return func(level, msg string, fields map[string]any) {
		e := l.WithFields(logrus.Fields(fields))
		switch level {
		case "warn":
			e.Warn(msg)
		case "info":
			e.Info(msg)
		default:
			e.Debug(msg)
		}
	}
}

// installExitHook registers nothing: it stands in for the at-exit final
// flush of spec §3 "Lifecycles" and §9, which this port does not run
// automatically. Go has no libc-style atexit; runtime.SetFinalizer/signal handling
// can't substitute for "on normal process exit" either, so the hook is
// a best-effort helper a program must invoke itself from its own exit
// path (see (*Tracer).RunAtExit) rather than something the process
// triggers automatically — documented as a REDESIGN-driven deviation in
// DESIGN.md.
func (t *Tracer) installExitHook() {
	// Intentionally a no-op beyond documentation: Go provides no
	// process-wide atexit callback registry. RunAtExit below is the
	// supported substitute; callers that want guaranteed-last-flush
	// semantics call it from their own main() deferred chain.
}

// RunAtExit performs the at-exit flush described in spec §3. It is
// idempotent; call it once, typically via `defer t.RunAtExit()` in
// main(), or let os.Exit handlers in your own process call it.
func (t *Tracer) RunAtExit() {
	t.exitOnce.Do(func() {
		if !t.reg.config().OnExit {
			return
		}
		// Spec §9's open question: the heap report is only produced by
		// an explicit call, never implicitly at exit, to avoid heavy
		// work on the exit path.
		_ = t.Flush("")
	})
}

func currentGoroutineBuffer(t *Tracer) *goroutineBuffer {
	cfg := t.reg.config()
	tid := goid.Get()
	return t.reg.bufferForCurrentGoroutine(tid, cfg.ThreadBufferEvents)
}

// beginReentrant marks the calling goroutine's tracer-reentrancy guard
// (spec §4.5, §9). It returns false if the guard was already held, in
// which case the caller must not do any tracer work.
func beginReentrant(buf *goroutineBuffer) bool {
	if buf.reentrant {
		return false
	}
	buf.reentrant = true
	return true
}

func endReentrant(buf *goroutineBuffer) {
	buf.reentrant = false
}

// Enable/Disable/IsEnabled implement spec §6.4.
func (t *Tracer) Enable()  { t.reg.enabled.Store(true) }
func (t *Tracer) Disable() { t.reg.enabled.Store(false) }
func (t *Tracer) IsEnabled() bool { return t.reg.enabled.Load() }

func (t *Tracer) SetOutputPath(path string) {
	t.reg.updateConfig(func(c *Config) { c.DefaultPath = path })
}

func (t *Tracer) SetOutputPattern(pattern string, maxSizeMB, maxFiles int) {
	t.reg.updateConfig(func(c *Config) {
		c.RotatePattern = pattern
		c.MaxSizeMB = maxSizeMB
		if maxFiles < 1 {
			maxFiles = 1
		}
		c.MaxFiles = maxFiles
	})
}

func (t *Tracer) SetProcessName(name string) {
	t.reg.setProcessName(name)
	t.metaProcessName(name)
}

func (t *Tracer) SetThreadName(name string) {
	buf := currentGoroutineBuffer(t)
	buf.setThreadName(name)
	t.metaThreadName(buf, name)
}

func (t *Tracer) SetThreadSortIndex(i int64) {
	buf := currentGoroutineBuffer(t)
	buf.setThreadSortIndex(i)
	t.metaThreadSortIndex(buf, i)
}

func (t *Tracer) SetNextColor(s string) {
	buf := currentGoroutineBuffer(t)
	buf.pendingColor = s
}

func (t *Tracer) SetFilter(p Predicate) {
	t.reg.updateConfig(func(c *Config) { c.Predicate = p })
}

func (t *Tracer) EnableCategories(csv string) {
	t.reg.updateConfig(func(c *Config) { c.AllowCategories = csv })
}

func (t *Tracer) DisableCategories(csv string) {
	t.reg.updateConfig(func(c *Config) { c.DenyCategories = csv })
}

func (t *Tracer) SetSampling(p float64) {
	t.reg.updateConfig(func(c *Config) { c.KeepProbability = p })
}

func (t *Tracer) EnableSyntheticTracks(v bool) {
	t.reg.updateConfig(func(c *Config) { c.SynthesizeTracks = v })
}

func (t *Tracer) SetLogger(l *logrus.Logger) {
	t.reg.updateConfig(func(c *Config) { c.Logger = l })
	t.reg.logger = t.logAdapter(l)
}

func (t *Tracer) HeapEnable(v bool) {
	if t.heap != nil {
		t.heap.SetEnabled(v)
	}
}

func (t *Tracer) HeapSetSampling(p float64) {
	if t.heap != nil {
		t.heap.SetSampleRate(p)
	}
}

// pid returns the current process id, re-reading it on every call so
// events emitted after a fork carry the new pid (registry.currentPID).
func (t *Tracer) pid() uint32 { return t.reg.currentPID() }

func hostDefaultProcessName() string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "process"
}

func numGoroutineHint() int { return runtime.NumGoroutine() }
