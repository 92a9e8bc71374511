package otrace

import "github.com/sirupsen/logrus"

// Default is the process-wide Tracer every free function in this file
// delegates to, mirroring the otrace.hpp original's process-singleton
// Registry (spec GLOSSARY "Registry"). It starts disabled; call
// Configure or Enable before annotating.
var Default = New()

// Configure replaces Default with a freshly constructed Tracer built
// from opts. Call it once, early in main, before any goroutine starts
// emitting — it does not migrate events already buffered on the old
// instance.
func Configure(opts ...Option) { Default = New(opts...) }

func Enable()             { Default.Enable() }
func Disable()            { Default.Disable() }
func IsEnabled() bool     { return Default.IsEnabled() }
func RunAtExit()          { Default.RunAtExit() }
func Flush(path string) error { return Default.Flush(path) }

func SetOutputPath(path string)                           { Default.SetOutputPath(path) }
func SetOutputPattern(pattern string, maxSizeMB, n int)    { Default.SetOutputPattern(pattern, maxSizeMB, n) }
func SetProcessName(name string)                          { Default.SetProcessName(name) }
func SetThreadName(name string)                           { Default.SetThreadName(name) }
func SetThreadSortIndex(i int64)                           { Default.SetThreadSortIndex(i) }
func SetNextColor(s string)                               { Default.SetNextColor(s) }
func SetFilter(p Predicate)                               { Default.SetFilter(p) }
func EnableCategories(csv string)                         { Default.EnableCategories(csv) }
func DisableCategories(csv string)                        { Default.DisableCategories(csv) }
func SetSampling(p float64)                               { Default.SetSampling(p) }
func EnableSyntheticTracks(v bool)                        { Default.EnableSyntheticTracks(v) }
func SetLogger(l *logrus.Logger)                          { Default.SetLogger(l) }
func HeapEnable(v bool)                                   { Default.HeapEnable(v) }
func HeapSetSampling(p float64)                           { Default.HeapSetSampling(p) }
func GenerateHeapReport() bool                            { return Default.GenerateHeapReport() }
func TrackAlloc(ptr uintptr, size int64)                  { Default.TrackAlloc(ptr, size) }
func TrackFree(ptr uintptr)                               { Default.TrackFree(ptr) }

func Begin(name string, category ...string)             { Default.Begin(name, category...) }
func End(name string, category ...string)                { Default.End(name, category...) }
func Complete(name string, durationUS uint64, category string, kvs ...any) {
	Default.Complete(name, durationUS, category, kvs...)
}
func Instant(name string, category ...string)           { Default.Instant(name, category...) }
func InstantKVs(name, category string, kvs ...any)       { Default.InstantKVs(name, category, kvs...) }
func CounterN(name, category string, keys []string, vals []float64) {
	Default.CounterN(name, category, keys, vals)
}
func Counter(name, category string, value float64) { Default.Counter(name, category, value) }
func FlowBegin(id uint64)                           { Default.FlowBegin(id) }
func FlowStep(id uint64)                            { Default.FlowStep(id) }
func FlowEnd(id uint64)                             { Default.FlowEnd(id) }
func MarkFrame(index int64)                         { Default.MarkFrame(index) }
func MarkFrameLabeled(label string)                 { Default.MarkFrameLabeled(label) }

func Scope(name, category string, kvs ...any) *ScopeGuard { return Default.Scope(name, category, kvs...) }
func Zone(name string, category ...string) *ZoneGuard     { return Default.Zone(name, category...) }
func BeginNamed(key, name, category string)                { Default.BeginNamed(key, name, category) }
func EndNamed(key, name string)                            { Default.EndNamed(key, name) }
