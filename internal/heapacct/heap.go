// Package heapacct implements the optional heap allocation leak/site
// report layer. Unlike the C++ original's operator new/delete override,
// Go gives user code no allocator hook, so this package exposes an
// explicit TrackAlloc/TrackFree API that callers (typically a wrapped
// pool or arena allocator) call themselves, modeled on
// calltr.AllocStats/StatCounter's explicit counting style.
package heapacct

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Config configures an Accountant.
type Config struct {
	SampleRate  float64
	StackDepth  int
	Shards      int
	Stacks      bool
	HashSeed    uint64
	OnLiveBytes func(live int64)
}

// liveAlloc records one outstanding allocation.
type liveAlloc struct {
	size     int64
	callsite uint64
}

// site aggregates every live allocation sharing one callsite hash.
type site struct {
	hash       uint64
	count      int64
	totalBytes int64
	pcs        []uintptr
}

// shard is one stripe of the sharded live-allocation map, protected by
// its own mutex so unrelated goroutines rarely contend. Every lookup,
// insert and delete takes the shard's mutex; sharding only keeps Track
// calls from serializing process-wide.
type shard struct {
	mu   sync.Mutex
	live map[uintptr]liveAlloc
}

// Accountant is the heap tracking layer. It is safe for concurrent use.
type Accountant struct {
	enabled    atomic.Bool
	sampleRate atomic.Uint64 // float64 bits

	shards     []*shard
	stackDepth int
	wantStacks bool

	sitesMu sync.Mutex
	sites   map[uint64]*site

	liveBytes atomic.Int64
	onLive    func(int64)

	rngState atomic.Uint64
}

// New constructs an Accountant. A nil onLiveBytes is tolerated.
func New(cfg Config) *Accountant {
	shards := cfg.Shards
	if shards < 1 {
		shards = 1
	}
	a := &Accountant{
		shards:     make([]*shard, shards),
		stackDepth: cfg.StackDepth,
		wantStacks: cfg.Stacks,
		sites:      make(map[uint64]*site),
		onLive:     cfg.OnLiveBytes,
	}
	for i := range a.shards {
		a.shards[i] = &shard{live: make(map[uintptr]liveAlloc)}
	}
	a.enabled.Store(true)
	a.setSampleRate(cfg.SampleRate)
	seed := cfg.HashSeed
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	a.rngState.Store(seed)
	return a
}

func (a *Accountant) SetEnabled(v bool) { a.enabled.Store(v) }

func (a *Accountant) SetSampleRate(p float64) { a.setSampleRate(p) }

func (a *Accountant) setSampleRate(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	a.sampleRate.Store(math.Float64bits(p))
}

// shouldSample draws a uniform sample independent of the main tracer's
// admission gate; the heap layer has its own because it is typically
// enabled at a much lower rate (one in a thousand allocations, not one
// in ten events).
func (a *Accountant) shouldSample() bool {
	rate := math.Float64frombits(a.sampleRate.Load())
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	for {
		old := a.rngState.Load()
		x := old
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		if a.rngState.CompareAndSwap(old, x) {
			return (float64(x>>11) * (1.0 / (1 << 53))) < rate
		}
	}
}

func (a *Accountant) shardFor(ptr uintptr) *shard {
	h := uint64(ptr)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return a.shards[h%uint64(len(a.shards))]
}

// TrackAlloc records a new live allocation at ptr of the given size.
// The callsite is hashed from the caller's return address chain, xxhash
// over the raw program-counter bytes (cespare/xxhash/v2).
func (a *Accountant) TrackAlloc(ptr uintptr, size int64) {
	if !a.enabled.Load() || !a.shouldSample() {
		return
	}
	pcs := capturePCs(a.stackDepth)
	hash := hashPCs(pcs)

	sh := a.shardFor(ptr)
	sh.mu.Lock()
	sh.live[ptr] = liveAlloc{size: size, callsite: hash}
	sh.mu.Unlock()

	a.recordSite(hash, size, pcs)
	live := a.liveBytes.Add(size)
	if a.onLive != nil {
		a.onLive(live)
	}
}

// TrackFree removes the allocation at ptr, if one was tracked (a
// pointer sampled out at alloc time is silently ignored at free time,
// same as the C++ layer skips untracked pointers).
func (a *Accountant) TrackFree(ptr uintptr) {
	sh := a.shardFor(ptr)
	sh.mu.Lock()
	rec, ok := sh.live[ptr]
	if ok {
		delete(sh.live, ptr)
	}
	sh.mu.Unlock()
	if !ok {
		return
	}

	a.sitesMu.Lock()
	if s, ok := a.sites[rec.callsite]; ok {
		s.count--
		s.totalBytes -= rec.size
	}
	a.sitesMu.Unlock()

	live := a.liveBytes.Add(-rec.size)
	if a.onLive != nil {
		a.onLive(live)
	}
}

func (a *Accountant) recordSite(hash uint64, size int64, pcs []uintptr) {
	a.sitesMu.Lock()
	defer a.sitesMu.Unlock()
	s, ok := a.sites[hash]
	if !ok {
		s = &site{hash: hash, pcs: pcs}
		a.sites[hash] = s
	}
	s.count++
	s.totalBytes += size
}

// Report is the output of GenerateReport: the top sites by live byte
// count and the top sites by live allocation count, mirroring the
// heap_leaks/heap_sites pair from spec §4.12. Both counts are reduced
// by TrackFree, so freed allocations are not counted in either ranking.
type Report struct {
	LiveBytes int64
	TopLeaks  []SiteReport
	TopSites  []SiteReport
}

// SiteReport describes one callsite's aggregate.
type SiteReport struct {
	Hash       uint64
	Count      int64
	TotalBytes int64
	Frames     []string
}

// GenerateReport snapshots the current site table into a Report with
// the top 10 entries by live bytes and by live allocation count (spec §4.12). It
// does not reset counters; repeated calls are idempotent reads.
func (a *Accountant) GenerateReport() Report {
	a.sitesMu.Lock()
	snap := make([]*site, 0, len(a.sites))
	for _, s := range a.sites {
		snap = append(snap, s)
	}
	a.sitesMu.Unlock()

	byBytes := append([]*site(nil), snap...)
	sortSitesByBytesDesc(byBytes)
	byCount := append([]*site(nil), snap...)
	sortSitesByCountDesc(byCount)

	return Report{
		LiveBytes: a.liveBytes.Load(),
		TopLeaks:  toSiteReports(byBytes, 10, a.wantStacks),
		TopSites:  toSiteReports(byCount, 10, a.wantStacks),
	}
}

func toSiteReports(sites []*site, limit int, withFrames bool) []SiteReport {
	if len(sites) > limit {
		sites = sites[:limit]
	}
	out := make([]SiteReport, len(sites))
	for i, s := range sites {
		out[i] = SiteReport{Hash: s.hash, Count: s.count, TotalBytes: s.totalBytes}
		if withFrames {
			out[i].Frames = framesFromPCs(s.pcs)
		}
	}
	return out
}

func sortSitesByBytesDesc(s []*site) {
	sort.Slice(s, func(i, j int) bool { return s[i].totalBytes > s[j].totalBytes })
}

func sortSitesByCountDesc(s []*site) {
	sort.Slice(s, func(i, j int) bool { return s[i].count > s[j].count })
}

func capturePCs(depth int) []uintptr {
	if depth <= 0 {
		depth = 16
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(3, pcs) // skip Callers, capturePCs, TrackAlloc
	return pcs[:n]
}

func hashPCs(pcs []uintptr) uint64 {
	d := xxhash.New()
	buf := make([]byte, 8)
	for _, pc := range pcs {
		putUint64(buf, uint64(pc))
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func framesFromPCs(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	var out []string
	for {
		f, more := frames.Next()
		out = append(out, f.Function)
		if !more {
			break
		}
	}
	return out
}
