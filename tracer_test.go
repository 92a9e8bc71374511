package otrace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsDisabled(t *testing.T) {
	tr := New()
	assert.False(t, tr.IsEnabled())
}

func TestEnableDisableRoundTrip(t *testing.T) {
	tr := New()
	tr.Enable()
	assert.True(t, tr.IsEnabled())
	tr.Disable()
	assert.False(t, tr.IsEnabled())
}

func TestBeginEndFlushProducesTraceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false))

	tr.Begin("req", "http")
	tr.End("req", "http")
	tr.Instant("ready", "lifecycle")
	tr.Counter("queue_depth", "metrics", 3)

	require.NoError(t, tr.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.GreaterOrEqual(t, len(doc.TraceEvents), 4)
}

func TestCompleteEventCarriesDurationAndArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false))

	tr.Complete("handle", 1500, "http", "status", 200.0)
	require.NoError(t, tr.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.TraceEvents, 1)
	ev := doc.TraceEvents[0]
	assert.Equal(t, "X", ev["ph"])
	assert.Equal(t, 1500.0, ev["dur"])
	args, ok := ev["args"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(200), args["status"])
}

func TestDisabledTracerEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(false), WithOnExit(false))

	tr.Begin("req", "http")
	require.NoError(t, tr.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.TraceEvents)
}

func TestScopeGuardEmitsCompleteOnRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false))

	func() {
		g := tr.Scope("db.query", "db", "table", "users")
		defer g.Release()
	}()

	require.NoError(t, tr.Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.TraceEvents, 1)
	assert.Equal(t, "db.query", doc.TraceEvents[0]["name"])
}

func TestZoneNestingLinksParentAndChildWithFlow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false))

	outer := tr.Zone("outer", "work")
	inner := tr.Zone("inner", "work")
	inner.Release()
	outer.Release()

	require.NoError(t, tr.Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	var flowPhases []string
	for _, ev := range doc.TraceEvents {
		if ph, _ := ev["ph"].(string); ph == "s" || ph == "t" || ph == "f" {
			flowPhases = append(flowPhases, ph)
		}
	}
	assert.NotEmpty(t, flowPhases, "nesting a zone inside another must emit at least one flow event")
}

func TestSamplingZeroDropsAllEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false), WithSampling(0))

	for i := 0; i < 10; i++ {
		tr.Instant("x", "cat")
	}
	require.NoError(t, tr.Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.TraceEvents)
}

func TestAllowCategoriesFiltersNonMatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false), WithAllowCategories("net"))

	tr.Instant("a", "net")
	tr.Instant("b", "ui")

	require.NoError(t, tr.Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.TraceEvents, 1)
	assert.Equal(t, "a", doc.TraceEvents[0]["name"])
}

func TestSetThreadNameEmitsMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false))

	tr.SetThreadName("worker-main")
	tr.Instant("tick", "x")
	require.NoError(t, tr.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	found := false
	for _, ev := range doc.TraceEvents {
		if ev["ph"] == "M" && ev["name"] == "thread_name" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHeapReportNoopWhenHeapDisabled(t *testing.T) {
	tr := New(WithEnabled(true), WithOnExit(false))
	assert.False(t, tr.GenerateHeapReport())
}

func TestHeapTrackAllocFeedsReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	tr := New(WithEnabled(true), WithOnExit(false), WithHeap(true, 1.0))

	tr.TrackAlloc(0x1234, 128)
	assert.True(t, tr.GenerateHeapReport())
	require.NoError(t, tr.Flush(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	found := false
	for _, ev := range doc.TraceEvents {
		if ev["name"] == "heap_report_started" {
			found = true
		}
	}
	assert.True(t, found)
}
