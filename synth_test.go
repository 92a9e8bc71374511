package otrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeDisabledReturnsNil(t *testing.T) {
	cfg := Config{SynthesizeTracks: false}
	events := []CleanEvent{{Ts: 1, Phase: PhaseInstant, Name: "frame", Cat: "frame"}}
	assert.Nil(t, synthesize(events, cfg))
}

func TestSynthesizeFPSCountsFramesInWindow(t *testing.T) {
	cfg := Config{SynthesizeTracks: true, RateWindowUS: 1000}
	var events []CleanEvent
	for _, ts := range []uint64{0, 200, 400, 600, 1800} {
		events = append(events, CleanEvent{Ts: ts, Phase: PhaseInstant, Name: "frame", Cat: "frame"})
	}
	out := synthesizeFPS(events, cfg.RateWindowUS)
	require.Len(t, out, 5)
	last := out[len(out)-1]
	assert.Equal(t, "fps", last.Name)
	assert.Equal(t, PhaseCounter, last.Phase)
	require.Len(t, last.Args, 1)
	assert.Equal(t, "fps", last.Args[0].Key)
}

func TestSynthesizeFPSNoFramesReturnsNil(t *testing.T) {
	events := []CleanEvent{{Ts: 1, Phase: PhaseInstant, Name: "other", Cat: "x"}}
	assert.Nil(t, synthesizeFPS(events, 1000))
}

func TestSynthesizeCounterRatesComputesDelta(t *testing.T) {
	events := []CleanEvent{
		{Ts: 0, Phase: PhaseCounter, Name: "bytes", Args: []CleanArg{{Key: "bytes", Kind: ArgNumber, Num: 0}}},
		{Ts: 1000000, Phase: PhaseCounter, Name: "bytes", Args: []CleanArg{{Key: "bytes", Kind: ArgNumber, Num: 100}}},
	}
	out := synthesizeCounterRates(events)
	require.Len(t, out, 1)
	assert.Equal(t, "rate(bytes)", out[0].Name)
	assert.InDelta(t, 100.0, out[0].Args[0].Num, 0.001)
}

func TestSynthesizeCounterRatesSkipsSameTimestamp(t *testing.T) {
	events := []CleanEvent{
		{Ts: 5, Phase: PhaseCounter, Name: "x", Args: []CleanArg{{Key: "x", Kind: ArgNumber, Num: 1}}},
		{Ts: 5, Phase: PhaseCounter, Name: "x", Args: []CleanArg{{Key: "x", Kind: ArgNumber, Num: 2}}},
	}
	assert.Empty(t, synthesizeCounterRates(events))
}

func TestSynthesizeScopeLatencyComputesQuantiles(t *testing.T) {
	var events []CleanEvent
	for i := uint64(1); i <= 10; i++ {
		events = append(events, CleanEvent{Ts: i, Phase: PhaseComplete, Name: "op", Dur: i * 1000})
	}
	out := synthesizeScopeLatency(events, []string{"p50", "p99"}, []float64{0.5, 0.99})
	require.Len(t, out, 1)
	assert.Equal(t, "latency(op)", out[0].Name)
	require.Len(t, out[0].Args, 2)
	assert.Equal(t, "p50", out[0].Args[0].Key)
	assert.Equal(t, "p99", out[0].Args[1].Key)
}

func TestSynthesizeScopeLatencyNoLabelsReturnsNil(t *testing.T) {
	events := []CleanEvent{{Ts: 1, Phase: PhaseComplete, Name: "op", Dur: 5}}
	assert.Nil(t, synthesizeScopeLatency(events, nil, nil))
}
