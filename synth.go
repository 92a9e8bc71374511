package otrace

import "sort"

// synthesize implements the Synthesizer from spec §4.9 as a pure
// function over an already-sorted, committed snapshot, per spec §9
// ("The snapshot must be the sorted, committed slice — not the raw
// ring — so results are deterministic"). It returns the extra events to
// append; the caller is responsible for re-sorting afterward.
func synthesize(events []CleanEvent, cfg Config) []CleanEvent {
	if !cfg.SynthesizeTracks {
		return nil
	}
	var extra []CleanEvent
	extra = append(extra, synthesizeFPS(events, cfg.RateWindowUS)...)
	extra = append(extra, synthesizeCounterRates(events)...)
	extra = append(extra, synthesizeScopeLatency(events, cfg.PercentileLabels, cfg.PercentileQuantiles)...)
	return extra
}

// synthesizeFPS scans frame markers (instants named "frame" in category
// "frame") and emits an "fps" counter at each marker (spec §4.9).
func synthesizeFPS(events []CleanEvent, windowUS uint64) []CleanEvent {
	var frames []uint64
	for _, e := range events {
		if e.Phase == PhaseInstant && e.Name == "frame" && e.Cat == "frame" {
			frames = append(frames, e.Ts)
		}
	}
	if len(frames) == 0 {
		return nil
	}
	var out []CleanEvent
	for i, ts := range frames {
		windowStart := int64(ts) - int64(windowUS)
		count := 0
		for j := i; j >= 0 && frames[j] >= uint64(max64(windowStart, 0)); j-- {
			if int64(frames[j]) < windowStart {
				break
			}
			count++
		}
		fps := 1e6 * float64(count) / float64(windowUS)
		out = append(out, CleanEvent{
			Ts: ts, PID: pidOf(events), Phase: PhaseCounter, Name: "fps", Cat: "synth",
			Args: []CleanArg{{Key: "fps", Kind: ArgNumber, Num: fps}},
		})
	}
	return out
}

// synthesizeCounterRates computes rate(<name>) for every distinct
// counter name with >= 2 samples of its first numeric series (spec
// §4.9). Consecutive samples sharing a timestamp are skipped.
func synthesizeCounterRates(events []CleanEvent) []CleanEvent {
	type sample struct {
		ts  uint64
		val float64
	}
	byName := map[string][]sample{}
	order := []string{}
	for _, e := range events {
		if e.Phase != PhaseCounter || len(e.Args) == 0 {
			continue
		}
		var v float64
		found := false
		for _, a := range e.Args {
			if a.Kind == ArgNumber {
				v = a.Num
				found = true
				break
			}
		}
		if !found {
			continue
		}
		if _, ok := byName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		byName[e.Name] = append(byName[e.Name], sample{ts: e.Ts, val: v})
	}

	var out []CleanEvent
	for _, name := range order {
		samples := byName[name]
		if len(samples) < 2 {
			continue
		}
		for i := 1; i < len(samples); i++ {
			prev, cur := samples[i-1], samples[i]
			if cur.ts == prev.ts {
				continue
			}
			rate := (cur.val - prev.val) / (float64(cur.ts-prev.ts) * 1e-6)
			out = append(out, CleanEvent{
				Ts: cur.ts, Phase: PhaseCounter, Name: "rate(" + name + ")", Cat: "synth",
				Args: []CleanArg{{Key: "rate(" + name + ")", Kind: ArgNumber, Num: rate}},
			})
		}
	}
	return out
}

// synthesizeScopeLatency emits one latency(<name>) instant per distinct
// Complete-event name, at the snapshot's maximum timestamp, with one
// numeric arg per configured quantile (spec §4.9).
func synthesizeScopeLatency(events []CleanEvent, labels []string, quantiles []float64) []CleanEvent {
	if len(labels) == 0 {
		return nil
	}
	durationsByName := map[string][]uint64{}
	order := []string{}
	var maxTs uint64
	for _, e := range events {
		if e.Ts > maxTs {
			maxTs = e.Ts
		}
		if e.Phase != PhaseComplete {
			continue
		}
		if _, ok := durationsByName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		durationsByName[e.Name] = append(durationsByName[e.Name], e.Dur)
	}

	var out []CleanEvent
	for _, name := range order {
		durs := append([]uint64(nil), durationsByName[name]...)
		sortUint64(durs)
		args := make([]CleanArg, len(labels))
		for i, label := range labels {
			idx := int(quantiles[i] * float64(len(durs)-1))
			if idx < 0 {
				idx = 0
			}
			if idx >= len(durs) {
				idx = len(durs) - 1
			}
			args[i] = CleanArg{Key: label, Kind: ArgNumber, Num: float64(durs[idx]) / 1000.0}
		}
		out = append(out, CleanEvent{
			Ts: maxTs, Phase: PhaseInstant, Name: "latency(" + name + ")", Cat: "synth", Args: args,
		})
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func pidOf(events []CleanEvent) uint32 {
	for _, e := range events {
		if e.PID != 0 {
			return e.PID
		}
	}
	return 0
}

func sortUint64(s []uint64) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
