package otrace

import "sort"

// sortSnapshot establishes the stable total order from spec §4.8:
// ascending (Ts, TID, Seq), with metadata (Ts==0) naturally sorting
// first since no real event carries Ts==0 (monotonic clocks start
// counting from process start, spec §4.1).
func sortSnapshot(events []CleanEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Ts != b.Ts {
			return a.Ts < b.Ts
		}
		if a.TID != b.TID {
			return a.TID < b.TID
		}
		return a.Seq < b.Seq
	})
}
