package otrace

import (
	"encoding/json"
	"io"
)

type wireEvent struct {
	Name  string         `json:"name"`
	Cat   string         `json:"cat"`
	Ph    string         `json:"ph"`
	Ts    uint64         `json:"ts"`
	Dur   uint64         `json:"dur,omitempty"`
	PID   uint32         `json:"pid"`
	TID   int64          `json:"tid"`
	ID    uint64         `json:"id,omitempty"`
	S     string         `json:"s,omitempty"`
	Cname string         `json:"cname,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
}

// writeTrace serializes a synthesized, sorted snapshot as Chrome Trace
// Event JSON (spec §4.10, §6.1) to w, streaming one event at a time the
// way internal/trace/traceviewer.ViewerDataTraceConsumer streams viewer
// events: a literal object/array header, one json.Encoder.Encode call
// per element with hand-written comma separators, a literal trailer.
// This avoids buffering the whole trace in memory before writing it.
func writeTrace(w io.Writer, events []CleanEvent) error {
	if _, err := io.WriteString(w, `{"displayTimeUnit":"ms","traceEvents":[`); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i, e := range events {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := enc.Encode(wireEventFrom(e)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]}\n")
	return err
}

// wireEventFrom applies the per-phase field presence rules of spec
// §4.10: "name", "cat", "ph", "ts", "pid" and "tid" are always written
// (metadata events carry ts 0), only Complete events carry "dur", only
// flow events carry "id", only Instant events carry "s", and "cname" and
// "args" appear whenever a color or args are set.
func wireEventFrom(e CleanEvent) wireEvent {
	w := wireEvent{
		Name: e.Name,
		Cat:  e.Cat,
		Ph:   e.Phase.String(),
		Ts:   e.Ts,
		PID:  e.PID,
		TID:  e.TID,
	}
	if e.Phase == PhaseComplete {
		w.Dur = e.Dur
	}
	if e.Phase == PhaseFlowStart || e.Phase == PhaseFlowStep || e.Phase == PhaseFlowEnd {
		w.ID = e.FlowID
	}
	if e.Phase == PhaseInstant {
		w.S = "t"
	}
	if e.Color != "" {
		w.Cname = e.Color
	}
	if len(e.Args) > 0 {
		w.Args = make(map[string]any, len(e.Args))
		for _, a := range e.Args {
			w.Args[a.Key] = argValue(a)
		}
	}
	return w
}

func argValue(a CleanArg) any {
	if a.Kind == ArgNumber {
		return a.Num
	}
	return a.Str
}
