package otrace

// Phase tags the kind of timeline record an Event carries. The set is
// closed; see spec §3.
type Phase uint8

const (
	PhaseBegin Phase = iota
	PhaseEnd
	PhaseComplete
	PhaseInstant
	PhaseCounter
	PhaseFlowStart
	PhaseFlowStep
	PhaseFlowEnd
	PhaseMetaThreadName
	PhaseMetaProcessName
	PhaseMetaThreadSortIndex
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "B"
	case PhaseEnd:
		return "E"
	case PhaseComplete:
		return "X"
	case PhaseInstant:
		return "I"
	case PhaseCounter:
		return "C"
	case PhaseFlowStart:
		return "s"
	case PhaseFlowStep:
		return "t"
	case PhaseFlowEnd:
		return "f"
	case PhaseMetaThreadName, PhaseMetaProcessName, PhaseMetaThreadSortIndex:
		return "M"
	default:
		return "?"
	}
}

// Bounded capacities. Oversize inputs are truncated, never rejected.
const (
	maxNameLen   = 64
	maxCatLen    = 32
	maxArgKeyLen = 32
	maxArgValLen = 64
	maxColorLen  = 16

	// hardMaxArgs bounds the fixed Args array; the configured MaxArgs
	// (default 4, see Config.MaxArgs) must not exceed this.
	hardMaxArgs = 8
)

// ArgKind discriminates the union carried by an Arg.
type ArgKind uint8

const (
	ArgNone ArgKind = iota
	ArgNumber
	ArgString
)

// Arg is one key/value pair attached to an event. Keys and string values
// are bounded, NUL-terminated byte arrays so filling an Arg never
// allocates.
type Arg struct {
	Key    [maxArgKeyLen]byte
	KeyLen uint8
	Kind   ArgKind
	Num    float64
	Str    [maxArgValLen]byte
	StrLen uint8
}

func (a *Arg) setKey(s string) {
	a.KeyLen = boundedCopy(a.Key[:], s)
}

func (a *Arg) setNumber(key string, v float64) {
	a.setKey(key)
	a.Kind = ArgNumber
	a.Num = v
}

func (a *Arg) setString(key, v string) {
	a.setKey(key)
	a.Kind = ArgString
	a.StrLen = boundedCopy(a.Str[:], v)
}

func (a *Arg) keyString() string { return string(a.Key[:a.KeyLen]) }
func (a *Arg) strString() string { return string(a.Str[:a.StrLen]) }

// boundedCopy copies as much of s as fits in dst, NUL-terminating at the
// truncation point if s didn't fit, and returns the number of bytes of
// actual content (excluding the terminator). Truncation is not an error.
func boundedCopy(dst []byte, s string) uint8 {
	n := len(s)
	if n >= len(dst) {
		n = len(dst) - 1
	}
	copy(dst[:n], s)
	dst[n] = 0
	return uint8(n)
}

// Event is the fixed-shape structured record at the heart of the tracer.
// It is plain data: no Event is ever read concurrently with being
// written except through the owning goroutineBuffer's commit-flag
// protocol (see buffer.go), so Event itself carries no atomics and can
// be copied freely once a slot's commit flag has been observed set.
type Event struct {
	Ts     uint64 // microseconds, monotonic
	Dur    uint64 // microseconds, Complete only
	Seq    uint64 // per-goroutine sequence number
	PID    uint32
	TID    int64 // goroutine id standing in for the spec's thread id
	Phase  Phase
	Name   [maxNameLen]byte
	NameL  uint8
	Cat    [maxCatLen]byte
	CatL   uint8
	Color  [maxColorLen]byte
	ColorL uint8
	FlowID uint64
	ArgC   uint8
	Args   [hardMaxArgs]Arg
}

func (e *Event) setName(s string) { e.NameL = boundedCopy(e.Name[:], s) }
func (e *Event) setCat(s string)  { e.CatL = boundedCopy(e.Cat[:], s) }
func (e *Event) setColor(s string) { e.ColorL = boundedCopy(e.Color[:], s) }

func (e *Event) nameString() string  { return string(e.Name[:e.NameL]) }
func (e *Event) catString() string   { return string(e.Cat[:e.CatL]) }
func (e *Event) colorString() string { return string(e.Color[:e.ColorL]) }

// reset clears the dynamic fields of a slot before it is reused, per
// spec §4.2 ("zeroes dynamic fields (argc, dur, flow_id, name[0], cat[0],
// cname[0])"). Ts/Seq/PID/TID/Phase are always overwritten by the filler
// before commit, so they are not reset here.
func (e *Event) reset() {
	e.Dur = 0
	e.FlowID = 0
	e.ArgC = 0
	e.NameL = 0
	e.CatL = 0
	e.ColorL = 0
}

// CleanEvent is a plain, non-atomic copy of an Event produced by the
// Collector for sorting and serialization (spec GLOSSARY "CleanEvent").
type CleanEvent struct {
	Ts, Dur, Seq  uint64
	PID           uint32
	TID           int64
	Phase         Phase
	Name, Cat     string
	Color         string
	FlowID        uint64
	Args          []CleanArg
}

// CleanArg is the plain-data counterpart of Arg.
type CleanArg struct {
	Key    string
	Kind   ArgKind
	Num    float64
	Str    string
}

func cleanEventFrom(e *Event) CleanEvent {
	ce := CleanEvent{
		Ts:     e.Ts,
		Dur:    e.Dur,
		Seq:    e.Seq,
		PID:    e.PID,
		TID:    e.TID,
		Phase:  e.Phase,
		Name:   e.nameString(),
		Cat:    e.catString(),
		Color:  e.colorString(),
		FlowID: e.FlowID,
	}
	if e.ArgC > 0 {
		ce.Args = make([]CleanArg, e.ArgC)
		for i := 0; i < int(e.ArgC); i++ {
			a := &e.Args[i]
			ce.Args[i] = CleanArg{Key: a.keyString(), Kind: a.Kind, Num: a.Num, Str: a.strString()}
		}
	}
	return ce
}
