package router

import (
	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// FlitType identifies a flit's position within its packet.
type FlitType int

const (
	HEAD FlitType = iota
	BODY
	TAIL
	HEAD_TAIL
)

func (t FlitType) String() string {
	switch t {
	case HEAD:
		return "HEAD"
	case BODY:
		return "BODY"
	case TAIL:
		return "TAIL"
	case HEAD_TAIL:
		return "HEAD_TAIL"
	default:
		return "UNKNOWN"
	}
}

// Stage identifies a flit's current pipeline stage.
type Stage int

const (
	StageI  Stage = iota // Idle / not yet scheduled
	StageVA              // VC allocation
	StageSA              // Switch allocation
	StageST              // Switch traversal
	StageLT              // Link traversal
)

// Flit is the minimal unit of flow control: a head, body, tail, or
// combined head-tail slice of a packet.
type Flit struct {
	Type  FlitType
	VC    int
	Route netaddr.RouteInfo

	Outport int // -1 until routed

	Stage      Stage
	StageCycle simclock.Cycles // cycle at which Stage became/becomes effective

	EnqueueTime simclock.Cycles

	// Credit-flit fields; unused on data flits.
	IsFreeSignal bool

	// Payload is opaque to the router core; NetworkInterface attaches
	// application data here without the core needing to understand it.
	Payload any

	seq uint64 // insertion sequence, for deterministic heap tie-break
}

// AdvanceStage moves a flit to a new stage effective at the given cycle.
func (f *Flit) AdvanceStage(stage Stage, cycle simclock.Cycles) {
	f.Stage = stage
	f.StageCycle = cycle
}

// IsTail reports whether this flit is the last of its packet.
func (f *Flit) IsTail() bool {
	return f.Type == TAIL || f.Type == HEAD_TAIL
}

// IsHead reports whether this flit carries routing information.
func (f *Flit) IsHead() bool {
	return f.Type == HEAD || f.Type == HEAD_TAIL
}
