package router

import "github.com/nocsim/nocsim/simclock"

// VCState is the lifecycle state of an inport-side virtual channel.
type VCState int

const (
	VCIdle VCState = iota
	// VCAllocBound marks a VC reserved during a separate VC-allocation
	// stage, before it is bound ACTIVE at switch allocation. No code path
	// sets it: both pipeline modes transition IDLE directly to ACTIVE.
	VCAllocBound
	VCActive
)

// VirtualChannel is the inport-side per-VC state machine: IDLE until a
// HEAD/HEAD_TAIL flit arrives and latches an outport, ACTIVE until the
// last flit of the packet has departed and its free-signal credit has
// gone out.
type VirtualChannel struct {
	state         VCState
	prevState     VCState
	stateSetCycle simclock.Cycles

	outport int
	outvc   int

	buffer      []*Flit // FIFO
	enqueueTime simclock.Cycles
}

// NewVirtualChannel returns an IDLE virtual channel.
func NewVirtualChannel() *VirtualChannel {
	return &VirtualChannel{outport: -1, outvc: -1}
}

// SetState records a state transition effective at cycle. Internal
// grant-path logic within the same cycle should read State(), not
// GetState(now), to see this value immediately.
func (vc *VirtualChannel) SetState(state VCState, cycle simclock.Cycles) {
	vc.prevState = vc.state
	vc.state = state
	vc.stateSetCycle = cycle
}

// State returns the VC's current state as set by the most recent
// SetState call, regardless of observation-delay rules. Use this from
// code executing within the same cycle's pipeline as the transition.
func (vc *VirtualChannel) State() VCState { return vc.state }

// GetState returns the state as externally observable at cycle now: a
// transition recorded at cycle T is visible only from cycle T+1 onward.
func (vc *VirtualChannel) GetState(now simclock.Cycles) VCState {
	if now >= vc.stateSetCycle+1 {
		return vc.state
	}
	return vc.prevState
}

// Outport returns the latched outport, or -1 if none has been assigned.
func (vc *VirtualChannel) Outport() int { return vc.outport }

// SetOutport latches the outport a HEAD/HEAD_TAIL flit routed to; all
// subsequent flits of the packet reuse it.
func (vc *VirtualChannel) SetOutport(outport int) { vc.outport = outport }

// OutVC returns the allocated output-side VC, or -1 if not yet assigned.
func (vc *VirtualChannel) OutVC() int { return vc.outvc }

// GrantOutVC records the output-side VC chosen for this packet by the
// switch allocator's VC-allocation step.
func (vc *VirtualChannel) GrantOutVC(outvc int) { vc.outvc = outvc }

// EnqueueTime returns the cycle the VC's current packet first arrived,
// used for per-outport FIFO ordering in ordered vnets.
func (vc *VirtualChannel) EnqueueTime() simclock.Cycles { return vc.enqueueTime }

// InsertFlit buffers a flit arriving on this VC, recording the enqueue
// time on the first (HEAD/HEAD_TAIL) flit of a packet.
func (vc *VirtualChannel) InsertFlit(f *Flit, now simclock.Cycles) {
	if f.IsHead() {
		vc.enqueueTime = now
	}
	f.EnqueueTime = vc.enqueueTime
	vc.buffer = append(vc.buffer, f)
}

// PeekFlit returns the front-of-FIFO flit without removing it, or nil.
func (vc *VirtualChannel) PeekFlit() *Flit {
	if len(vc.buffer) == 0 {
		return nil
	}
	return vc.buffer[0]
}

// PopFlit removes and returns the front-of-FIFO flit, or nil if empty.
func (vc *VirtualChannel) PopFlit() *Flit {
	if len(vc.buffer) == 0 {
		return nil
	}
	f := vc.buffer[0]
	vc.buffer = vc.buffer[1:]
	return f
}

// IsEmpty reports whether the VC's buffer holds no flits.
func (vc *VirtualChannel) IsEmpty() bool { return len(vc.buffer) == 0 }

// Reset returns the VC to its freshly-constructed IDLE state, clearing
// latched routing, ready for reuse by a new packet.
func (vc *VirtualChannel) Reset(now simclock.Cycles) {
	vc.SetState(VCIdle, now)
	vc.outport = -1
	vc.outvc = -1
}
