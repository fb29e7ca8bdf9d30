package router

import "github.com/nocsim/nocsim/simclock"

// OutVcState is the output-side mirror of a downstream input VC: it
// tracks how many downstream buffer slots are free (the credit count)
// and whether the downstream VC is currently bound to this one.
type OutVcState struct {
	state VCState // ACTIVE iff bound to a downstream input VC
	stateSetCycle simclock.Cycles

	creditCount int // <= buffersPerVC of the downstream input, never negative
	buffersPerVC int

	inPort int
	inVC   int
}

// NewOutVcState returns an IDLE OutVcState whose credit count starts full
// at the downstream VC's buffer depth (every buffer slot is free until a
// packet occupies it).
func NewOutVcState(buffersPerVC int) *OutVcState {
	return &OutVcState{creditCount: buffersPerVC, buffersPerVC: buffersPerVC, inPort: -1, inVC: -1}
}

// SetState transitions the OutVcState, effective at cycle. ACTIVE means
// a downstream input VC is currently bound to this output VC.
func (o *OutVcState) SetState(state VCState, cycle simclock.Cycles) {
	o.state = state
	o.stateSetCycle = cycle
}

// State returns the current binding state.
func (o *OutVcState) State() VCState { return o.state }

// IsIdle reports whether this output VC is free to be bound to a new
// packet.
func (o *OutVcState) IsIdle() bool { return o.state == VCIdle }

// HasCredit reports whether at least one downstream buffer slot is free.
func (o *OutVcState) HasCredit() bool { return o.creditCount > 0 }

// DecrementCredit consumes one downstream buffer slot; called exactly
// once per switch-allocation grant using this output VC.
func (o *OutVcState) DecrementCredit() {
	if o.creditCount <= 0 {
		panic("OutVcState: credit underflow")
	}
	o.creditCount--
}

// IncrementCredit returns one downstream buffer slot; called when a
// credit flit arrives on the reverse CreditLink.
func (o *OutVcState) IncrementCredit() {
	if o.creditCount >= o.buffersPerVC {
		panic("OutVcState: credit overflow past buffer depth")
	}
	o.creditCount++
}
