package router

import (
	"fmt"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// InputUnit owns one inport's VC array: buffering, HEAD/HEAD_TAIL route
// computation, and the outgoing half of the reverse CreditLink.
type InputUnit struct {
	routerID  int
	id        int
	direction netaddr.PortDirection

	vcPerVnet int
	vcs       []*VirtualChannel

	inLink          *NetworkLink
	creditLink      *CreditLink
	creditOutBuffer *FlitBuffer

	routingUnit *RoutingUnit
	router      *Router
}

// NewInputUnit returns an InputUnit with numVcs freshly-IDLE virtual
// channels.
func NewInputUnit(routerID, id int, direction netaddr.PortDirection, numVcs, vcPerVnet int, ru *RoutingUnit, r *Router) *InputUnit {
	iu := &InputUnit{
		routerID:        routerID,
		id:              id,
		direction:       direction,
		vcPerVnet:       vcPerVnet,
		vcs:             make([]*VirtualChannel, numVcs),
		creditOutBuffer: NewFlitBuffer(),
		routingUnit:     ru,
		router:          r,
	}
	for i := range iu.vcs {
		iu.vcs[i] = NewVirtualChannel()
	}
	return iu
}

// SetInLink attaches the inbound NetworkLink this input unit consumes.
func (iu *InputUnit) SetInLink(link *NetworkLink) { iu.inLink = link }

// SetCreditLink attaches the outbound (reverse-direction) CreditLink this
// input unit feeds.
func (iu *InputUnit) SetCreditLink(link *CreditLink) { iu.creditLink = link }

// CreditOutBuffer is the source queue the reverse CreditLink drains.
func (iu *InputUnit) CreditOutBuffer() *FlitBuffer { return iu.creditOutBuffer }

// VC returns the virtual channel at index vc.
func (iu *InputUnit) VC(vc int) *VirtualChannel { return iu.vcs[vc] }

func (iu *InputUnit) escapeVC(vc int) int {
	vnet := vc / iu.vcPerVnet
	return vnet*iu.vcPerVnet + iu.vcPerVnet - 1
}

// Wakeup implements the InputUnit contract: consume one flit from the
// inbound link, route HEAD/HEAD_TAIL flits, buffer the flit, and request
// switch allocation for the next cycle.
func (iu *InputUnit) Wakeup(now simclock.Cycles) {
	if iu.inLink == nil || !iu.inLink.IsReady(now) {
		return
	}
	f := iu.inLink.ConsumeLink()
	vc := iu.vcs[f.VC]

	if f.IsHead() {
		if vc.State() != VCIdle {
			iu.router.fail(newFatal(iu.routerID, iu.id, int64(now),
				fmt.Errorf("HEAD flit arrived on vc %d in state %v, expected IDLE", f.VC, vc.State())))
			return
		}
		vc.SetState(VCActive, now)

		outport, err := iu.routingUnit.OutportCompute(f.Route, iu.id, iu.direction, f.VC, iu.escapeVC(f.VC))
		if err != nil {
			iu.router.fail(newFatal(iu.routerID, iu.id, int64(now), err))
			return
		}
		vc.SetOutport(outport)
		f.Outport = outport
	} else {
		if vc.State() != VCActive {
			iu.router.fail(newFatal(iu.routerID, iu.id, int64(now),
				fmt.Errorf("BODY/TAIL flit arrived on vc %d in state %v, expected ACTIVE", f.VC, vc.State())))
			return
		}
		f.Outport = vc.Outport()
	}

	vc.InsertFlit(f, now)
	iu.router.recordBufferWrite()
	iu.router.recordBufferRead()

	f.AdvanceStage(StageSA, now+1)
	iu.router.requestSwAlloc(now + 1)
}

// NeedStage reports whether the VC's front-of-FIFO flit is waiting on
// stage at or before cycle.
func (iu *InputUnit) NeedStage(vc int, stage Stage, cycle simclock.Cycles) bool {
	top := iu.vcs[vc].PeekFlit()
	return top != nil && top.Stage == stage && top.StageCycle <= cycle
}

// GetTopFlit pops and returns the front-of-FIFO flit on vc.
func (iu *InputUnit) GetTopFlit(vc int) *Flit {
	return iu.vcs[vc].PopFlit()
}

// IncrementCredit enqueues a credit flit onto the reverse CreditLink,
// arriving at cycle plus the link's latency (cycle+1 on a 1-cycle link),
// tagged with the free-signal when the VC has just
// drained back to IDLE, and wakes the credit link's consumer for that
// arrival cycle.
func (iu *InputUnit) IncrementCredit(vc int, isFreeSignal bool, cycle simclock.Cycles) {
	credit := &Flit{VC: vc, IsFreeSignal: isFreeSignal}
	arrival := cycle + iu.creditLink.Latency()
	credit.AdvanceStage(StageLT, arrival)
	iu.creditOutBuffer.Insert(credit)

	if iu.creditLink.Consumer() != nil {
		iu.router.scheduler.At(arrival, PriorityCredit, iu.creditLink.Consumer())
	}
}
