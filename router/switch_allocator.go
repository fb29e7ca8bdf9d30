package router

import (
	"fmt"

	"github.com/nocsim/nocsim/simclock"
)

// SwitchAllocator is the two-stage separable arbiter: Stage 1 picks one
// candidate VC per inport, Stage 2 picks one winning inport per outport.
// Round-robin pointers advance every cycle regardless of outcome, which
// is the fairness guarantee — no pointer ever stalls waiting for a grant.
type SwitchAllocator struct {
	router *Router

	numInports, numOutports int
	numVnets, vcPerVnet     int
	orderedVnets            map[int]bool

	roundRobinInport []int // per outport
	roundRobinInVC   []int // per inport

	portRequests [][]bool // [outport][inport]
	vcWinners    [][]int  // [outport][inport], winning invc or -1
}

// NewSwitchAllocator returns a SwitchAllocator sized for the router's
// inport/outport/vnet configuration.
func NewSwitchAllocator(r *Router, numInports, numOutports, numVnets, vcPerVnet int, orderedVnets map[int]bool) *SwitchAllocator {
	sa := &SwitchAllocator{
		router:           r,
		numInports:       numInports,
		numOutports:      numOutports,
		numVnets:         numVnets,
		vcPerVnet:        vcPerVnet,
		orderedVnets:     orderedVnets,
		roundRobinInport: make([]int, numOutports),
		roundRobinInVC:   make([]int, numInports),
		portRequests:     make([][]bool, numOutports),
		vcWinners:        make([][]int, numOutports),
	}
	for o := 0; o < numOutports; o++ {
		sa.portRequests[o] = make([]bool, numInports)
		sa.vcWinners[o] = make([]int, numInports)
		for i := range sa.vcWinners[o] {
			sa.vcWinners[o][i] = -1
		}
	}
	return sa
}

func (sa *SwitchAllocator) numVcs() int { return sa.numVnets * sa.vcPerVnet }

// Wakeup runs both arbitration stages for the current cycle, then
// schedules itself again if any inport still needs SA next cycle.
func (sa *SwitchAllocator) Wakeup(now simclock.Cycles) {
	sa.arbitrateInports(now)
	sa.arbitrateOutports(now)
	sa.checkForWakeup(now)
}

// arbitrateInports implements Stage 1: for each inport, scan VCs
// starting from its round-robin pointer and accept the first whose top
// flit needs SA this cycle and for which send_allowed holds.
func (sa *SwitchAllocator) arbitrateInports(now simclock.Cycles) {
	numVcs := sa.numVcs()
	for inport := 0; inport < sa.numInports; inport++ {
		iu := sa.router.inputUnits[inport]
		start := sa.roundRobinInVC[inport]

		for k := 0; k < numVcs; k++ {
			vc := (start + k) % numVcs
			if !iu.NeedStage(vc, StageSA, now) {
				continue
			}
			vcObj := iu.VC(vc)
			outport := vcObj.Outport()
			outvc := vcObj.OutVC()
			vnet := vc / sa.vcPerVnet

			if sa.sendAllowed(inport, vc, outport, outvc, vnet) {
				sa.vcWinners[outport][inport] = vc
				sa.portRequests[outport][inport] = true
				sa.router.recordSwInportArb()
				break
			}
		}
		sa.roundRobinInVC[inport] = (start + 1) % numVcs
	}
}

// arbitrateOutports implements Stage 2: for each outport, scan inports
// that raised a request starting from its round-robin pointer and grant
// the first one found.
func (sa *SwitchAllocator) arbitrateOutports(now simclock.Cycles) {
	for outport := 0; outport < sa.numOutports; outport++ {
		start := sa.roundRobinInport[outport]

		for k := 0; k < sa.numInports; k++ {
			inport := (start + k) % sa.numInports
			if !sa.portRequests[outport][inport] {
				continue
			}
			sa.grant(outport, inport, now)
			break
		}
		sa.roundRobinInport[outport] = (start + 1) % sa.numInports

		for i := range sa.portRequests[outport] {
			sa.portRequests[outport][i] = false
			sa.vcWinners[outport][i] = -1
		}
	}
}

// sendAllowed is Stage 1's admission test: free-VC or credit
// availability, plus strict per-outport FIFO order within an ordered
// vnet.
func (sa *SwitchAllocator) sendAllowed(inport, invc, outport, outvc, vnet int) bool {
	iu := sa.router.inputUnits[inport]
	ou := sa.router.outputUnits[outport]
	vc := iu.VC(invc)
	top := vc.PeekFlit()
	if top == nil {
		return false
	}

	if outvc == -1 {
		if !ou.HasFreeVC(vnet, iu.direction, ou.direction, invc, top.Route, sa.router.numCols) {
			return false
		}
	} else {
		if !ou.HasCredit(outvc) {
			return false
		}
	}

	if sa.orderedVnets[vnet] {
		vcBase := vnet * sa.vcPerVnet
		for other := vcBase; other < vcBase+sa.vcPerVnet; other++ {
			if other == invc {
				continue
			}
			otherVC := iu.VC(other)
			if otherVC.IsEmpty() || otherVC.Outport() != outport {
				continue
			}
			if otherVC.EnqueueTime() < vc.EnqueueTime() {
				return false
			}
		}
	}
	return true
}

// grant carries out the actions of a Stage 2 win: VC allocation if
// needed, popping and advancing the flit to ST, decrementing the chosen
// outvc's credit, handing the flit to the crossbar, and returning a
// credit (free-signal on packet completion).
func (sa *SwitchAllocator) grant(outport, inport int, now simclock.Cycles) {
	iu := sa.router.inputUnits[inport]
	ou := sa.router.outputUnits[outport]
	invc := sa.vcWinners[outport][inport]
	vc := iu.VC(invc)
	vnet := invc / sa.vcPerVnet

	outvc := vc.OutVC()
	if outvc == -1 {
		top := vc.PeekFlit()
		outvc = ou.SelectFreeVC(vnet, iu.direction, ou.direction, invc, top.Route, sa.router.numCols, now)
		if outvc == -1 {
			sa.router.fail(newFatal(sa.router.id, outport, int64(now),
				fmt.Errorf("switch allocation granted with no free outvc after Stage 1 approval")))
			return
		}
		vc.GrantOutVC(outvc)
	}

	f := iu.GetTopFlit(invc)
	f.AdvanceStage(StageST, now)
	f.VC = outvc
	f.Outport = outport
	ou.DecrementCredit(outvc)

	sa.router.grantSwitch(outport, f)
	sa.router.recordSwOutportArb()

	if f.IsTail() {
		if !vc.IsEmpty() {
			sa.router.fail(newFatal(sa.router.id, inport, int64(now),
				fmt.Errorf("TAIL departed but source vc %d buffer is not empty", invc)))
			return
		}
		vc.Reset(now)
		iu.IncrementCredit(invc, true, now)
	} else {
		iu.IncrementCredit(invc, false, now)
	}
}

// checkForWakeup re-requests SA at now+1 if any inport still has a VC
// whose top flit will need the SA stage then.
func (sa *SwitchAllocator) checkForWakeup(now simclock.Cycles) {
	numVcs := sa.numVcs()
	for inport := 0; inport < sa.numInports; inport++ {
		iu := sa.router.inputUnits[inport]
		for vc := 0; vc < numVcs; vc++ {
			if iu.NeedStage(vc, StageSA, now+1) {
				sa.router.requestSwAlloc(now + 1)
				return
			}
		}
	}
}
