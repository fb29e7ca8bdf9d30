package router

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// PipelineMode selects whether switch traversal happens inline with
// switch allocation (one-cycle) or is scheduled a cycle later (staged).
// The core targets OneCycle; Staged exists to support the multi-cycle
// pipeline without disturbing credit timing (see DESIGN.md).
type PipelineMode int

const (
	OneCycle PipelineMode = iota
	Staged
)

// Event tie-break priorities, lowest first, used when multiple wakeups
// land on the same cycle: credits return before data flits are consumed,
// which are consumed before switch allocation runs on them.
const (
	PriorityCredit   = 0
	PriorityInput    = 1
	PrioritySwAlloc  = 2
	PrioritySwitchTraversal = 3
)

type crossbarGrant struct {
	outport int
	flit    *Flit
}

// RouterStats accumulates the activity counters the power/area estimator
// consumes post-run.
type RouterStats struct {
	BufferReads        int64
	BufferWrites       int64
	SwInportArbs       int64
	SwOutportArbs      int64
	CrossbarTraversals int64
}

// Router composes one router's InputUnits, OutputUnits, RoutingUnit,
// SwitchAllocator, and crossbar. It owns all of them exclusively; the
// NetworkLinks/CreditLinks connecting it to neighbors are owned and
// wired externally (by the mesh topology) and referenced here only by
// pointer, not owned.
type Router struct {
	id       int
	numRows  int
	numCols  int
	numVnets int
	vcPerVnet int

	pipelineMode PipelineMode
	scheduler    *simclock.Scheduler

	routingUnit     *RoutingUnit
	switchAllocator *SwitchAllocator
	inputUnits      []*InputUnit
	outputUnits     []*OutputUnit

	dirToInport  map[netaddr.PortDirection]int
	dirToOutport map[netaddr.PortDirection]int

	crossbarWinners []crossbarGrant

	buffersPerCtrlVC int
	buffersPerDataVC int

	stats RouterStats
	err   *FatalError
}

// NewRouter returns a Router with its RoutingUnit and SwitchAllocator
// constructed; ports are added afterward via AddInPort/AddOutPort.
func NewRouter(id, numRows, numCols, numVnets, vcPerVnet, buffersPerCtrlVC, buffersPerDataVC int, routingAlgorithm string, pipelineMode PipelineMode, scheduler *simclock.Scheduler, rng *rand.Rand, orderedVnets map[int]bool) *Router {
	r := &Router{
		id:               id,
		numRows:          numRows,
		numCols:          numCols,
		numVnets:         numVnets,
		vcPerVnet:        vcPerVnet,
		pipelineMode:     pipelineMode,
		scheduler:        scheduler,
		buffersPerCtrlVC: buffersPerCtrlVC,
		buffersPerDataVC: buffersPerDataVC,
		dirToInport:      make(map[netaddr.PortDirection]int),
		dirToOutport:     make(map[netaddr.PortDirection]int),
	}
	r.routingUnit = NewRoutingUnit(id, numRows, numCols, routingAlgorithm, rng)
	r.switchAllocator = NewSwitchAllocator(r, 0, 0, numVnets, vcPerVnet, orderedVnets)
	return r
}

// ID returns the router's topological id (y*numCols + x).
func (r *Router) ID() int { return r.id }

// Err returns the first fatal error recorded by any subsystem, or nil.
func (r *Router) Err() *FatalError { return r.err }

// Stats returns a snapshot of the router's activity counters.
func (r *Router) Stats() RouterStats { return r.stats }

func (r *Router) numVcs() int { return r.numVnets * r.vcPerVnet }

// AddInPort registers an inbound NetworkLink/CreditLink pair for
// direction, constructing the InputUnit that owns it.
func (r *Router) AddInPort(direction netaddr.PortDirection, inLink *NetworkLink, creditLink *CreditLink) *InputUnit {
	idx := len(r.inputUnits)
	iu := NewInputUnit(r.id, idx, direction, r.numVcs(), r.vcPerVnet, r.routingUnit, r)
	iu.SetInLink(inLink)
	iu.SetCreditLink(creditLink)
	creditLink.SetSourceQueue(iu.CreditOutBuffer())

	r.inputUnits = append(r.inputUnits, iu)
	r.dirToInport[direction] = idx
	r.switchAllocator.numInports = len(r.inputUnits)
	r.switchAllocator.roundRobinInVC = append(r.switchAllocator.roundRobinInVC, 0)
	for o := range r.switchAllocator.portRequests {
		r.switchAllocator.portRequests[o] = append(r.switchAllocator.portRequests[o], false)
		r.switchAllocator.vcWinners[o] = append(r.switchAllocator.vcWinners[o], -1)
	}
	return iu
}

// AddOutPort registers an outbound NetworkLink/CreditLink pair for
// direction, constructing the OutputUnit that owns it and populating the
// routing/weight tables RoutingUnit consults for local ejection.
func (r *Router) AddOutPort(direction netaddr.PortDirection, outLink *NetworkLink, creditLink *CreditLink, routingEntry netaddr.NetDest, weight int) *OutputUnit {
	idx := len(r.outputUnits)

	depths := make([]int, r.numVcs())
	for vc := range depths {
		vnet := vc / r.vcPerVnet
		if vnet == r.numVnets-1 {
			depths[vc] = r.buffersPerDataVC
		} else {
			depths[vc] = r.buffersPerCtrlVC
		}
	}

	ou := NewOutputUnit(r.id, idx, direction, r.vcPerVnet, depths)
	ou.SetOutLink(outLink)
	ou.SetCreditLink(creditLink)
	outLink.SetSourceQueue(ou.OutBuffer())

	r.outputUnits = append(r.outputUnits, ou)
	r.dirToOutport[direction] = idx
	r.routingUnit.RegisterOutport(idx, direction, routingEntry, weight)

	r.switchAllocator.numOutports = len(r.outputUnits)
	r.switchAllocator.roundRobinInport = append(r.switchAllocator.roundRobinInport, 0)
	r.switchAllocator.portRequests = append(r.switchAllocator.portRequests, make([]bool, len(r.inputUnits)))
	winners := make([]int, len(r.inputUnits))
	for i := range winners {
		winners[i] = -1
	}
	r.switchAllocator.vcWinners = append(r.switchAllocator.vcWinners, winners)
	return ou
}

// InputUnit returns the input unit at the given inport index.
func (r *Router) InputUnit(idx int) *InputUnit { return r.inputUnits[idx] }

// OutputUnit returns the output unit at the given outport index.
func (r *Router) OutputUnit(idx int) *OutputUnit { return r.outputUnits[idx] }

// NumInports returns the number of inports registered so far.
func (r *Router) NumInports() int { return len(r.inputUnits) }

// NumOutports returns the number of outports registered so far.
func (r *Router) NumOutports() int { return len(r.outputUnits) }

// InportForDirection returns the inport index registered for direction.
func (r *Router) InportForDirection(d netaddr.PortDirection) (int, bool) {
	idx, ok := r.dirToInport[d]
	return idx, ok
}

// OutportForDirection returns the outport index registered for direction.
func (r *Router) OutportForDirection(d netaddr.PortDirection) (int, bool) {
	idx, ok := r.dirToOutport[d]
	return idx, ok
}

// requestSwAlloc schedules this router's per-cycle wakeup (switch
// allocation, and in the one-cycle pipeline, switch traversal) at cycle.
func (r *Router) requestSwAlloc(cycle simclock.Cycles) {
	r.scheduler.At(cycle, PrioritySwAlloc, r)
}

// grantSwitch registers a Stage 2 winner for the crossbar; drained by
// switchTraversal in the same cycle (one-cycle pipeline) or next cycle
// (staged pipeline).
func (r *Router) grantSwitch(outport int, f *Flit) {
	r.crossbarWinners = append(r.crossbarWinners, crossbarGrant{outport: outport, flit: f})
}

// switchTraversal drains crossbar winners into their output units'
// FlitBuffers at the cycle it is called (now, in the one-cycle pipeline;
// now+1 via the deferred stConsumer, in the staged pipeline), stamping
// each flit's arrival cycle by the outbound link's latency and
// scheduling the downstream consumer's wakeup for that cycle.
func (r *Router) switchTraversal(now simclock.Cycles) {
	if len(r.crossbarWinners) == 0 {
		return
	}

	for _, w := range r.crossbarWinners {
		ou := r.outputUnits[w.outport]
		f := w.flit
		arrival := now + ou.outLink.Latency()
		f.AdvanceStage(StageLT, arrival)
		ou.OutBuffer().Insert(f)
		r.stats.CrossbarTraversals++

		if ou.outLink.Consumer() != nil {
			r.scheduler.At(arrival, PriorityInput, ou.outLink.Consumer())
		}
	}
	r.crossbarWinners = r.crossbarWinners[:0]
}

// fail records the first fatal error raised by any subsystem; subsequent
// fatals are dropped (the first diagnostic is the one that matters).
func (r *Router) fail(e *FatalError) {
	if r.err == nil {
		r.err = e
		logrus.Errorf("router %d: fatal: %v", r.id, e.Err)
	}
}

func (r *Router) recordBufferRead()   { r.stats.BufferReads++ }
func (r *Router) recordBufferWrite()  { r.stats.BufferWrites++ }
func (r *Router) recordSwInportArb()  { r.stats.SwInportArbs++ }
func (r *Router) recordSwOutportArb() { r.stats.SwOutportArbs++ }

// Wakeup drives one cycle of this router's switch allocation and (in the
// one-cycle pipeline) switch traversal.
func (r *Router) Wakeup(now simclock.Cycles) {
	r.switchAllocator.Wakeup(now)
	if r.pipelineMode == OneCycle {
		r.switchTraversal(now)
	} else {
		r.scheduler.At(now+1, PrioritySwitchTraversal, stConsumer{r})
	}
}

// stConsumer schedules a deferred switch traversal for the staged
// pipeline variant.
type stConsumer struct{ r *Router }

func (c stConsumer) Wakeup(now simclock.Cycles) { c.r.switchTraversal(now) }
