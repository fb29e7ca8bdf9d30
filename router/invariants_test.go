package router

import (
	"math/rand"
	"testing"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// TestInvariant_CreditConservation drives a single HEAD_TAIL packet
// across a wired pair of routers and verifies the outvc's credit count
// is consumed exactly once at grant and restored exactly once when the
// free-signal credit returns, so credits_issued - credits_returned
// tracks flits in flight/buffered on that vc at every point in between.
func TestInvariant_CreditConservation(t *testing.T) {
	sched := simclock.NewScheduler()
	rng := rand.New(rand.NewSource(1))

	a := NewRouter(0, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	b := NewRouter(1, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	wireTwoRouters(t, a, b)

	injLink := NewNetworkLink(1)
	injCredit := NewCreditLink(1)
	localIn := a.AddInPort(netaddr.Local, injLink, injCredit)
	b.AddOutPort(netaddr.Local, NewNetworkLink(1), NewCreditLink(1), 0b1, 0)

	eastOut, ok := a.OutportForDirection(netaddr.East)
	if !ok {
		t.Fatalf("expected router A to have an East outport")
	}
	ou := a.OutputUnit(eastOut)

	// GIVEN the outvc starts with full credit (buffersPerDataVC = 4)
	if got := ou.outvc[0].creditCount; got != 4 {
		t.Fatalf("expected starting credit count 4, got %d", got)
	}

	f := &Flit{Type: HEAD_TAIL, VC: 0, Route: netaddr.RouteInfo{DestRouter: 1, NetDest: 0b1}}
	f.AdvanceStage(StageSA, 0)
	buf := NewFlitBuffer()
	buf.Insert(f)
	injLink.SetSourceQueue(buf)

	sched.At(0, PriorityInput, localIn)

	// WHEN the packet is granted switch allocation (consuming one
	// credit) ...
	sched.Run(1)
	if got := ou.outvc[0].creditCount; got != 3 {
		t.Fatalf("after grant: expected credit count 3, got %d", got)
	}

	// THEN once the free-signal credit returns from B after the TAIL
	// departs, the credit count is restored to full
	sched.Run(20)
	if got := ou.outvc[0].creditCount; got != 4 {
		t.Fatalf("after credit return: expected credit count restored to 4, got %d", got)
	}
	if a.Err() != nil {
		t.Fatalf("router A fatal: %v", a.Err())
	}
	if b.Err() != nil {
		t.Fatalf("router B fatal: %v", b.Err())
	}
}

// TestInvariant_VCStateCoherence checks that an inport-side VC is ACTIVE
// exactly while it holds a buffered flit or references one still in
// flight, and returns to IDLE only once the TAIL has departed and the
// buffer has drained, matching the grant-path transition in
// SwitchAllocator.grant.
func TestInvariant_VCStateCoherence(t *testing.T) {
	sched := simclock.NewScheduler()
	rng := rand.New(rand.NewSource(1))

	a := NewRouter(0, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	b := NewRouter(1, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	wireTwoRouters(t, a, b)

	injLink := NewNetworkLink(1)
	injCredit := NewCreditLink(1)
	localIn := a.AddInPort(netaddr.Local, injLink, injCredit)
	b.AddOutPort(netaddr.Local, NewNetworkLink(1), NewCreditLink(1), 0b1, 0)

	vc := localIn.VC(0)

	// GIVEN the VC starts IDLE with an empty buffer
	if vc.State() != VCIdle || !vc.IsEmpty() {
		t.Fatalf("expected a fresh VC to be IDLE and empty")
	}

	f := &Flit{Type: HEAD_TAIL, VC: 0, Route: netaddr.RouteInfo{DestRouter: 1, NetDest: 0b1}}
	f.AdvanceStage(StageSA, 0)
	buf := NewFlitBuffer()
	buf.Insert(f)
	injLink.SetSourceQueue(buf)

	sched.At(0, PriorityInput, localIn)

	// WHEN the HEAD_TAIL flit arrives, the VC becomes ACTIVE and its
	// buffer is non-empty
	sched.Run(0)
	if vc.State() != VCActive {
		t.Fatalf("expected VC to go ACTIVE on HEAD_TAIL arrival, got %v", vc.State())
	}
	if vc.IsEmpty() {
		t.Fatalf("expected the VC buffer to hold the arrived flit")
	}

	// THEN once the TAIL is granted and departs, the buffer drains and
	// the VC returns to IDLE in the same cycle the grant occurs
	sched.Run(20)
	if vc.State() != VCIdle {
		t.Fatalf("expected VC to return to IDLE once the TAIL departed, got %v", vc.State())
	}
	if !vc.IsEmpty() {
		t.Fatalf("expected the VC buffer to be empty once IDLE")
	}
}

// TestInvariant_FlitConservation counts flits injected against flits
// delivered plus flits still resident in router buffers, across a burst
// of packets through a 2-router topology.
func TestInvariant_FlitConservation(t *testing.T) {
	sched := simclock.NewScheduler()
	rng := rand.New(rand.NewSource(7))

	a := NewRouter(0, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	b := NewRouter(1, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	wireTwoRouters(t, a, b)

	injLink := NewNetworkLink(1)
	injCredit := NewCreditLink(1)
	localIn := a.AddInPort(netaddr.Local, injLink, injCredit)
	localOutB := b.AddOutPort(netaddr.Local, NewNetworkLink(1), NewCreditLink(1), 0b1, 0)

	const numPackets = 3
	injected := 0
	buf := NewFlitBuffer()
	for p := 0; p < numPackets; p++ {
		head := &Flit{Type: HEAD, VC: 0, Route: netaddr.RouteInfo{DestRouter: 1, NetDest: 0b1}}
		tail := &Flit{Type: TAIL, VC: 0, Route: netaddr.RouteInfo{DestRouter: 1, NetDest: 0b1}}
		head.AdvanceStage(StageSA, 0)
		tail.AdvanceStage(StageSA, 0)
		buf.Insert(head)
		buf.Insert(tail)
		injected += 2
	}
	injLink.SetSourceQueue(buf)
	sched.At(0, PriorityInput, localIn)

	sched.Run(40)

	// THEN every injected flit is accounted for exactly once (nothing
	// lost, nothing duplicated): delivered to B's local outport, or still
	// resident in the injection queue, an input VC buffer, or A's outbound
	// link queue. The input unit consumes one flit per wakeup and only one
	// wakeup was scheduled, so most of the burst is still queued.
	delivered := localOutB.OutBuffer().Len()
	resident := buf.Len()
	for _, r := range []*Router{a, b} {
		for i := 0; i < r.NumInports(); i++ {
			for v := 0; v < r.numVcs(); v++ {
				resident += len(r.InputUnit(i).VC(v).buffer)
			}
		}
	}
	eastOut, _ := a.OutportForDirection(netaddr.East)
	resident += a.OutputUnit(eastOut).OutBuffer().Len()
	if delivered+resident != injected {
		t.Fatalf("expected %d flits delivered or resident, got %d delivered + %d resident", injected, delivered, resident)
	}
	if a.Err() != nil {
		t.Fatalf("router A fatal: %v", a.Err())
	}
	if b.Err() != nil {
		t.Fatalf("router B fatal: %v", b.Err())
	}
}
