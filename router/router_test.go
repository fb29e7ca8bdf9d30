package router

import (
	"math/rand"
	"testing"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// wireTwoRouters connects router a's East outport to router b's West
// inport (and the reverse credit link), the minimal topology needed to
// exercise a full flit departure/arrival/credit round trip.
func wireTwoRouters(t *testing.T, a, b *Router) {
	t.Helper()
	dataLink := NewNetworkLink(1)
	creditLink := NewCreditLink(1)

	outA := a.AddOutPort(netaddr.East, dataLink, creditLink, 0, 0)
	inB := b.AddInPort(netaddr.West, dataLink, creditLink)

	dataLink.SetLinkConsumer(inB)
	creditLink.SetLinkConsumer(outA)
}

func TestRouter_HeadTailPacketTraversesAndReturnsCredit(t *testing.T) {
	// GIVEN two routers, A with a local inport feeding a packet destined
	// for B, connected East(A)->West(B)
	sched := simclock.NewScheduler()
	rng := rand.New(rand.NewSource(1))

	a := NewRouter(0, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	b := NewRouter(1, 1, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rng, nil)
	wireTwoRouters(t, a, b)

	injLink := NewNetworkLink(1)
	injCredit := NewCreditLink(1)
	localIn := a.AddInPort(netaddr.Local, injLink, injCredit)

	ejLink := NewNetworkLink(1)
	ejCredit := NewCreditLink(1)
	localOutB := b.AddOutPort(netaddr.Local, ejLink, ejCredit, 0b1, 0)

	// WHEN a HEAD_TAIL flit destined for router 1 is injected on A's
	// local inport at cycle 0, as a NetworkInterface would
	f := &Flit{Type: HEAD_TAIL, VC: 0, Route: netaddr.RouteInfo{DestRouter: 1, NetDest: 0b1}}
	f.AdvanceStage(StageSA, 0)
	injectionBuffer := NewFlitBuffer()
	injectionBuffer.Insert(f)
	injLink.SetSourceQueue(injectionBuffer)

	sched.At(0, PriorityInput, localIn)
	sched.Run(20)

	// THEN the packet reaches B's local outport buffer, and no fatal
	// error was recorded on either router
	if a.Err() != nil {
		t.Fatalf("router A fatal: %v", a.Err())
	}
	if b.Err() != nil {
		t.Fatalf("router B fatal: %v", b.Err())
	}
	if localOutB.OutBuffer().IsEmpty() {
		t.Fatalf("expected the packet to reach router B's local outport")
	}
}

func TestRouter_AddPortsPopulateDirectionMaps(t *testing.T) {
	sched := simclock.NewScheduler()
	r := NewRouter(0, 2, 2, 1, 2, 4, 4, "XY", OneCycle, sched, rand.New(rand.NewSource(1)), nil)

	in := r.AddInPort(netaddr.North, NewNetworkLink(1), NewCreditLink(1))
	out := r.AddOutPort(netaddr.South, NewNetworkLink(1), NewCreditLink(1), 0b1, 0)

	idx, ok := r.InportForDirection(netaddr.North)
	if !ok || r.InputUnit(idx) != in {
		t.Fatalf("expected North inport to resolve back to the registered InputUnit")
	}
	oidx, ok := r.OutportForDirection(netaddr.South)
	if !ok || r.OutputUnit(oidx) != out {
		t.Fatalf("expected South outport to resolve back to the registered OutputUnit")
	}
}
