package router

import (
	"math/rand"
	"testing"

	"github.com/nocsim/nocsim/netaddr"
)

func TestRoutingUnit_LocalEjectionUsesTableRegardlessOfAlgorithm(t *testing.T) {
	// GIVEN a router whose own id is the packet's destination, with two
	// local (L-direction) outports registered for disjoint NI bitmasks
	ru := NewRoutingUnit(3, 2, 2, "RANDOM", rand.New(rand.NewSource(1)))
	ru.RegisterOutport(0, netaddr.Local, 0b01, 0)
	ru.RegisterOutport(1, netaddr.Local, 0b10, 0)

	// WHEN computing the outport for a destination matching the second NI
	outport, err := ru.OutportCompute(netaddr.RouteInfo{NetDest: 0b10, DestRouter: 3}, 0, netaddr.North, 0, 3)

	// THEN the table lookup selects outport 1, never consulting invc/escape_vc
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outport != 1 {
		t.Fatalf("expected outport 1, got %d", outport)
	}
}

func TestRoutingUnit_TableLookupFailsFastOnMiss(t *testing.T) {
	ru := NewRoutingUnit(0, 2, 2, "TABLE", rand.New(rand.NewSource(1)))
	ru.RegisterOutport(0, netaddr.Local, 0b01, 0)

	_, err := ru.OutportCompute(netaddr.RouteInfo{NetDest: 0b10, DestRouter: 0}, 0, netaddr.Local, 0, 3)
	if err == nil {
		t.Fatalf("expected a routing-table miss error")
	}
}

func Test2x2MeshHopSequenceTakesAValidMinimalPath(t *testing.T) {
	// GIVEN a 2x2 mesh (ids 0,1 / 2,3): router 0 to router 3 is a
	// corner-to-corner trip where both dimensions have one hop
	// remaining at the first step, so the escape-VC override's
	// quadrant-I draw may pick either productive direction first.
	rng := rand.New(rand.NewSource(1))
	r0 := NewRoutingUnit(0, 2, 2, "XY", rng)
	r0.RegisterOutport(0, netaddr.East, 0, 0)
	r0.RegisterOutport(1, netaddr.North, 0, 0)

	route := netaddr.RouteInfo{DestRouter: 3}

	// WHEN computing the first hop on a non-escape VC (escape_vc = 3)
	out0, err := r0.OutportCompute(route, 0, netaddr.Local, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error at router 0: %v", err)
	}

	// THEN the first hop is one of the two minimal-path directions, and
	// whichever intermediate router is reached, its second hop
	// deterministically completes the trip (only one dimension remains).
	switch out0 {
	case 0: // East -> router 1, then North to router 3
		r1 := NewRoutingUnit(1, 2, 2, "XY", rng)
		r1.RegisterOutport(0, netaddr.North, 0, 0)
		out1, err := r1.OutportCompute(route, 0, netaddr.West, 0, 3)
		if err != nil {
			t.Fatalf("unexpected error at router 1: %v", err)
		}
		if out1 != 0 {
			t.Fatalf("expected router 1 to route North, got outport %d", out1)
		}
	case 1: // North -> router 2, then East to router 3
		r2 := NewRoutingUnit(2, 2, 2, "XY", rng)
		r2.RegisterOutport(0, netaddr.East, 0, 0)
		out2, err := r2.OutportCompute(route, 0, netaddr.South, 0, 3)
		if err != nil {
			t.Fatalf("unexpected error at router 2: %v", err)
		}
		if out2 != 0 {
			t.Fatalf("expected router 2 to route East, got outport %d", out2)
		}
	default:
		t.Fatalf("unexpected first-hop outport %d", out0)
	}
}

func TestRoutingUnit_EscapeVCSelectsTurnModel(t *testing.T) {
	// GIVEN a packet on the escape VC (invc == escape_vc) routed through
	// quadrant II, where TURN_MODEL forces West but RANDOM would not
	rng := rand.New(rand.NewSource(42))
	ru := NewRoutingUnit(2, 4, 4, "RANDOM", rng) // router 2: x=2,y=0
	ru.RegisterOutport(0, netaddr.West, 0, 0)
	ru.RegisterOutport(1, netaddr.North, 0, 0)

	dest := 4*1 + 0 // router at x=0,y=1: west and north of router 2

	for i := 0; i < 30; i++ {
		outport, err := ru.OutportCompute(netaddr.RouteInfo{DestRouter: dest}, 0, netaddr.Local, 3, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outport != 0 {
			t.Fatalf("escape-VC quadrant II packet must be forced West (outport 0), got %d", outport)
		}
	}
}
