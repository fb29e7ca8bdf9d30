package mesh

import (
	"testing"

	"github.com/nocsim/nocsim/rngutil"
	"github.com/nocsim/nocsim/router"
	"github.com/nocsim/nocsim/simclock"
)

func Test4x4Mesh_EscapeVCTrafficAcrossAllQuadrantsMakesProgress(t *testing.T) {
	// GIVEN a 4x4 mesh routing TURN_MODEL on escape VCs (vcPerVnet=4, so
	// invc 3 is >= escape_vc and always forced to TURN_MODEL), with a
	// worst-case traffic pattern of corner-to-opposite-corner packets
	// cycling through every quadrant
	m := newTestMesh(t, Config{
		NumRows: 4, NumCols: 4,
		NumVnets: 1, VCPerVnet: 4,
		BuffersPerCtrlVC: 4, BuffersPerDataVC: 4,
		RoutingAlgorithm: "TURN_MODEL", LinkLatency: 1,
		PipelineMode: router.OneCycle,
	})

	corners := [][2]int{{0, 15}, {15, 0}, {3, 12}, {12, 3}}
	for _, pair := range corners {
		src, dst := pair[0], pair[1]
		if err := m.NetworkInterface(src).Inject(0, Message{DestRouter: dst, DestNI: dst, Tokens: 3, Vnet: 0}); err != nil {
			t.Fatalf("Inject %d->%d: %v", src, dst, err)
		}
	}

	// WHEN the simulation runs to a horizon generous enough for every
	// packet to cross the mesh diagonally
	m.Scheduler().Run(200)

	// THEN every packet is delivered (forward progress was made in every
	// quadrant; no cyclic wait stalled the mesh) and no router faulted
	for _, pair := range corners {
		dst := pair[1]
		if len(m.NetworkInterface(dst).Delivered()) == 0 {
			t.Errorf("expected a delivery at router %d, got none (mesh stalled)", dst)
		}
	}
	for id := 0; id < m.NumRouters(); id++ {
		if err := m.Router(id).Err(); err != nil {
			t.Errorf("router %d recorded a fatal error: %v", id, err)
		}
	}
}

func TestRandomRouting_FixedSeedProducesIdenticalDeliveryOrder(t *testing.T) {
	// GIVEN two independently constructed 3x3 meshes, both RANDOM-routed
	// and seeded identically, fed the identical sequence of injections
	build := func() *Mesh {
		sched := simclock.NewScheduler()
		m, err := NewMesh(Config{
			NumRows: 3, NumCols: 3,
			NumVnets: 1, VCPerVnet: 2,
			BuffersPerCtrlVC: 4, BuffersPerDataVC: 4,
			RoutingAlgorithm: "RANDOM", LinkLatency: 1,
			PipelineMode: router.OneCycle,
		}, sched, rngutil.NewPartitionedRNG(42))
		if err != nil {
			t.Fatalf("NewMesh: %v", err)
		}
		for cycle, pair := range [][2]int{{0, 8}, {8, 0}, {2, 6}, {6, 2}} {
			if err := m.NetworkInterface(pair[0]).Inject(simclock.Cycles(cycle), Message{
				DestRouter: pair[1], DestNI: pair[1], Tokens: 2, Vnet: 0,
			}); err != nil {
				t.Fatalf("Inject: %v", err)
			}
		}
		m.Scheduler().Run(100)
		return m
	}

	a := build()
	b := build()

	// THEN every destination interface received the identical number of
	// messages, in the identical per-message token count — the RNG-driven
	// per-hop direction choices were reproduced exactly from the seed
	for id := 0; id < 9; id++ {
		da, db := a.NetworkInterface(id).Delivered(), b.NetworkInterface(id).Delivered()
		if len(da) != len(db) {
			t.Fatalf("router %d: delivered count diverged: %d vs %d", id, len(da), len(db))
		}
		for i := range da {
			if da[i].Tokens != db[i].Tokens || da[i].DestRouter != db[i].DestRouter {
				t.Fatalf("router %d delivery %d diverged: %+v vs %+v", id, i, da[i], db[i])
			}
		}
	}
}

func TestOrderedVnet_MultiPacketFIFOAtMeshLevel(t *testing.T) {
	// GIVEN a 2x2 mesh with vnet 0 declared ordered, and three packets
	// injected back-to-back on different cycles from the same source
	// toward the same destination
	m := newTestMesh(t, Config{
		NumRows: 2, NumCols: 2,
		NumVnets: 1, VCPerVnet: 3,
		BuffersPerCtrlVC: 4, BuffersPerDataVC: 4,
		RoutingAlgorithm: "XY", LinkLatency: 1,
		PipelineMode:  router.OneCycle,
		OrderedVnets:  map[int]bool{0: true},
	})

	ni0 := m.NetworkInterface(0)
	for cycle, payload := range []string{"first", "second", "third"} {
		if err := ni0.Inject(simclock.Cycles(cycle), Message{
			DestRouter: 3, DestNI: 3, Tokens: 2, Vnet: 0, Payload: payload,
		}); err != nil {
			t.Fatalf("Inject %q: %v", payload, err)
		}
	}

	// WHEN the simulation runs long enough for all three packets to
	// arrive
	m.Scheduler().Run(50)

	// THEN they depart the ordered vnet in the same order they were
	// enqueued, regardless of round-robin arbitration among VCs
	delivered := m.NetworkInterface(3).Delivered()
	if len(delivered) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(delivered))
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if delivered[i].Payload != w {
			t.Errorf("delivery %d: expected payload %q, got %v", i, w, delivered[i].Payload)
		}
	}
}
