// Package mesh builds 2D mesh topologies of routers connected by
// NetworkLink/CreditLink pairs and attaches one NetworkInterface per
// router for packet injection and ejection — the host-level collaborator
// spec.md §6 leaves as an external interface. Grounded on the teacher's
// cluster.DeploymentConfig/ClusterSimulator wiring (sim/cluster/deployment.go,
// sim/cluster/simulator.go), generalized from a pool of instances to a
// grid of routers.
package mesh

import (
	"fmt"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/rngutil"
	"github.com/nocsim/nocsim/router"
	"github.com/nocsim/nocsim/simclock"
)

// Config is the uniform per-router configuration used to build every
// router in the mesh, matching the options table in spec.md §6.
type Config struct {
	NumRows, NumCols int
	NumVnets         int
	VCPerVnet        int
	BuffersPerCtrlVC int
	BuffersPerDataVC int
	RoutingAlgorithm string
	LinkLatency      simclock.Cycles
	PipelineMode     router.PipelineMode
	OrderedVnets     map[int]bool
}

// Mesh owns every router and NetworkInterface in a NumRows x NumCols
// grid. Routers are indexed id = y*NumCols+x, matching RoutingUnit's
// coordinate convention.
type Mesh struct {
	cfg Config

	routers []*router.Router
	nis     []*NetworkInterface

	scheduler *simclock.Scheduler
}

// NewMesh constructs every router, wires North/South/East/West neighbor
// links, and attaches one NetworkInterface to each router's Local port.
func NewMesh(cfg Config, scheduler *simclock.Scheduler, rng *rngutil.PartitionedRNG) (*Mesh, error) {
	if cfg.NumRows <= 0 || cfg.NumCols <= 0 {
		return nil, fmt.Errorf("mesh: num_rows and num_cols must be positive")
	}
	if cfg.NumVnets <= 0 || cfg.VCPerVnet <= 0 {
		return nil, fmt.Errorf("mesh: virt_nets and vcs_per_vnet must be positive")
	}
	if cfg.LinkLatency < 1 {
		return nil, fmt.Errorf("mesh: link_latency must be >= 1")
	}

	m := &Mesh{cfg: cfg, scheduler: scheduler}
	n := cfg.NumRows * cfg.NumCols
	m.routers = make([]*router.Router, n)
	m.nis = make([]*NetworkInterface, n)

	for id := 0; id < n; id++ {
		m.routers[id] = router.NewRouter(id, cfg.NumRows, cfg.NumCols, cfg.NumVnets, cfg.VCPerVnet,
			cfg.BuffersPerCtrlVC, cfg.BuffersPerDataVC, cfg.RoutingAlgorithm, cfg.PipelineMode,
			scheduler, rng.ForRouter(id), cfg.OrderedVnets)
	}

	for id := 0; id < n; id++ {
		x, y := id%cfg.NumCols, id/cfg.NumCols
		if x+1 < cfg.NumCols {
			m.wireNeighbors(id, y*cfg.NumCols+x+1, netaddr.East, netaddr.West)
		}
		if y+1 < cfg.NumRows {
			m.wireNeighbors(id, (y+1)*cfg.NumCols+x, netaddr.North, netaddr.South)
		}
		m.nis[id] = m.attachNetworkInterface(id)
	}

	return m, nil
}

// depths computes the per-VC buffer depth slice Router.AddOutPort uses:
// the last vnet gets the data-VC depth, every other vnet the control-VC
// depth, per the options table in spec.md §6.
func (m *Mesh) depths() []int {
	depths := make([]int, m.cfg.NumVnets*m.cfg.VCPerVnet)
	for vc := range depths {
		vnet := vc / m.cfg.VCPerVnet
		if vnet == m.cfg.NumVnets-1 {
			depths[vc] = m.cfg.BuffersPerDataVC
		} else {
			depths[vc] = m.cfg.BuffersPerCtrlVC
		}
	}
	return depths
}

// wireNeighbors connects router a's aDir outport to router b's bDir
// inport, and the symmetric reverse hop — each its own NetworkLink/
// CreditLink pair at the mesh's configured link latency.
func (m *Mesh) wireNeighbors(a, b int, aDir, bDir netaddr.PortDirection) {
	ra, rb := m.routers[a], m.routers[b]

	fwdData := router.NewNetworkLink(m.cfg.LinkLatency)
	fwdCredit := router.NewCreditLink(m.cfg.LinkLatency)
	outA := ra.AddOutPort(aDir, fwdData, fwdCredit, 0, 0)
	inB := rb.AddInPort(bDir, fwdData, fwdCredit)
	fwdData.SetLinkConsumer(inB)
	fwdCredit.SetLinkConsumer(outA)

	revData := router.NewNetworkLink(m.cfg.LinkLatency)
	revCredit := router.NewCreditLink(m.cfg.LinkLatency)
	outB := rb.AddOutPort(bDir, revData, revCredit, 0, 0)
	inA := ra.AddInPort(aDir, revData, revCredit)
	revData.SetLinkConsumer(inA)
	revCredit.SetLinkConsumer(outB)
}

// attachNetworkInterface wires a NetworkInterface to router id's Local
// port: an injection NetworkLink/CreditLink pair feeding the router's
// Local inport, and an ejection pair draining the router's Local outport.
// The routing-table entry registered for the Local outport is a single
// bit identifying this router's own network interface, the target
// lookupRoutingTable matches against for local ejection (spec.md §8
// scenario 6).
func (m *Mesh) attachNetworkInterface(id int) *NetworkInterface {
	r := m.routers[id]

	injData := router.NewNetworkLink(m.cfg.LinkLatency)
	injCredit := router.NewCreditLink(m.cfg.LinkLatency)
	inLocal := r.AddInPort(netaddr.Local, injData, injCredit)

	ejData := router.NewNetworkLink(m.cfg.LinkLatency)
	ejCredit := router.NewCreditLink(m.cfg.LinkLatency)
	outLocal := r.AddOutPort(netaddr.Local, ejData, ejCredit, netaddr.NetDest(1)<<uint(id), 0)

	ni := newNetworkInterface(id, m.cfg.NumCols, m.cfg.VCPerVnet, m.depths(), m.scheduler)
	ni.wireInjection(injData, injCredit)
	ni.wireEjection(ejData, ejCredit)

	injData.SetLinkConsumer(inLocal)
	ejData.SetLinkConsumer(ni)
	ejCredit.SetLinkConsumer(outLocal)

	return ni
}

// Router returns the router at the given id (y*NumCols+x).
func (m *Mesh) Router(id int) *router.Router { return m.routers[id] }

// NetworkInterface returns the network interface attached to router id.
func (m *Mesh) NetworkInterface(id int) *NetworkInterface { return m.nis[id] }

// NumRouters returns the total number of routers in the mesh.
func (m *Mesh) NumRouters() int { return len(m.routers) }

// Scheduler returns the event scheduler driving this mesh.
func (m *Mesh) Scheduler() *simclock.Scheduler { return m.scheduler }
