package router

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/router/policy"
)

// RoutingUnit computes the outport for a HEAD/HEAD_TAIL flit: local
// ejection via the per-outport routing/weight tables, or an inter-router
// hop via a mesh-geometry Algorithm chosen by the escape-VC discipline.
type RoutingUnit struct {
	routerID int
	numRows  int
	numCols  int

	// configuredAlgorithm names the router's configured default; kept
	// for the TABLE/CUSTOM fallback path and for diagnostics. Escape-VC
	// routing overrides it for every non-local packet (see Compute).
	configuredAlgorithm string

	routingTable []netaddr.NetDest // indexed by outport
	weightTable  []int             // indexed by outport

	dirToIdx map[netaddr.PortDirection]int
	idxToDir []netaddr.PortDirection

	rng *rand.Rand
}

// NewRoutingUnit returns a RoutingUnit for the given router id within a
// numRows x numCols mesh, drawing inter-router routing randomness from
// rng (expected to be a per-router partition of a simulation-wide RNG).
func NewRoutingUnit(routerID, numRows, numCols int, configuredAlgorithm string, rng *rand.Rand) *RoutingUnit {
	return &RoutingUnit{
		routerID:            routerID,
		numRows:             numRows,
		numCols:             numCols,
		configuredAlgorithm: configuredAlgorithm,
		dirToIdx:            make(map[netaddr.PortDirection]int),
		rng:                 rng,
	}
}

// RegisterOutport records an outport's symbolic direction and its
// routing/weight table entries; called once per outport by
// Router.AddOutPort.
func (ru *RoutingUnit) RegisterOutport(idx int, dirn netaddr.PortDirection, dest netaddr.NetDest, weight int) {
	for len(ru.routingTable) <= idx {
		ru.routingTable = append(ru.routingTable, 0)
		ru.weightTable = append(ru.weightTable, 0)
		ru.idxToDir = append(ru.idxToDir, netaddr.Unknown)
	}
	ru.routingTable[idx] = dest
	ru.weightTable[idx] = weight
	ru.idxToDir[idx] = dirn
	ru.dirToIdx[dirn] = idx
}

// OutportCompute implements spec §4.5: local ejection by routing-table
// lookup, otherwise mesh-geometry routing under the escape-VC override
// (invc >= escapeVC selects TURN_MODEL, else RANDOM).
func (ru *RoutingUnit) OutportCompute(route netaddr.RouteInfo, inport int, inportDirn netaddr.PortDirection, invc, escapeVC int) (int, error) {
	if route.DestRouter == ru.routerID {
		return ru.lookupRoutingTable(route.NetDest)
	}

	var algo policy.Algorithm
	if invc >= escapeVC {
		algo = policy.TurnModel{}
	} else {
		algo = policy.Random{}
	}

	myX, myY := ru.coords(ru.routerID)
	destX, destY := ru.coords(route.DestRouter)

	dir, err := algo.Direction(policy.RouteContext{
		MyX: myX, MyY: myY,
		DestX: destX, DestY: destY,
		InportDirn: inportDirn,
		RNG:        ru.rng,
	})
	if err != nil {
		return -1, err
	}

	idx, ok := ru.dirToIdx[dir]
	if !ok {
		return -1, fmt.Errorf("routing: router %d has no outport registered for direction %s", ru.routerID, dir)
	}
	return idx, nil
}

func (ru *RoutingUnit) coords(routerID int) (x, y int) {
	return routerID % ru.numCols, routerID / ru.numCols
}

// lookupRoutingTable chooses the outport whose reachability bitmask
// intersects dest with the lowest weight; ties broken by lowest index.
// The only mechanism for local ejection, which may select among
// multiple L-direction ports.
func (ru *RoutingUnit) lookupRoutingTable(dest netaddr.NetDest) (int, error) {
	best := -1
	bestWeight := math.MaxInt
	for idx, entry := range ru.routingTable {
		if !entry.IntersectionIsNotEmpty(dest) {
			continue
		}
		w := ru.weightTable[idx]
		if best == -1 || w < bestWeight {
			best, bestWeight = idx, w
		}
	}
	if best == -1 {
		return -1, fmt.Errorf("routing: router %d has no routing-table entry matching destination", ru.routerID)
	}
	return best, nil
}
