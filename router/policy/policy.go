// Package policy implements the mesh-routing algorithms pluggable into
// RoutingUnit: dimension-ordered XY, RANDOM, and the escape-VC-aware
// TURN_MODEL. Each is a single-method Algorithm, following the teacher's
// RoutingPolicy/AdmissionPolicy/PriorityPolicy shape (sim/routing.go,
// sim/admission.go, sim/priority.go) so a future algorithm is a new type,
// not a new switch case.
//
// TABLE routing is not here: it operates on a RoutingUnit's own per-outport
// tables, not on mesh geometry, so it lives on RoutingUnit directly.
package policy

import (
	"fmt"
	"math/rand"

	"github.com/nocsim/nocsim/netaddr"
)

// RouteContext carries the mesh-geometry inputs an Algorithm needs to pick
// an outport direction for one packet at one router.
type RouteContext struct {
	MyX, MyY     int
	DestX, DestY int
	InportDirn   netaddr.PortDirection
	RNG          *rand.Rand
}

// Algorithm computes the outport direction for a packet that must leave
// this router (i.e. dest_router != self.id has already been checked by
// the caller).
type Algorithm interface {
	Direction(ctx RouteContext) (netaddr.PortDirection, error)
}

// XY is dimension-ordered routing: resolve all X hops before any Y hops.
type XY struct{}

// Direction implements Algorithm for XY.
func (XY) Direction(ctx RouteContext) (netaddr.PortDirection, error) {
	xHops := abs(ctx.DestX - ctx.MyX)
	yHops := abs(ctx.DestY - ctx.MyY)
	xDirn := ctx.DestX >= ctx.MyX
	yDirn := ctx.DestY >= ctx.MyY

	if xHops == 0 && yHops == 0 {
		return netaddr.Unknown, fmt.Errorf("policy: XY called with zero hops (local packet)")
	}

	if xHops > 0 {
		if xDirn {
			if !(ctx.InportDirn == netaddr.Local || ctx.InportDirn == netaddr.West) {
				return netaddr.Unknown, fmt.Errorf("policy: XY illegal inport %s for outport East", ctx.InportDirn)
			}
			return netaddr.East, nil
		}
		if !(ctx.InportDirn == netaddr.Local || ctx.InportDirn == netaddr.East) {
			return netaddr.Unknown, fmt.Errorf("policy: XY illegal inport %s for outport West", ctx.InportDirn)
		}
		return netaddr.West, nil
	}

	if yDirn {
		if ctx.InportDirn == netaddr.North {
			return netaddr.Unknown, fmt.Errorf("policy: XY illegal inport %s for outport North", ctx.InportDirn)
		}
		return netaddr.North, nil
	}
	if ctx.InportDirn == netaddr.South {
		return netaddr.Unknown, fmt.Errorf("policy: XY illegal inport %s for outport South", ctx.InportDirn)
	}
	return netaddr.South, nil
}

// Random picks uniformly between the two productive directions when both
// dimensions still have hops remaining; degenerates to XY's deterministic
// choice when only one dimension remains.
type Random struct{}

// Direction implements Algorithm for Random.
func (Random) Direction(ctx RouteContext) (netaddr.PortDirection, error) {
	xHops := abs(ctx.DestX - ctx.MyX)
	yHops := abs(ctx.DestY - ctx.MyY)
	xDirn := ctx.DestX >= ctx.MyX
	yDirn := ctx.DestY >= ctx.MyY

	if xHops == 0 && yHops == 0 {
		return netaddr.Unknown, fmt.Errorf("policy: Random called with zero hops (local packet)")
	}

	if xHops == 0 {
		if yDirn {
			return netaddr.North, nil
		}
		return netaddr.South, nil
	}
	if yHops == 0 {
		if xDirn {
			return netaddr.East, nil
		}
		return netaddr.West, nil
	}

	coin := ctx.RNG.Intn(2)
	switch {
	case xDirn && yDirn: // quadrant I
		return pick(coin, netaddr.East, netaddr.North), nil
	case !xDirn && yDirn: // quadrant II
		return pick(coin, netaddr.West, netaddr.North), nil
	case !xDirn && !yDirn: // quadrant III
		return pick(coin, netaddr.West, netaddr.South), nil
	default: // quadrant IV
		return pick(coin, netaddr.East, netaddr.South), nil
	}
}

// TurnModel is Random with quadrants II and III forced to West, removing
// the W->N and W->S turns to break the cyclic turn set used for
// deadlock-free escape-VC routing.
type TurnModel struct{}

// Direction implements Algorithm for TurnModel.
func (TurnModel) Direction(ctx RouteContext) (netaddr.PortDirection, error) {
	xHops := abs(ctx.DestX - ctx.MyX)
	yHops := abs(ctx.DestY - ctx.MyY)
	xDirn := ctx.DestX >= ctx.MyX
	yDirn := ctx.DestY >= ctx.MyY

	if xHops == 0 && yHops == 0 {
		return netaddr.Unknown, fmt.Errorf("policy: TurnModel called with zero hops (local packet)")
	}

	if xHops == 0 {
		if yDirn {
			return netaddr.North, nil
		}
		return netaddr.South, nil
	}
	if yHops == 0 {
		if xDirn {
			return netaddr.East, nil
		}
		return netaddr.West, nil
	}

	coin := ctx.RNG.Intn(2)
	switch {
	case xDirn && yDirn: // quadrant I
		return pick(coin, netaddr.East, netaddr.North), nil
	case !xDirn && yDirn: // quadrant II: W_ forced
		return netaddr.West, nil
	case !xDirn && !yDirn: // quadrant III: W_ forced
		return netaddr.West, nil
	default: // quadrant IV
		return pick(coin, netaddr.East, netaddr.South), nil
	}
}

func pick(coin int, a, b netaddr.PortDirection) netaddr.PortDirection {
	if coin == 1 {
		return a
	}
	return b
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ForName returns the Algorithm named by the router's configured routing
// algorithm string; used when wiring a RoutingUnit from configuration.
// TABLE and CUSTOM are not mesh-geometry algorithms and are not returned
// here; callers handle them on RoutingUnit directly.
func ForName(name string) (Algorithm, bool) {
	switch name {
	case "XY":
		return XY{}, true
	case "RANDOM":
		return Random{}, true
	case "TURN_MODEL":
		return TurnModel{}, true
	default:
		return nil, false
	}
}
