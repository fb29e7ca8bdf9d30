package router

import (
	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/simclock"
)

// OutputUnit owns one outport's OutVcState array and outbound FlitBuffer:
// credit accounting, free-VC selection under the escape-VC / turn-model
// discipline, and the reverse CreditLink's consumer side.
type OutputUnit struct {
	routerID  int
	id        int
	direction netaddr.PortDirection

	vcPerVnet int
	outvc     []*OutVcState

	outBuffer  *FlitBuffer
	outLink    *NetworkLink
	creditLink *CreditLink
}

// NewOutputUnit returns an OutputUnit with one freshly-IDLE OutVcState per
// entry in bufferDepths (one per VC), each credit count starting full at
// the downstream input's buffer depth for that VC.
func NewOutputUnit(routerID, id int, direction netaddr.PortDirection, vcPerVnet int, bufferDepths []int) *OutputUnit {
	ou := &OutputUnit{
		routerID:  routerID,
		id:        id,
		direction: direction,
		vcPerVnet: vcPerVnet,
		outvc:     make([]*OutVcState, len(bufferDepths)),
		outBuffer: NewFlitBuffer(),
	}
	for i, depth := range bufferDepths {
		ou.outvc[i] = NewOutVcState(depth)
	}
	return ou
}

// SetOutLink attaches the outbound NetworkLink this output unit feeds.
func (ou *OutputUnit) SetOutLink(link *NetworkLink) { ou.outLink = link }

// SetCreditLink attaches the inbound CreditLink this output unit consumes.
func (ou *OutputUnit) SetCreditLink(link *CreditLink) { ou.creditLink = link }

// OutBuffer returns the FlitBuffer switch traversal drains granted flits
// into.
func (ou *OutputUnit) OutBuffer() *FlitBuffer { return ou.outBuffer }

// HasCredit reports whether outvc has at least one free downstream buffer
// slot. Requires outvc to be ACTIVE, matching the upstream invariant that
// credit is only ever checked for a VC currently bound to a packet.
func (ou *OutputUnit) HasCredit(outvc int) bool {
	if ou.outvc[outvc].State() != VCActive {
		panic("OutputUnit: has_credit called on a non-ACTIVE outvc")
	}
	return ou.outvc[outvc].HasCredit()
}

// DecrementCredit consumes one downstream buffer slot for outvc, called
// exactly once per switch-allocation grant using it.
func (ou *OutputUnit) DecrementCredit(outvc int) {
	ou.outvc[outvc].DecrementCredit()
}

// IncrementCredit returns one downstream buffer slot for outvc, called
// when a credit flit arrives on the reverse CreditLink.
func (ou *OutputUnit) IncrementCredit(outvc int) {
	ou.outvc[outvc].IncrementCredit()
}

func (ou *OutputUnit) isVCIdle(vc int) bool {
	return ou.outvc[vc].State() == VCIdle
}

// isSetNotAllowedXY is the turn-restriction predicate from the legacy
// turn-model implementation being reproduced here: it is meant to block
// the North outport when approaching from a quadrant where a north turn
// would cross the X axis before the Y dimension completes, and likewise
// for the South outport with the symmetric quadrants. The legacy source
// this is grounded on has both disjuncts test outport_dirn == North, so
// South is never restricted by this predicate; that asymmetry is
// preserved faithfully rather than corrected (see DESIGN.md).
func isSetNotAllowedXY(numCols, routerID int, route netaddr.RouteInfo, outportDirn netaddr.PortDirection) bool {
	myX := routerID % numCols
	myY := routerID / numCols
	destX := route.DestRouter % numCols
	destY := route.DestRouter / numCols

	xDirn := destX >= myX
	yDirn := destY >= myY
	xHops := abs(destX - myX)
	yHops := abs(destY - myY)

	if xHops == 0 || yHops == 0 {
		return false
	}
	return (outportDirn == netaddr.North && ((xDirn && yDirn) || (!xDirn && yDirn))) ||
		(outportDirn == netaddr.North && ((!xDirn && !yDirn) || (xDirn && !yDirn)))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// HasFreeVC reports whether some VC in vnet is available to bind route's
// packet on outportDirn, honoring the escape-VC and turn-restriction
// discipline: on the escape VC, only the escape VC itself qualifies; off
// it, any non-escape VC not forbidden by isSetNotAllowedXY qualifies.
func (ou *OutputUnit) HasFreeVC(vnet int, inportDirn, outportDirn netaddr.PortDirection, invc int, route netaddr.RouteInfo, numCols int) bool {
	vcBase := vnet * ou.vcPerVnet
	escapeVC := vcBase + ou.vcPerVnet - 1

	if invc == escapeVC {
		return ou.isVCIdle(escapeVC)
	}

	forbidTurn := isSetNotAllowedXY(numCols, ou.routerID, route, outportDirn)
	for vc := vcBase; vc < vcBase+ou.vcPerVnet; vc++ {
		if forbidTurn && vc == escapeVC {
			continue
		}
		if ou.isVCIdle(vc) {
			return true
		}
	}
	return false
}

// SelectFreeVC mirrors HasFreeVC's eligibility rule and additionally
// binds the chosen VC ACTIVE at cycle now, returning its index, or -1 if
// none qualify (the caller must already have verified HasFreeVC).
func (ou *OutputUnit) SelectFreeVC(vnet int, inportDirn, outportDirn netaddr.PortDirection, invc int, route netaddr.RouteInfo, numCols int, now simclock.Cycles) int {
	vcBase := vnet * ou.vcPerVnet
	escapeVC := vcBase + ou.vcPerVnet - 1

	if invc == escapeVC {
		if ou.isVCIdle(escapeVC) {
			ou.outvc[escapeVC].SetState(VCActive, now)
			return escapeVC
		}
		return -1
	}

	forbidTurn := isSetNotAllowedXY(numCols, ou.routerID, route, outportDirn)
	for vc := vcBase; vc < vcBase+ou.vcPerVnet; vc++ {
		if forbidTurn && vc == escapeVC {
			continue
		}
		if ou.isVCIdle(vc) {
			ou.outvc[vc].SetState(VCActive, now)
			return vc
		}
	}
	return -1
}

// SetIdle returns outvc to IDLE, called after the free-signal credit for
// its packet's TAIL/HEAD_TAIL flit has been transmitted.
func (ou *OutputUnit) SetIdle(outvc int, now simclock.Cycles) {
	ou.outvc[outvc].SetState(VCIdle, now)
}

// Wakeup consumes one credit flit from the reverse CreditLink, if ready,
// incrementing the named outvc's credit count and freeing it entirely
// when the credit carries the free-signal.
func (ou *OutputUnit) Wakeup(now simclock.Cycles) {
	if ou.creditLink == nil || !ou.creditLink.IsReady(now) {
		return
	}
	credit := ou.creditLink.ConsumeLink()
	ou.IncrementCredit(credit.VC)
	if credit.IsFreeSignal {
		ou.SetIdle(credit.VC, now)
	}
}
