package mesh

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nocsim/nocsim/netaddr"
	"github.com/nocsim/nocsim/router"
	"github.com/nocsim/nocsim/simclock"
)

// Message is the application-level unit a NetworkInterface injects as a
// wormhole packet of Tokens flits (HEAD, zero or more BODY, TAIL; a
// single-flit message uses HEAD_TAIL), carrying an opaque Payload the
// router core never interprets. Mirrors the teacher's Request/InputTokens
// shape repurposed as a generic flit-count payload.
type Message struct {
	DestRouter int
	DestNI     int
	Tokens     int
	Vnet       int
	Payload    any
}

// inflightMessage accumulates a packet's reassembly state across the
// flits a NetworkInterface has ejected for one VC so far.
type inflightMessage struct {
	route   netaddr.RouteInfo
	payload any
	flits   int
}

// NetworkInterface is the injection/ejection collaborator spec.md §6
// names: it injects Messages onto a router's Local inport and ejects
// completed packets delivered to that router's Local outport, returning
// credits on the mirrored credit link exactly like any other hop. Its
// own outvc/credit bookkeeping for the injection side reuses
// router.OutputUnit directly — an injecting NetworkInterface needs
// exactly the same free-VC and credit discipline any upstream router
// outport does.
type NetworkInterface struct {
	routerID  int
	numCols   int
	vcPerVnet int

	injLink *router.NetworkLink
	injOut  *router.OutputUnit

	ejLink         *router.NetworkLink
	ejCreditLink   *router.CreditLink
	ejCreditSource *router.FlitBuffer

	scheduler *simclock.Scheduler

	inflight  map[int]*inflightMessage
	delivered []Message
	nextSeq   uint64

	// nextInjArrival is the earliest cycle the injection link can deliver
	// another flit: it carries one flit per cycle, so every injected flit
	// gets its own arrival cycle and its own consumer wakeup.
	nextInjArrival simclock.Cycles
}

func newNetworkInterface(routerID, numCols, vcPerVnet int, depths []int, sched *simclock.Scheduler) *NetworkInterface {
	return &NetworkInterface{
		routerID:       routerID,
		numCols:        numCols,
		vcPerVnet:      vcPerVnet,
		injOut:         router.NewOutputUnit(routerID, -1, netaddr.Local, vcPerVnet, depths),
		ejCreditSource: router.NewFlitBuffer(),
		scheduler:      sched,
		inflight:       make(map[int]*inflightMessage),
	}
}

func (ni *NetworkInterface) wireInjection(link *router.NetworkLink, credit *router.CreditLink) {
	ni.injLink = link
	ni.injOut.SetOutLink(link)
	ni.injOut.SetCreditLink(credit)
	link.SetSourceQueue(ni.injOut.OutBuffer())
	credit.SetLinkConsumer(ni.injOut)
}

func (ni *NetworkInterface) wireEjection(link *router.NetworkLink, credit *router.CreditLink) {
	ni.ejLink = link
	ni.ejCreditLink = credit
	credit.SetSourceQueue(ni.ejCreditSource)
}

// Inject admits msg as a new packet at cycle now if a free VC is
// available in the requested vnet, splitting it into Tokens flits and
// placing them on the injection link. It returns a transient error (the
// caller should retry a later cycle) if no VC is currently free; it
// never blocks or fails the simulation.
func (ni *NetworkInterface) Inject(now simclock.Cycles, msg Message) error {
	if msg.Tokens < 1 {
		return fmt.Errorf("mesh: message for router %d has fewer than 1 token", msg.DestRouter)
	}
	route := netaddr.RouteInfo{
		NetDest:    netaddr.NetDest(1) << uint(msg.DestNI),
		DestNI:     msg.DestNI,
		DestRouter: msg.DestRouter,
	}

	if !ni.injOut.HasFreeVC(msg.Vnet, netaddr.Local, netaddr.Local, -1, route, ni.numCols) {
		logrus.Debugf("mesh: router %d backpressured, no free vc in vnet %d for router %d", ni.routerID, msg.Vnet, msg.DestRouter)
		return fmt.Errorf("mesh: router %d has no free vc in vnet %d to inject", ni.routerID, msg.Vnet)
	}
	vc := ni.injOut.SelectFreeVC(msg.Vnet, netaddr.Local, netaddr.Local, -1, route, ni.numCols, now)

	for i := 0; i < msg.Tokens; i++ {
		f := &router.Flit{Type: flitType(i, msg.Tokens), VC: vc, Route: route}
		if i == 0 {
			f.Payload = msg.Payload
		}
		arrival := now + ni.injLink.Latency() + simclock.Cycles(i)
		if arrival < ni.nextInjArrival {
			arrival = ni.nextInjArrival
		}
		ni.nextInjArrival = arrival + 1
		f.AdvanceStage(router.StageLT, arrival)
		ni.injOut.OutBuffer().Insert(f)
		ni.injOut.DecrementCredit(vc)

		if ni.injLink.Consumer() != nil {
			ni.scheduler.At(arrival, router.PriorityInput, ni.injLink.Consumer())
		}
	}
	return nil
}

func flitType(i, total int) router.FlitType {
	switch {
	case total == 1:
		return router.HEAD_TAIL
	case i == 0:
		return router.HEAD
	case i == total-1:
		return router.TAIL
	default:
		return router.BODY
	}
}

// Wakeup drains every flit the ejection link has ready this cycle,
// reassembling completed packets and returning one credit per flit (the
// one following a TAIL carries the free signal).
func (ni *NetworkInterface) Wakeup(now simclock.Cycles) {
	for ni.ejLink != nil && ni.ejLink.IsReady(now) {
		f := ni.ejLink.ConsumeLink()
		ni.reassemble(f)
		ni.returnCredit(f, now)
	}
}

func (ni *NetworkInterface) reassemble(f *router.Flit) {
	msg := ni.inflight[f.VC]
	if f.IsHead() {
		msg = &inflightMessage{route: f.Route, payload: f.Payload}
		ni.inflight[f.VC] = msg
	}
	msg.flits++
	if f.IsTail() {
		ni.delivered = append(ni.delivered, Message{
			DestRouter: msg.route.DestRouter,
			DestNI:     msg.route.DestNI,
			Tokens:     msg.flits,
			Payload:    msg.payload,
		})
		ni.nextSeq++
		delete(ni.inflight, f.VC)
	}
}

func (ni *NetworkInterface) returnCredit(f *router.Flit, now simclock.Cycles) {
	credit := &router.Flit{VC: f.VC, IsFreeSignal: f.IsTail()}
	arrival := now + ni.ejCreditLink.Latency()
	credit.AdvanceStage(router.StageLT, arrival)
	ni.ejCreditSource.Insert(credit)

	if ni.ejCreditLink.Consumer() != nil {
		ni.scheduler.At(arrival, router.PriorityCredit, ni.ejCreditLink.Consumer())
	}
}

// Delivered returns every message fully ejected so far.
func (ni *NetworkInterface) Delivered() []Message { return ni.delivered }

// RouterID returns the id of the router this interface is attached to.
func (ni *NetworkInterface) RouterID() int { return ni.routerID }
