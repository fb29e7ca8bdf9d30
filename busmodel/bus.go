// Package busmodel implements the peripheral memory-bus collaborator
// named in spec.md §6: address-range-based packet routing with a
// default catch-all port and a FIFO retry list, grounded on gem5's
// src/mem/bus.cc (Bus::recvTiming/recvAtomic/recvFunctional/recvRetry/
// addressRanges).
package busmodel

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Broadcast is the sentinel destination id meaning "route by address"
// rather than by a specific port, matching gem5's Packet::Broadcast.
const Broadcast = -1

// AddrRange is a half-open [Start, End) address interval.
type AddrRange struct {
	Start, End uint64
}

func (r AddrRange) contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// intersectsButNotSubsetOf reports whether r crosses d's boundary
// without being fully contained in it — the configuration error the bus
// rejects at AddressRanges time.
func (r AddrRange) intersectsButNotSubsetOf(d AddrRange) bool {
	if r.Start >= d.Start && r.End <= d.End {
		return false
	}
	return r.Start < d.End && r.End > d.Start
}

// Packet is the unit the bus routes: a timing/atomic/functional request
// carrying a source port id, destination (or Broadcast), and address.
type Packet struct {
	Src  int
	Dest int
	Addr uint64
	Cmd  string
}

// Port is the peripheral-device side of a bus connection: whatever the
// bus attaches to must accept timing/atomic/functional sends, honor
// retry, and report the address ranges it owns.
type Port interface {
	SendTiming(pkt *Packet) bool
	SendAtomic(pkt *Packet)
	SendFunctional(pkt *Packet)
	SendRetry()
	AddressRanges() []AddrRange
}

type portEntry struct {
	id    int
	port  Port
	ranges []AddrRange
}

// Bus routes Packets among attached Ports by address (Broadcast
// destination) or by explicit port id, enforcing that every attached
// port's address ranges are disjoint from, or a subset of, the
// default port's range, and draining retry requests FIFO.
type Bus struct {
	id int

	ports       []portEntry
	defaultPort Port
	defaultID   int

	retryList []Port
}

// NewBus returns an empty Bus identified by id, matching gem5's
// globally-unique bus_id parameter.
func NewBus(id int) *Bus {
	return &Bus{id: id, defaultID: -1}
}

// ID returns the bus's configured identifier.
func (b *Bus) ID() int { return b.id }

// GetPort attaches port under name, pulling its address ranges, and
// returns the id it was assigned (stable for the bus's lifetime). name
// "default" installs port as the catch-all destination for addresses no
// other attached port claims; only one default port may be set.
func (b *Bus) GetPort(name string, port Port) (int, error) {
	if name == "default" {
		if b.defaultPort != nil {
			return -1, fmt.Errorf("busmodel: bus %d already has a default port", b.id)
		}
		b.defaultPort = port
		return b.defaultID, nil
	}
	id := len(b.ports)
	b.ports = append(b.ports, portEntry{id: id, port: port, ranges: port.AddressRanges()})
	return id, nil
}

// RecvTiming routes pkt to its destination port (by id, or by address
// lookup when pkt.Dest is Broadcast). If the destination port declines
// the send, the sending port is queued on the retry list and RecvTiming
// reports false, matching gem5's retryList.push_back(interfaces[src]).
func (b *Bus) RecvTiming(pkt *Packet) (bool, error) {
	logrus.Debugf("bus %d: recvTiming src=%d dest=%d addr=%#x", b.id, pkt.Src, pkt.Dest, pkt.Addr)

	port, err := b.resolve(pkt)
	if err != nil {
		return false, err
	}
	if port.SendTiming(pkt) {
		return true, nil
	}

	src, err := b.portByID(pkt.Src)
	if err != nil {
		return false, err
	}
	b.retryList = append(b.retryList, src)
	return false, nil
}

// RecvRetry drains the retry list FIFO, calling SendRetry on each
// waiting port exactly once per call — new entries added during this
// drain (by a subsequent failed send) wait for the next RecvRetry.
func (b *Bus) RecvRetry() {
	n := len(b.retryList)
	for i := 0; i < n; i++ {
		p := b.retryList[0]
		b.retryList = b.retryList[1:]
		p.SendRetry()
	}
}

// RecvAtomic routes an atomic-access packet by address; atomic packets
// are always broadcast-routed, matching gem5's assert(dest == Broadcast).
func (b *Bus) RecvAtomic(pkt *Packet) error {
	if pkt.Dest != Broadcast {
		return fmt.Errorf("busmodel: bus %d: atomic packet must use Broadcast destination", b.id)
	}
	port, err := b.findPortByAddr(pkt.Addr, pkt.Src)
	if err != nil {
		return err
	}
	port.SendAtomic(pkt)
	return nil
}

// RecvFunctional routes a functional-access packet by address, the
// debug/inspection path; like RecvAtomic it is always broadcast-routed.
func (b *Bus) RecvFunctional(pkt *Packet) error {
	if pkt.Dest != Broadcast {
		return fmt.Errorf("busmodel: bus %d: functional packet must use Broadcast destination", b.id)
	}
	port, err := b.findPortByAddr(pkt.Addr, pkt.Src)
	if err != nil {
		return err
	}
	port.SendFunctional(pkt)
	return nil
}

func (b *Bus) resolve(pkt *Packet) (Port, error) {
	if pkt.Dest == Broadcast {
		return b.findPortByAddr(pkt.Addr, pkt.Src)
	}
	if pkt.Dest == pkt.Src {
		return nil, fmt.Errorf("busmodel: bus %d: packet destined for its own source port %d", b.id, pkt.Src)
	}
	return b.portByID(pkt.Dest)
}

func (b *Bus) portByID(id int) (Port, error) {
	for _, e := range b.ports {
		if e.id == id {
			return e.port, nil
		}
	}
	return nil, fmt.Errorf("busmodel: bus %d: no port with id %d", b.id, id)
}

func (b *Bus) findPortByAddr(addr uint64, srcID int) (Port, error) {
	for _, e := range b.ports {
		for _, r := range e.ranges {
			if r.contains(addr) {
				if e.id == srcID {
					return nil, fmt.Errorf("busmodel: bus %d: address %#x resolves back to its own source port %d", b.id, addr, srcID)
				}
				return e.port, nil
			}
		}
	}
	if b.defaultPort != nil {
		return b.defaultPort, nil
	}
	return nil, fmt.Errorf("busmodel: bus %d: no port claims address %#x", b.id, addr)
}

// AddressRanges reports the address ranges visible to requester id: the
// default port's ranges, plus every other attached port's ranges that
// are not a subset of the default range. It returns an error (gem5's
// fatal()) if any attached range crosses the default range's boundary
// without being fully contained in it.
func (b *Bus) AddressRanges(id int) ([]AddrRange, error) {
	var defaultRanges []AddrRange
	if b.defaultPort != nil {
		defaultRanges = b.defaultPort.AddressRanges()
	}

	resp := append([]AddrRange(nil), defaultRanges...)

	for _, e := range b.ports {
		subset := false
		for _, r := range e.ranges {
			for _, d := range defaultRanges {
				if r.intersectsButNotSubsetOf(d) {
					return nil, fmt.Errorf("busmodel: bus %d: port %d range [%#x,%#x) intersects default range [%#x,%#x) without being a subset",
						b.id, e.id, r.Start, r.End, d.Start, d.End)
				}
				if r.Start >= d.Start && r.End <= d.End {
					subset = true
				}
			}
		}
		if e.id != id && !subset {
			resp = append(resp, e.ranges...)
		}
	}
	return resp, nil
}
