package router

import "github.com/nocsim/nocsim/simclock"

// NetworkLink is a unidirectional, cycle-delayed pipe for data flits
// between two routers' crossbar output and input units. It does not own
// a queue of its own: flits emitted into the source FlitBuffer already
// carry the scheduled cycle their link latency produces, so isReady and
// consumeLink simply proxy to that shared buffer.
type NetworkLink struct {
	latency  simclock.Cycles
	source   *FlitBuffer
	consumer simclock.Consumer
}

// NewNetworkLink returns a link with the given latency (>= 1 cycle).
func NewNetworkLink(latency simclock.Cycles) *NetworkLink {
	if latency < 1 {
		panic("NetworkLink: latency must be >= 1")
	}
	return &NetworkLink{latency: latency}
}

// Latency returns the link's cycle delay.
func (l *NetworkLink) Latency() simclock.Cycles { return l.latency }

// SetSourceQueue attaches the FlitBuffer this link drains.
func (l *NetworkLink) SetSourceQueue(fb *FlitBuffer) { l.source = fb }

// SetLinkConsumer attaches the Consumer woken when the link has a flit
// ready.
func (l *NetworkLink) SetLinkConsumer(c simclock.Consumer) { l.consumer = c }

// Consumer returns the attached downstream Consumer.
func (l *NetworkLink) Consumer() simclock.Consumer { return l.consumer }

// IsReady reports whether the source buffer has a flit scheduled at or
// before now.
func (l *NetworkLink) IsReady(now simclock.Cycles) bool {
	return l.source != nil && l.source.IsReady(now)
}

// ConsumeLink pops and returns the next-ready flit.
func (l *NetworkLink) ConsumeLink() *Flit {
	return l.source.Pop()
}

// CreditLink is the reverse-direction counterpart of NetworkLink,
// carrying credit flits from a downstream input unit back to the
// upstream output unit.
type CreditLink struct {
	latency  simclock.Cycles
	source   *FlitBuffer
	consumer simclock.Consumer
}

// NewCreditLink returns a credit link with the given latency (>= 1 cycle).
func NewCreditLink(latency simclock.Cycles) *CreditLink {
	if latency < 1 {
		panic("CreditLink: latency must be >= 1")
	}
	return &CreditLink{latency: latency}
}

// Latency returns the link's cycle delay.
func (l *CreditLink) Latency() simclock.Cycles { return l.latency }

// SetSourceQueue attaches the FlitBuffer this link drains.
func (l *CreditLink) SetSourceQueue(fb *FlitBuffer) { l.source = fb }

// SetLinkConsumer attaches the Consumer woken when the link has a credit
// ready.
func (l *CreditLink) SetLinkConsumer(c simclock.Consumer) { l.consumer = c }

// Consumer returns the attached downstream Consumer.
func (l *CreditLink) Consumer() simclock.Consumer { return l.consumer }

// IsReady reports whether the source buffer has a credit flit scheduled
// at or before now.
func (l *CreditLink) IsReady(now simclock.Cycles) bool {
	return l.source != nil && l.source.IsReady(now)
}

// ConsumeLink pops and returns the next-ready credit flit.
func (l *CreditLink) ConsumeLink() *Flit {
	return l.source.Pop()
}
