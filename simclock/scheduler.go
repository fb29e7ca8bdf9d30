package simclock

import "container/heap"

// eventHeap orders Events by (Cycle, Priority, EventID), giving a fully
// deterministic tie-break across routers advancing "in parallel" in
// simulated time. Mirrors the teacher's cluster.EventHeap ordering.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Cycle != h[j].Cycle {
		return h[i].Cycle < h[j].Cycle
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].EventID < h[j].EventID
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pendingKey identifies a (cycle, consumer) pair so duplicate scheduling
// requests collapse into a single invocation, per spec.md §6's
// "Multiple requests collapse to a single invocation" contract.
type pendingKey struct {
	cycle    Cycles
	consumer Consumer
}

// Scheduler is the host simulator's event queue. Routers and links never
// advance the clock themselves; they only request wakeups through it.
type Scheduler struct {
	heap    eventHeap
	now     Cycles
	nextID  uint64
	pending map[pendingKey]bool
}

// NewScheduler returns an empty Scheduler starting at cycle 0.
func NewScheduler() *Scheduler {
	s := &Scheduler{pending: make(map[pendingKey]bool)}
	heap.Init(&s.heap)
	return s
}

// Now returns the cycle currently being processed.
func (s *Scheduler) Now() Cycles { return s.now }

// At requests that consumer.Wakeup(cycle) be invoked at the given cycle,
// with the given priority used only to break ties against other consumers
// scheduled for the same cycle. A second request for the same (cycle,
// consumer) pair before it fires is a no-op.
func (s *Scheduler) At(cycle Cycles, priority int, consumer Consumer) {
	key := pendingKey{cycle: cycle, consumer: consumer}
	if s.pending[key] {
		return
	}
	s.pending[key] = true
	s.nextID++
	heap.Push(&s.heap, Event{Cycle: cycle, Priority: priority, EventID: s.nextID, Consumer: consumer})
}

// Empty reports whether there is no more work scheduled.
func (s *Scheduler) Empty() bool { return s.heap.Len() == 0 }

// Step pops and executes the single next-due event, advancing Now() to its
// cycle. It is a no-op if the queue is empty.
func (s *Scheduler) Step() {
	if s.heap.Len() == 0 {
		return
	}
	ev := heap.Pop(&s.heap).(Event)
	s.now = ev.Cycle
	delete(s.pending, pendingKey{cycle: ev.Cycle, consumer: ev.Consumer})
	ev.Consumer.Wakeup(ev.Cycle)
}

// Run drains the event queue until it is empty or the cycle limit is
// reached (inclusive); horizon < 0 means run to exhaustion.
func (s *Scheduler) Run(horizon Cycles) {
	for !s.Empty() {
		if horizon >= 0 && s.heap[0].Cycle > horizon {
			return
		}
		s.Step()
	}
}
