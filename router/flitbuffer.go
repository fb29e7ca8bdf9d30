package router

import (
	"container/heap"

	"github.com/nocsim/nocsim/simclock"
)

// FlitBuffer is a priority-ordered flit queue keyed on ready time
// (StageCycle), with ties broken by insertion order — required for
// reproducibility (spec.md §9). An optional non-zero maxSize turns it
// into a bounded buffer that refuses inserts once full.
type FlitBuffer struct {
	items   flitHeap
	nextSeq uint64
	maxSize int // 0 means unbounded
}

// NewFlitBuffer returns an unbounded FlitBuffer.
func NewFlitBuffer() *FlitBuffer {
	return &FlitBuffer{}
}

// NewBoundedFlitBuffer returns a FlitBuffer that holds at most maxSize
// flits.
func NewBoundedFlitBuffer(maxSize int) *FlitBuffer {
	return &FlitBuffer{maxSize: maxSize}
}

// Insert adds a flit to the buffer. It returns false without modifying
// the buffer if the buffer is bounded and already full.
func (b *FlitBuffer) Insert(f *Flit) bool {
	if b.maxSize > 0 && len(b.items) >= b.maxSize {
		return false
	}
	f.seq = b.nextSeq
	b.nextSeq++
	heap.Push(&b.items, f)
	return true
}

// IsEmpty reports whether the buffer holds no flits.
func (b *FlitBuffer) IsEmpty() bool {
	return len(b.items) == 0
}

// IsFull reports whether a bounded buffer has reached capacity. Always
// false for unbounded buffers.
func (b *FlitBuffer) IsFull() bool {
	return b.maxSize > 0 && len(b.items) >= b.maxSize
}

// IsReady reports whether the earliest-scheduled flit is due at or
// before now.
func (b *FlitBuffer) IsReady(now simclock.Cycles) bool {
	return len(b.items) > 0 && b.items[0].StageCycle <= now
}

// Peek returns the earliest-scheduled flit without removing it, or nil
// if the buffer is empty.
func (b *FlitBuffer) Peek() *Flit {
	if len(b.items) == 0 {
		return nil
	}
	return b.items[0]
}

// Pop removes and returns the earliest-scheduled flit, or nil if the
// buffer is empty.
func (b *FlitBuffer) Pop() *Flit {
	if len(b.items) == 0 {
		return nil
	}
	return heap.Pop(&b.items).(*Flit)
}

// Len returns the number of flits currently buffered.
func (b *FlitBuffer) Len() int {
	return len(b.items)
}

type flitHeap []*Flit

func (h flitHeap) Len() int { return len(h) }

func (h flitHeap) Less(i, j int) bool {
	if h[i].StageCycle != h[j].StageCycle {
		return h[i].StageCycle < h[j].StageCycle
	}
	return h[i].seq < h[j].seq
}

func (h flitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *flitHeap) Push(x any) {
	*h = append(*h, x.(*Flit))
}

func (h *flitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
