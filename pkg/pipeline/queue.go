package pipeline

import "container/heap"

// queuedEvent wraps a domain.Event with its retry attempt count. Ordering:
// higher Priority first, ties broken by lower Sequence (FIFO within a
// priority class).
type queuedEvent struct {
	event   Event
	attempt int
}

// eventHeap is a container/heap priority queue over queuedEvent.
type eventHeap struct {
	items []queuedEvent
}

func newEventHeap() *eventHeap {
	h := &eventHeap{items: make([]queuedEvent, 0)}
	heap.Init(h)
	return h
}

func (h *eventHeap) Len() int { return len(h.items) }

func (h *eventHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.event.Priority != b.event.Priority {
		return a.event.Priority > b.event.Priority
	}
	return a.event.Sequence < b.event.Sequence
}

func (h *eventHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *eventHeap) Push(x any) { h.items = append(h.items, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *eventHeap) push(qe queuedEvent) { heap.Push(h, qe) }

func (h *eventHeap) popNext() (queuedEvent, bool) {
	if h.Len() == 0 {
		return queuedEvent{}, false
	}
	return heap.Pop(h).(queuedEvent), true
}
