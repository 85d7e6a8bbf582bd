package events

import (
	"context"
	"sync"

	"groupgate.org/internal/groups"
)

const bufferSize = 16

// Hub fans group events out to subscribers of that group (SSE clients).
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan groups.Event
	next int
}

var _ groups.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan groups.Event)}
}

// Subscribe registers a subscriber for groupID. The channel is closed when
// ctx ends.
func (h *Hub) Subscribe(ctx context.Context, groupID string) <-chan groups.Event {
	ch := make(chan groups.Event, bufferSize)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[groupID] == nil {
		h.subs[groupID] = make(map[int]chan groups.Event)
	}
	h.subs[groupID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[groupID], id)
		if len(h.subs[groupID]) == 0 {
			delete(h.subs, groupID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers evt to the group's subscribers. Slow subscribers miss
// events rather than block the caller.
func (h *Hub) Publish(evt groups.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[evt.GroupID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports how many subscribers groupID currently has.
func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[groupID])
}
