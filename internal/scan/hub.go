package scan

import (
	"sync"
)

// Progress is one hub event. Port is set only on per-port events; port 0 is a
// valid port.
type Progress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Port    *int   `json:"port,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Hub fans progress out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Progress]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Progress]struct{})}
}

func (h *Hub) Subscribe() chan Progress {
	ch := make(chan Progress, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Progress) {
	h.mu.Lock()
	_, ok := h.subs[ch]
	delete(h.subs, ch)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (h *Hub) Publish(p Progress) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
	h.mu.Unlock()
}
