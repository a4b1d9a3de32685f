package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/snipq/snipq/internal/dispatch"
)

// DestinationHub is the delivery sink: a registry of attached destination
// clients, each identified by an opaque id and fed over a buffered channel.
// Send fails when the destination is not attached; the coordinator decides
// whether to retry.
type DestinationHub struct {
	mu      sync.Mutex
	clients map[string]chan dispatch.Message
}

// perDestinationBuffer bounds undrained messages per attached client.
const perDestinationBuffer = 16

func NewDestinationHub() *DestinationHub {
	return &DestinationHub{
		clients: make(map[string]chan dispatch.Message),
	}
}

// Attach registers a destination and returns its message channel plus a
// detach func. Attaching an id that is already attached replaces the previous
// client; the old channel is closed.
func (h *DestinationHub) Attach(destination string) (<-chan dispatch.Message, func()) {
	ch := make(chan dispatch.Message, perDestinationBuffer)

	h.mu.Lock()
	if old, ok := h.clients[destination]; ok {
		close(old)
	}
	h.clients[destination] = ch
	h.mu.Unlock()

	detach := func() {
		h.mu.Lock()
		if cur, ok := h.clients[destination]; ok && cur == ch {
			delete(h.clients, destination)
			close(cur)
		}
		h.mu.Unlock()
	}
	return ch, detach
}

// Send implements dispatch.Sink.
func (h *DestinationHub) Send(ctx context.Context, destination string, msg dispatch.Message) error {
	h.mu.Lock()
	ch, ok := h.clients[destination]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("destination %q is not connected", destination)
	}

	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("destination %q is not draining its stream", destination)
	}
}

// Connected reports whether a destination is currently attached.
func (h *DestinationHub) Connected(destination string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[destination]
	return ok
}
