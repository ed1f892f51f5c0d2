package server

import "sync"

// broadcastHub fans out pre-serialised space_state payloads to every
// connected session over a per-subscriber channel. Each subscriber channel
// is a small ring: publishing to a full channel drops the subscriber's
// oldest buffered frame before enqueuing the new one, because world state
// is stateless — a dropped space_state is a single-frame stutter, never a
// correctness problem — mirroring the drop-oldest semantics of a lossy
// broadcast channel.
type broadcastHub struct {
	mu   sync.Mutex
	subs map[uint32]chan []byte
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{subs: make(map[uint32]chan []byte)}
}

func (h *broadcastHub) subscribe(id uint32, bufSize int) <-chan []byte {
	ch := make(chan []byte, bufSize)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return ch
}

func (h *broadcastHub) unsubscribe(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// publish fans data out to every subscriber, dropping each lagging
// subscriber's oldest frame rather than blocking the game loop.
func (h *broadcastHub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
}
