// Package client connects the cache worker to its open pages.
package client

import (
	"fmt"
	"sync"

	offlinecache "github.com/anapath-lab/offline-cache"

	"github.com/google/uuid"
)

// messageBuffer is the per-client channel capacity. Messages to clients
// that fall further behind are dropped; delivery is best-effort and must
// never block the worker.
const messageBuffer = 8

type subscriber struct {
	info offlinecache.ClientInfo
	ch   chan offlinecache.Message
}

// Hub is an in-memory ClientBroadcaster. Pages subscribe to receive
// worker messages; the cmd server bridges subscriptions to SSE streams.
type Hub struct {
	mutex sync.RWMutex
	subs  map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]*subscriber),
	}
}

// Subscribe registers a page and returns its identity along with the
// channel its messages arrive on. Unsubscribe with the returned ID.
func (h *Hub) Subscribe(url string) (offlinecache.ClientInfo, <-chan offlinecache.Message) {
	sub := &subscriber{
		info: offlinecache.ClientInfo{
			ID:  uuid.NewString(),
			URL: url,
		},
		ch: make(chan offlinecache.Message, messageBuffer),
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.subs[sub.info.ID] = sub
	return sub.info, sub.ch
}

// Unsubscribe removes a page and closes its message channel.
func (h *Hub) Unsubscribe(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) Clients() ([]offlinecache.ClientInfo, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]offlinecache.ClientInfo, 0, len(h.subs))
	for _, sub := range h.subs {
		clients = append(clients, sub.info)
	}
	return clients, nil
}

func (h *Hub) Post(id string, msg offlinecache.Message) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	sub, ok := h.subs[id]
	if !ok {
		return fmt.Errorf("no such client: %s", id)
	}
	deliver(sub, msg)
	return nil
}

func (h *Hub) Broadcast(msg offlinecache.Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, sub := range h.subs {
		deliver(sub, msg)
	}
}

// Focus asks a single page to bring itself to the front.
func (h *Hub) Focus(id string) error {
	return h.Post(id, offlinecache.Message{Type: offlinecache.MsgFocus})
}

// OpenWindow asks for a new page at the given URL. With no page to
// address, the request goes out to everyone listening.
func (h *Hub) OpenWindow(url string) error {
	h.Broadcast(offlinecache.Message{Type: offlinecache.MsgOpenWindow, URL: url})
	return nil
}

func deliver(sub *subscriber, msg offlinecache.Message) {
	select {
	case sub.ch <- msg:
	default:
		// client is not keeping up, drop the message
	}
}
