package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub connects channel members living in the same process. Posts are
// delivered synchronously to the other members of the same name.
type Hub struct {
	mu      sync.RWMutex
	members map[string]map[*hubMember]struct{}
}

type hubMember struct {
	hub      *Hub
	name     string
	id       string
	handlers handlerSet
	closed   bool
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]map[*hubMember]struct{})}
}

// Join returns a new member of the named channel.
func (h *Hub) Join(name string) Channel {
	m := &hubMember{hub: h, name: name, id: uuid.New().String()}

	h.mu.Lock()
	if h.members[name] == nil {
		h.members[name] = make(map[*hubMember]struct{})
	}
	h.members[name][m] = struct{}{}
	h.mu.Unlock()

	return m
}

// Members returns the number of open members of the named channel.
func (h *Hub) Members(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[name])
}

func (m *hubMember) Post(_ context.Context, msg Message) error {
	msg.Sender = m.id

	m.hub.mu.RLock()
	peers := make([]*hubMember, 0, len(m.hub.members[m.name]))
	for peer := range m.hub.members[m.name] {
		if peer != m {
			peers = append(peers, peer)
		}
	}
	m.hub.mu.RUnlock()

	for _, peer := range peers {
		peer.handlers.dispatch(msg)
	}
	return nil
}

func (m *hubMember) OnMessage(fn func(Message)) func() {
	return m.handlers.add(fn)
}

func (m *hubMember) Close() error {
	m.hub.mu.Lock()
	if !m.closed {
		m.closed = true
		delete(m.hub.members[m.name], m)
		if len(m.hub.members[m.name]) == 0 {
			delete(m.hub.members, m.name)
		}
	}
	m.hub.mu.Unlock()

	m.handlers.clear()
	return nil
}
