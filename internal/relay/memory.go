package relay

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

// ProtocolMemory identifies the in-process relay.
const ProtocolMemory = "memory"

// MemoryHub routes payloads between Memory clients in one process.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[domain.Topic]map[*Memory]*subscription
}

// NewMemoryHub returns an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[domain.Topic]map[*Memory]*subscription)}
}

// Client returns a new Memory relay attached to the hub.
func (h *MemoryHub) Client() *Memory {
	return &Memory{
		hub:  h,
		subs: make(map[domain.Topic]*subscription),
		log:  logrus.WithField("component", "relay.memory"),
	}
}

func (h *MemoryHub) attach(topic domain.Topic, m *Memory, s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Memory]*subscription)
	}
	h.subs[topic][m] = s
}

func (h *MemoryHub) detach(topic domain.Topic, m *Memory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], m)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

func (h *MemoryHub) publish(topic domain.Topic, from *Memory, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for m, s := range h.subs[topic] {
		if m == from {
			continue
		}
		s.enqueue(append([]byte(nil), payload...))
	}
}

// Memory is a relay client bound to a MemoryHub.
type Memory struct {
	hub *MemoryHub
	log *logrus.Entry

	mu        sync.Mutex
	connected bool
	subs      map[domain.Topic]*subscription
}

func (m *Memory) Start(context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// Stop drops every subscription and disconnects.
func (m *Memory) Stop(context.Context) error {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[domain.Topic]*subscription)
	m.connected = false
	m.mu.Unlock()

	for topic, s := range subs {
		m.hub.detach(topic, m)
		s.close()
	}
	return nil
}

func (m *Memory) Publish(_ context.Context, topic domain.Topic, payload []byte) error {
	if !m.Connected() {
		return errs.ErrNotConnected
	}
	m.hub.publish(topic, m, payload)
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic domain.Topic, handler domain.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errs.ErrNotConnected
	}
	if s, ok := m.subs[topic]; ok {
		s.setHandler(handler)
		return nil
	}
	s := newSubscription(topic, handler, m.log)
	m.subs[topic] = s
	m.hub.attach(topic, m, s)
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, topic domain.Topic) error {
	m.mu.Lock()
	s, ok := m.subs[topic]
	delete(m.subs, topic)
	m.mu.Unlock()

	if ok {
		m.hub.detach(topic, m)
		s.close()
	}
	return nil
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Memory) Protocol() domain.RelayProtocolOptions {
	return domain.RelayProtocolOptions{Protocol: ProtocolMemory}
}

// Subscriptions returns the number of topics this client is subscribed to.
func (m *Memory) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Subscribed reports whether this client is subscribed to topic.
func (m *Memory) Subscribed(topic domain.Topic) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[topic]
	return ok
}

var _ domain.Relay = (*Memory)(nil)
