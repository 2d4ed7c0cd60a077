package session

import (
	"slices"

	"pairlink/internal/domain"
	"pairlink/internal/protocol/wire"
)

// EventKind names a local session event.
type EventKind string

const (
	EventProposal EventKind = "proposal"
	EventSettled  EventKind = "settled"
	EventRejected EventKind = "rejected"
	EventUpdated  EventKind = "updated"
	EventExtended EventKind = "extended"
	EventDeleted  EventKind = "deleted"
	EventRequest  EventKind = "request"
	EventEvent    EventKind = "event"
	EventPong     EventKind = "pong"
)

// Event is emitted to handlers registered with On. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind     EventKind
	Topic    domain.Topic
	Session  domain.Session
	Proposal domain.Proposal
	Request  *wire.SessionRequest
	Event    *wire.SessionEvent
	Reason   string
}

// On registers fn for every local session event. Handlers run synchronously
// on the goroutine that produced the event.
func (c *core) On(fn func(Event)) {
	c.hmu.Lock()
	c.handlers = append(c.handlers, fn)
	c.hmu.Unlock()
}

func (c *core) emit(ev Event) {
	c.hmu.RLock()
	hs := slices.Clone(c.handlers)
	c.hmu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}
