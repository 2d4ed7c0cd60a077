package pairing

import (
	"context"
	"slices"

	"pairlink/internal/domain"
	"pairlink/internal/protocol/wire"
)

// EventKind names a local pairing event.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventActivated EventKind = "activated"
	EventApproved  EventKind = "approved"
	EventRejected  EventKind = "rejected"
	EventDeleted   EventKind = "deleted"
	EventUpdated   EventKind = "updated"
	EventPong      EventKind = "pong"
)

// Event is emitted to handlers registered with On.
type Event struct {
	Kind    EventKind
	Topic   domain.Topic
	Pairing domain.Pairing
	Reason  string
}

// SessionHandler receives session handshake messages arriving on a pairing topic.
type SessionHandler func(ctx context.Context, pairingTopic domain.Topic, msg wire.Message)

// On registers fn for every local pairing event. Handlers run synchronously
// on the goroutine that produced the event.
func (e *Engine) On(fn func(Event)) {
	e.hmu.Lock()
	e.handlers = append(e.handlers, fn)
	e.hmu.Unlock()
}

// OnSession registers fn for session handshake messages.
func (e *Engine) OnSession(fn SessionHandler) {
	e.hmu.Lock()
	e.sessionHandlers = append(e.sessionHandlers, fn)
	e.hmu.Unlock()
}

func (e *Engine) emit(ev Event) {
	e.hmu.RLock()
	hs := slices.Clone(e.handlers)
	e.hmu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

func (e *Engine) emitSession(ctx context.Context, topic domain.Topic, msg wire.Message) {
	e.hmu.RLock()
	hs := slices.Clone(e.sessionHandlers)
	e.hmu.RUnlock()
	if len(hs) == 0 {
		e.log.WithFields(logFields(topic, msg)).Debug("no session handler registered")
		return
	}
	for _, h := range hs {
		h(ctx, topic, msg)
	}
}
