package pairing

import (
	"context"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/protocol/wire"
)

// onMessage is the relay handler for every pairing topic.
func (e *Engine) onMessage(ctx context.Context, topic domain.Topic, payload []byte) {
	symKey, ok, err := e.keychain.Get(topic)
	if err != nil || !ok {
		e.log.WithField("topic", topic).Debug("dropping message for unknown pairing")
		return
	}
	msg, err := wire.Open(e.crypto, symKey, payload)
	if err != nil {
		e.log.WithError(err).WithField("topic", topic).Warn("dropping undecodable pairing message")
		return
	}
	e.log.WithFields(logFields(topic, msg)).Debug("pairing message received")

	switch m := msg.(type) {
	case wire.PairingApprove:
		e.onApprove(topic, m)
	case wire.PairingReject:
		e.onTerminate(ctx, topic, EventRejected, m.Reason)
	case wire.PairingDelete:
		e.onTerminate(ctx, topic, EventDeleted, m.Reason)
	case wire.PairingUpdate:
		e.onUpdate(topic, m)
	case wire.PairingPing:
		if err := e.send(ctx, topic, wire.PairingPong{}); err != nil {
			e.log.WithError(err).WithField("topic", topic).Debug("pong not delivered")
		}
	case wire.PairingPong:
		if p, ok, _ := e.store.Get(topic); ok {
			e.emit(Event{Kind: EventPong, Topic: topic, Pairing: p})
		}
	case wire.SessionPropose, wire.SessionSettle, wire.SessionReject:
		if _, err := e.active(topic); err != nil {
			e.log.WithError(err).WithFields(logFields(topic, msg)).Debug("dropping session handshake")
			return
		}
		e.emitSession(ctx, topic, msg)
	default:
		e.log.WithFields(logFields(topic, msg)).Warn("unexpected method on pairing topic")
	}
}

func (e *Engine) onApprove(topic domain.Topic, m wire.PairingApprove) {
	if m.Responder.PublicKey == "" {
		e.log.WithField("topic", topic).Warn("ignoring approve without responder key")
		return
	}
	e.mu.Lock()
	p, ok, err := e.store.Get(topic)
	if err != nil || !ok || p.Status != domain.PairingPending {
		e.mu.Unlock()
		e.log.WithField("topic", topic).Debug("ignoring approve for non-pending pairing")
		return
	}
	p.Peer = m.Responder
	p.Status = domain.PairingActive
	p.UpdatedAt = e.now()
	if m.Expiry > 0 {
		p.Expiry = m.Expiry
	}
	err = e.store.Set(topic, p)
	e.mu.Unlock()
	if err != nil {
		e.log.WithError(err).WithField("topic", topic).Error("persist approved pairing failed")
		return
	}

	e.approvals.Resolve(topic, p)
	e.log.WithField("topic", topic).Info("pairing approved")
	e.emit(Event{Kind: EventApproved, Topic: topic, Pairing: p})
}

func (e *Engine) onTerminate(ctx context.Context, topic domain.Topic, kind EventKind, reason string) {
	p, ok, err := e.store.Get(topic)
	if err != nil || !ok {
		return
	}
	e.forget(ctx, p, errs.Rejected(reason))
	e.log.WithField("topic", topic).WithField("reason", reason).Info("pairing " + string(kind) + " by peer")
	e.emit(Event{Kind: kind, Topic: topic, Pairing: p, Reason: reason})
}

func (e *Engine) onUpdate(topic domain.Topic, m wire.PairingUpdate) {
	e.mu.Lock()
	p, err := e.active(topic)
	if err == nil {
		p.Peer.Metadata = m.Metadata
		p.UpdatedAt = e.now()
		err = e.store.Set(topic, p)
	}
	e.mu.Unlock()
	if err != nil {
		e.log.WithError(err).WithField("topic", topic).Debug("ignoring pairing update")
		return
	}
	e.emit(Event{Kind: EventUpdated, Topic: topic, Pairing: p})
}
