package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/protocol/wire"
)

// onMessage is the relay handler for every session topic.
func (c *core) onMessage(ctx context.Context, topic domain.Topic, payload []byte) {
	symKey, ok, err := c.Keychain.Get(topic)
	if err != nil || !ok {
		c.log.WithField("topic", topic).Debug("dropping message for unknown session")
		return
	}
	msg, err := wire.Open(c.Crypto, symKey, payload)
	if err != nil {
		c.log.WithError(err).WithField("topic", topic).Warn("dropping undecodable session message")
		return
	}
	log := c.log.WithFields(logrus.Fields{"topic": topic, "method": msg.Method()})
	log.Debug("session message received")

	switch m := msg.(type) {
	case wire.SessionUpdate:
		s, err := c.mutate(topic, false, func(s *domain.Session) error {
			if s.Controller == s.Self.PublicKey {
				return errs.InvalidState("update from non-controller")
			}
			s.Namespaces = m.Namespaces
			return nil
		})
		if err != nil {
			log.WithError(err).Warn("ignoring session update")
			return
		}
		c.emit(Event{Kind: EventUpdated, Topic: topic, Session: s})
	case wire.SessionExtend:
		s, err := c.mutate(topic, false, func(s *domain.Session) error {
			if s.Controller == s.Self.PublicKey {
				return errs.InvalidState("extend from non-controller")
			}
			if m.Expiry < s.Expiry {
				return errs.InvalidArg("extend would shorten the session")
			}
			s.Expiry = m.Expiry
			return nil
		})
		if err != nil {
			log.WithError(err).Warn("ignoring session extend")
			return
		}
		c.emit(Event{Kind: EventExtended, Topic: topic, Session: s})
	case wire.SessionDelete:
		s, ok, err := c.SessionStore.Get(topic)
		if err != nil || !ok {
			return
		}
		c.terminate(ctx, s, m.Reason)
	case wire.SessionPing:
		if err := c.send(ctx, topic, wire.SessionPong(m)); err != nil {
			log.WithError(err).Debug("pong not delivered")
		}
	case wire.SessionPong:
		c.emit(Event{Kind: EventPong, Topic: topic})
	case wire.SessionRequest:
		s, err := c.settled(topic)
		if err != nil {
			log.WithError(err).Debug("dropping request")
			return
		}
		c.emit(Event{Kind: EventRequest, Topic: topic, Session: s, Request: &m})
	case wire.SessionResponse:
		key := requestKey(topic, m.ID)
		var matched bool
		if m.Error != nil {
			matched = c.requests.Reject(key, m.Error)
		} else {
			matched = c.requests.Resolve(key, m.Result)
		}
		if !matched {
			log.WithField("id", m.ID).Warn("dropping response for unknown request")
		}
	case wire.SessionEvent:
		s, err := c.settled(topic)
		if err != nil {
			log.WithError(err).Debug("dropping event")
			return
		}
		c.emit(Event{Kind: EventEvent, Topic: topic, Session: s, Event: &m})
	default:
		log.Warn("unexpected method on session topic")
	}
}
