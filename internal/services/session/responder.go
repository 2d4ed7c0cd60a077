package session

import (
	"context"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/protocol/wire"
)

// ResponderEngine receives proposals and settles or rejects them. It is the
// controller of every session it settles.
type ResponderEngine struct {
	*core
}

// NewResponder builds a responder-role engine and registers its handshake
// listener on d.Pairings. Call Init before using it.
func NewResponder(d Deps, opts ...Option) *ResponderEngine {
	e := &ResponderEngine{core: newCore(d, "responder", opts)}
	d.Pairings.OnSession(e.onHandshake)
	return e
}

// Proposals lists the unexpired proposals awaiting an answer.
func (e *ResponderEngine) Proposals() ([]domain.Proposal, error) {
	all, err := e.ProposalStore.GetAll()
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := all[:0]
	for _, p := range all {
		if !p.Expired(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ApproveParams grants namespaces to a received proposal.
type ApproveParams struct {
	ProposalID string
	Namespaces domain.Namespaces
	Metadata   *domain.Metadata
}

// Approve settles a proposal: it derives the session topic, subscribes it and
// sends the settlement to the proposer over the pairing. If the settlement
// cannot be sent the session is rolled back.
func (e *ResponderEngine) Approve(ctx context.Context, p ApproveParams) (domain.Session, error) {
	if err := e.ready(); err != nil {
		return domain.Session{}, err
	}
	prop, ok, err := e.ProposalStore.Get(p.ProposalID)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, errs.NotFound("proposal", p.ProposalID)
	}
	if prop.Expired(e.now()) {
		e.dropProposal(prop, errs.Expired("proposal", prop.ID))
		return domain.Session{}, errs.Expired("proposal", prop.ID)
	}
	if err := ValidateApproval(prop.RequiredNamespaces, p.Namespaces); err != nil {
		return domain.Session{}, err
	}

	kp, err := e.Crypto.GenerateKeyPair()
	if err != nil {
		return domain.Session{}, err
	}
	symKey, topic, err := e.deriveTopic(kp.PrivateKey, prop.Proposer.PublicKey)
	if err != nil {
		return domain.Session{}, err
	}
	md := e.opts.metadata
	if p.Metadata != nil {
		md = *p.Metadata
	}
	now := e.now()
	self := domain.Participant{PublicKey: kp.PublicKey, Metadata: md}
	s := domain.Session{
		Topic:              topic,
		PairingTopic:       prop.PairingTopic,
		Relay:              e.Relay.Protocol(),
		Expiry:             now + int64(e.opts.expiry.Seconds()),
		Controller:         kp.PublicKey,
		Namespaces:         p.Namespaces,
		RequiredNamespaces: prop.RequiredNamespaces,
		OptionalNamespaces: prop.OptionalNamespaces,
		Self:               self,
		Peer:               prop.Proposer,
		Status:             domain.SessionSettled,
		CreatedAt:          now,
		UpdatedAt:          now,
		ProposalID:         prop.ID,
	}
	if err := e.settle(ctx, s, symKey); err != nil {
		return domain.Session{}, err
	}

	settle := wire.SessionSettle{
		ProposalID: prop.ID,
		Relay:      s.Relay,
		Controller: self,
		Namespaces: s.Namespaces,
		Expiry:     s.Expiry,
	}
	if err := e.Pairings.Forward(ctx, prop.PairingTopic, settle); err != nil {
		e.log.WithError(err).WithField("proposal", prop.ID).Warn("settlement not delivered; rolling back")
		e.forget(ctx, s)
		return domain.Session{}, err
	}
	if err := e.ProposalStore.Delete(prop.ID); err != nil {
		e.log.WithError(err).WithField("proposal", prop.ID).Warn("delete settled proposal failed")
	}

	e.log.WithField("proposal", prop.ID).WithField("topic", topic).Info("session settled")
	e.emit(Event{Kind: EventSettled, Topic: topic, Session: s, Proposal: prop})
	return s, nil
}

// RejectParams declines a received proposal.
type RejectParams struct {
	ProposalID string
	Reason     string
}

// Reject tells the proposer the proposal is declined and forgets it. The
// proposal is forgotten even if the notice cannot be sent.
func (e *ResponderEngine) Reject(ctx context.Context, p RejectParams) error {
	if err := e.ready(); err != nil {
		return err
	}
	prop, ok, err := e.ProposalStore.Get(p.ProposalID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("proposal", p.ProposalID)
	}
	sendErr := e.Pairings.Forward(ctx, prop.PairingTopic, wire.SessionReject{ProposalID: prop.ID, Reason: p.Reason})
	e.dropProposal(prop, errs.Rejected(p.Reason))
	e.emit(Event{Kind: EventRejected, Proposal: prop, Reason: p.Reason})
	return sendErr
}

func (e *ResponderEngine) onHandshake(_ context.Context, pairingTopic domain.Topic, msg wire.Message) {
	m, ok := msg.(wire.SessionPropose)
	if !ok {
		e.log.WithField("method", msg.Method()).Debug("responder ignores handshake message")
		return
	}
	log := e.log.WithField("proposal", m.ID)
	if m.ID == "" || m.Proposer.PublicKey == "" {
		log.Warn("dropping malformed proposal")
		return
	}
	prop := domain.Proposal{
		ID:                 m.ID,
		PairingTopic:       pairingTopic,
		Proposer:           m.Proposer,
		RequiredNamespaces: m.RequiredNamespaces,
		OptionalNamespaces: m.OptionalNamespaces,
		Relays:             m.Relays,
		ExpiryTimestamp:    m.ExpiryTimestamp,
	}
	if prop.Expired(e.now()) {
		log.Warn("dropping expired proposal")
		return
	}
	if _, exists, err := e.ProposalStore.Get(prop.ID); err != nil || exists {
		log.Debug("dropping duplicate proposal")
		return
	}
	if err := e.ProposalStore.Set(prop.ID, prop); err != nil {
		log.WithError(err).Error("persist proposal failed")
		return
	}
	log.WithField("pairing", pairingTopic).Info("session proposal received")
	e.emit(Event{Kind: EventProposal, Topic: pairingTopic, Proposal: prop})
}
