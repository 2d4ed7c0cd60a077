package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/pending"
	"pairlink/internal/protocol/wire"
)

// ProposerEngine proposes sessions over active pairings.
type ProposerEngine struct {
	*core
}

// NewProposer builds a proposer-role engine and registers its handshake
// listener on d.Pairings. Call Init before using it.
func NewProposer(d Deps, opts ...Option) *ProposerEngine {
	e := &ProposerEngine{core: newCore(d, "proposer", opts)}
	e.settlements.OnTimeout(e.onProposalTimeout)
	d.Pairings.OnSession(e.onHandshake)
	return e
}

// ProposeParams describes a session proposal.
type ProposeParams struct {
	PairingTopic       domain.Topic
	RequiredNamespaces domain.Namespaces
	OptionalNamespaces domain.Namespaces
	// Relays defaults to the engine's own relay.
	Relays   []domain.RelayProtocolOptions
	Metadata *domain.Metadata
}

// ProposeResult is returned by Propose.
type ProposeResult struct {
	ID       string
	Proposal domain.Proposal

	ch   <-chan pending.Result[domain.Session]
	once sync.Once
	res  pending.Result[domain.Session]
	got  chan struct{}
}

// Settlement blocks until the responder settles or rejects the proposal, the
// proposal expires, or ctx is done. It may be called repeatedly.
func (r *ProposeResult) Settlement(ctx context.Context) (domain.Session, error) {
	r.once.Do(func() {
		go func() {
			r.res = <-r.ch
			close(r.got)
		}()
	})
	select {
	case <-r.got:
		return r.res.Value, r.res.Err
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// Propose sends a session proposal on an active pairing. It returns once the
// proposal is sent; use Settlement to wait for the answer.
func (e *ProposerEngine) Propose(ctx context.Context, p ProposeParams) (*ProposeResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p.PairingTopic == "" {
		return nil, errs.InvalidArg("pairing topic is required")
	}
	if err := ValidateRequired(p.RequiredNamespaces); err != nil {
		return nil, err
	}

	kp, err := e.Crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	md := e.opts.metadata
	if p.Metadata != nil {
		md = *p.Metadata
	}
	relays := p.Relays
	if len(relays) == 0 {
		relays = []domain.RelayProtocolOptions{e.Relay.Protocol()}
	}
	prop := domain.Proposal{
		ID:                 uuid.NewString(),
		PairingTopic:       p.PairingTopic,
		Proposer:           domain.Participant{PublicKey: kp.PublicKey, Metadata: md},
		RequiredNamespaces: p.RequiredNamespaces,
		OptionalNamespaces: p.OptionalNamespaces,
		Relays:             relays,
		ExpiryTimestamp:    e.now() + int64(e.opts.proposalExpiry/time.Second),
	}

	if err := e.Keychain.Set(kp.PublicKey, kp.PrivateKey); err != nil {
		return nil, err
	}
	if err := e.ProposalStore.Set(prop.ID, prop); err != nil {
		e.dropProposal(prop, err)
		return nil, err
	}
	ch, err := e.settlements.Register(prop.ID, e.opts.proposalExpiry)
	if err != nil {
		e.dropProposal(prop, err)
		return nil, err
	}
	msg := wire.SessionPropose{
		ID:                 prop.ID,
		Relays:             prop.Relays,
		Proposer:           prop.Proposer,
		RequiredNamespaces: prop.RequiredNamespaces,
		OptionalNamespaces: prop.OptionalNamespaces,
		ExpiryTimestamp:    prop.ExpiryTimestamp,
	}
	if err := e.Pairings.Forward(ctx, p.PairingTopic, msg); err != nil {
		e.dropProposal(prop, err)
		return nil, err
	}

	e.log.WithField("proposal", prop.ID).WithField("pairing", p.PairingTopic).Info("session proposed")
	return &ProposeResult{ID: prop.ID, Proposal: prop, ch: ch, got: make(chan struct{})}, nil
}

func (e *ProposerEngine) onHandshake(ctx context.Context, pairingTopic domain.Topic, msg wire.Message) {
	switch m := msg.(type) {
	case wire.SessionSettle:
		e.onSettle(ctx, pairingTopic, m)
	case wire.SessionReject:
		e.onReject(pairingTopic, m)
	default:
		e.log.WithField("method", msg.Method()).Debug("proposer ignores handshake message")
	}
}

func (e *ProposerEngine) onSettle(ctx context.Context, pairingTopic domain.Topic, m wire.SessionSettle) {
	log := e.log.WithField("proposal", m.ProposalID)
	prop, ok, err := e.ProposalStore.Get(m.ProposalID)
	if err != nil || !ok || prop.PairingTopic != pairingTopic {
		log.Warn("dropping settle for unknown proposal")
		return
	}
	if prop.Expired(e.now()) {
		log.Warn("dropping settle for expired proposal")
		e.dropProposal(prop, errs.Expired("proposal", prop.ID))
		return
	}
	if m.Controller.PublicKey == "" {
		log.Warn("dropping settle without controller key")
		return
	}
	if err := ValidateApproval(prop.RequiredNamespaces, m.Namespaces); err != nil {
		log.WithError(err).Warn("settle does not cover required namespaces")
		e.dropProposal(prop, err)
		return
	}

	priv, ok, err := e.Keychain.Get(prop.Proposer.PublicKey)
	if err != nil || !ok {
		log.Error("proposal private key missing")
		e.dropProposal(prop, errs.NotFound("proposal key", prop.Proposer.PublicKey))
		return
	}
	symKey, topic, err := e.deriveTopic(priv, m.Controller.PublicKey)
	if err != nil {
		log.WithError(err).Warn("session key derivation failed")
		e.dropProposal(prop, err)
		return
	}

	now := e.now()
	s := domain.Session{
		Topic:              topic,
		PairingTopic:       pairingTopic,
		Relay:              m.Relay,
		Expiry:             m.Expiry,
		Controller:         m.Controller.PublicKey,
		Namespaces:         m.Namespaces,
		RequiredNamespaces: prop.RequiredNamespaces,
		OptionalNamespaces: prop.OptionalNamespaces,
		Self:               prop.Proposer,
		Peer:               m.Controller,
		Status:             domain.SessionSettled,
		CreatedAt:          now,
		UpdatedAt:          now,
		ProposalID:         prop.ID,
	}
	if err := e.settle(ctx, s, symKey); err != nil {
		log.WithError(err).Error("settling session failed")
		e.dropProposal(prop, err)
		return
	}
	if err := e.ProposalStore.Delete(prop.ID); err != nil {
		log.WithError(err).Warn("delete settled proposal failed")
	}
	if err := e.Keychain.Delete(prop.Proposer.PublicKey); err != nil {
		log.WithError(err).Debug("delete proposal key failed")
	}
	e.settlements.Resolve(prop.ID, s)

	log.WithField("topic", topic).Info("session settled")
	e.emit(Event{Kind: EventSettled, Topic: topic, Session: s, Proposal: prop})
}

func (e *ProposerEngine) onReject(pairingTopic domain.Topic, m wire.SessionReject) {
	prop, ok, err := e.ProposalStore.Get(m.ProposalID)
	if err != nil || !ok || prop.PairingTopic != pairingTopic {
		e.log.WithField("proposal", m.ProposalID).Debug("dropping reject for unknown proposal")
		return
	}
	e.dropProposal(prop, errs.Rejected(m.Reason))
	e.log.WithField("proposal", prop.ID).WithField("reason", m.Reason).Info("session proposal rejected")
	e.emit(Event{Kind: EventRejected, Proposal: prop, Reason: m.Reason})
}

func (e *ProposerEngine) onProposalTimeout(id string) {
	prop, ok, err := e.ProposalStore.Get(id)
	if err != nil || !ok {
		return
	}
	e.dropProposal(prop, errs.Expired("proposal", id))
}
