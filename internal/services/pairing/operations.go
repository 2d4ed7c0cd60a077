package pairing

import (
	"context"
	"sync"
	"time"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/pending"
	"pairlink/internal/protocol/uri"
	"pairlink/internal/protocol/wire"
)

// CreateParams customises Create. The zero value uses the engine defaults.
type CreateParams struct {
	Metadata *domain.Metadata
	Expiry   time.Duration
}

// CreateResult is returned by Create.
type CreateResult struct {
	Topic   domain.Topic
	URI     string
	Pairing domain.Pairing

	ch   <-chan pending.Result[domain.Pairing]
	once sync.Once
	res  pending.Result[domain.Pairing]
	got  chan struct{}
}

// Approval blocks until the responder approves the pairing, it is rejected,
// the approval timeout elapses or ctx is done. It may be called repeatedly.
func (r *CreateResult) Approval(ctx context.Context) (domain.Pairing, error) {
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
		return domain.Pairing{}, ctx.Err()
	}
}

// Create starts a new pairing as proposer. The returned URI is handed to the
// responder out-of-band; the pairing stays PENDING until it approves.
func (e *Engine) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureRelay(ctx); err != nil {
		return nil, err
	}

	kp, err := e.crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	symKey, err := e.crypto.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}
	topic, err := e.crypto.Hash(kp.PublicKey)
	if err != nil {
		return nil, err
	}

	md := e.opts.metadata
	if params.Metadata != nil {
		md = *params.Metadata
	}
	ttl := e.opts.expiry
	if params.Expiry > 0 {
		ttl = params.Expiry
	}
	now := e.now()
	p := domain.Pairing{
		Topic:     topic,
		Relay:     e.relay.Protocol(),
		Self:      domain.Participant{PublicKey: kp.PublicKey, Metadata: md},
		Status:    domain.PairingPending,
		Expiry:    now + int64(ttl/time.Second),
		CreatedAt: now,
		UpdatedAt: now,
		Initiator: true,
	}

	if err := e.keychain.Set(kp.PublicKey, kp.PrivateKey); err != nil {
		return nil, err
	}
	if err := e.keychain.Set(topic, symKey); err != nil {
		e.forget(ctx, p, err)
		return nil, err
	}
	if err := e.store.Set(topic, p); err != nil {
		e.forget(ctx, p, err)
		return nil, err
	}
	// Register before subscribing so an early approve always finds its waiter.
	ch, err := e.approvals.Register(topic, e.opts.approvalTimeout)
	if err != nil {
		e.forget(ctx, p, err)
		return nil, err
	}
	if err := e.relay.Subscribe(ctx, topic, e.onMessage); err != nil {
		err = errs.Transport("subscribe pairing topic", err)
		e.forget(ctx, p, err)
		return nil, err
	}

	link := uri.Encode(uri.Params{
		Topic:     topic,
		SymKey:    symKey,
		Relay:     p.Relay,
		PublicKey: kp.PublicKey,
	})
	e.log.WithField("topic", topic).Info("pairing created")
	e.emit(Event{Kind: EventCreated, Topic: topic, Pairing: p})
	return &CreateResult{Topic: topic, URI: link, Pairing: p, ch: ch, got: make(chan struct{})}, nil
}

// ActivateParams configures Activate.
type ActivateParams struct {
	URI      string
	Metadata *domain.Metadata
}

// Activate joins the pairing described by a URI as responder and sends the
// approve message. The pairing is ACTIVE on return. If anything fails after
// the record is persisted, the record is removed again.
func (e *Engine) Activate(ctx context.Context, params ActivateParams) (domain.Pairing, error) {
	if err := e.ready(); err != nil {
		return domain.Pairing{}, err
	}
	u, err := uri.Decode(params.URI)
	if err != nil {
		return domain.Pairing{}, err
	}
	if u.PublicKey != "" {
		h, err := e.crypto.Hash(u.PublicKey)
		if err != nil {
			return domain.Pairing{}, errs.Wrap(errs.CodeInvalidArgument, "pairing uri: bad public key", err)
		}
		if h != u.Topic {
			return domain.Pairing{}, errs.InvalidArg("pairing uri: public key does not match topic")
		}
	}
	if _, ok, err := e.store.Get(u.Topic); err != nil {
		return domain.Pairing{}, err
	} else if ok {
		return domain.Pairing{}, errs.Newf(errs.CodeAlreadyExists, "pairing %q already exists", u.Topic)
	}
	if err := e.ensureRelay(ctx); err != nil {
		return domain.Pairing{}, err
	}

	kp, err := e.crypto.GenerateKeyPair()
	if err != nil {
		return domain.Pairing{}, err
	}
	md := e.opts.metadata
	if params.Metadata != nil {
		md = *params.Metadata
	}
	now := e.now()
	// Peer.PublicKey stays empty when the URI omits publicKey; nothing later
	// in the pairing flow carries the initiator's key.
	p := domain.Pairing{
		Topic:     u.Topic,
		Relay:     u.Relay,
		Self:      domain.Participant{PublicKey: kp.PublicKey, Metadata: md},
		Peer:      domain.Participant{PublicKey: u.PublicKey},
		Status:    domain.PairingActive,
		Expiry:    now + int64(e.opts.expiry/time.Second),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.keychain.Set(u.Topic, u.SymKey); err != nil {
		return domain.Pairing{}, err
	}
	if err := e.keychain.Set(kp.PublicKey, kp.PrivateKey); err != nil {
		e.forget(ctx, p, err)
		return domain.Pairing{}, err
	}
	if err := e.store.Set(p.Topic, p); err != nil {
		e.forget(ctx, p, err)
		return domain.Pairing{}, err
	}

	err = e.relay.Subscribe(ctx, p.Topic, e.onMessage)
	if err != nil {
		err = errs.Transport("subscribe pairing topic", err)
	} else {
		err = e.send(ctx, p.Topic, wire.PairingApprove{Relay: p.Relay, Responder: p.Self, Expiry: p.Expiry})
	}
	if err != nil {
		e.log.WithError(err).WithField("topic", p.Topic).Warn("pairing activation failed")
		e.forget(ctx, p, err)
		return domain.Pairing{}, err
	}

	e.log.WithField("topic", p.Topic).Info("pairing activated")
	e.emit(Event{Kind: EventActivated, Topic: p.Topic, Pairing: p})
	return p, nil
}

// Reject declines a pairing: the peer is notified best-effort and the local
// record is removed.
func (e *Engine) Reject(ctx context.Context, topic domain.Topic, reason string) error {
	return e.terminate(ctx, topic, wire.PairingReject{Reason: reason}, EventRejected, reason)
}

// Delete tears down a pairing: the peer is notified best-effort and the
// local record is removed.
func (e *Engine) Delete(ctx context.Context, topic domain.Topic, reason string) error {
	return e.terminate(ctx, topic, wire.PairingDelete{Reason: reason}, EventDeleted, reason)
}

func (e *Engine) terminate(ctx context.Context, topic domain.Topic, notice wire.Message, kind EventKind, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok, err := e.store.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("pairing", topic)
	}
	if err := e.send(ctx, topic, notice); err != nil {
		e.log.WithError(err).WithFields(logFields(topic, notice)).Debug("pairing notice not delivered")
	}
	e.forget(ctx, p, errs.New(errs.CodeRejected, "pairing "+string(kind)+" locally"))
	e.log.WithField("topic", topic).WithField("reason", reason).Info("pairing " + string(kind))
	e.emit(Event{Kind: kind, Topic: topic, Pairing: p, Reason: reason})
	return nil
}

// Update replaces the local metadata of an active pairing and sends it to the peer.
func (e *Engine) Update(ctx context.Context, topic domain.Topic, md domain.Metadata) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	p, err := e.active(topic)
	if err == nil {
		p.Self.Metadata = md
		p.UpdatedAt = e.now()
		err = e.store.Set(topic, p)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if err := e.send(ctx, topic, wire.PairingUpdate{Metadata: md}); err != nil {
		return err
	}
	e.emit(Event{Kind: EventUpdated, Topic: topic, Pairing: p})
	return nil
}

// Ping sends a ping on an active pairing. The answer arrives as an EventPong.
func (e *Engine) Ping(ctx context.Context, topic domain.Topic) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.active(topic); err != nil {
		return err
	}
	return e.send(ctx, topic, wire.PairingPing{})
}

// Forward sends a session handshake message over an active pairing.
func (e *Engine) Forward(ctx context.Context, topic domain.Topic, msg wire.Message) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !wire.IsSessionHandshake(msg) {
		return errs.Newf(errs.CodeInvalidArgument, "%s cannot be forwarded over a pairing", msg.Method())
	}
	if _, err := e.active(topic); err != nil {
		return err
	}
	return e.send(ctx, topic, msg)
}
