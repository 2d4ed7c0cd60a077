package pairing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/pending"
	"pairlink/internal/protocol/wire"
)

// Engine runs the pairing protocol for one local peer.
type Engine struct {
	crypto   domain.CryptoProvider
	relay    domain.Relay
	store    domain.PairingStore
	keychain domain.Keychain
	opts     options
	log      *logrus.Entry

	approvals *pending.Registry[domain.Pairing]

	// mu serialises read-modify-write cycles on the pairing store.
	mu sync.Mutex

	lifecycle   sync.Mutex
	initialized bool
	destroyed   bool
	stopSweep   context.CancelFunc
	sweepDone   chan struct{}

	hmu             sync.RWMutex
	handlers        []func(Event)
	sessionHandlers []SessionHandler
}

// New builds an Engine. Call Init before using it.
func New(c domain.CryptoProvider, r domain.Relay, s domain.PairingStore, k domain.Keychain, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		crypto:    c,
		relay:     r,
		store:     s,
		keychain:  k,
		opts:      o,
		log:       o.log.WithField("component", "pairing"),
		approvals: pending.New[domain.Pairing]("pairing approval"),
	}
	e.approvals.OnTimeout(e.onApprovalTimeout)
	return e
}

// Init connects the relay, restores persisted pairings and starts the
// expiry sweeper. Calling it again is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.destroyed {
		return errs.ErrDestroyed
	}
	if e.initialized {
		return nil
	}
	if err := e.ensureRelay(ctx); err != nil {
		return err
	}

	all, err := e.store.GetAll()
	if err != nil {
		return err
	}
	now := e.now()
	restored := 0
	for _, p := range all {
		if p.Expired(now) {
			e.expire(ctx, p)
			continue
		}
		if _, ok, err := e.keychain.Get(p.Topic); err != nil || !ok {
			e.log.WithField("topic", p.Topic).Warn("dropping pairing without symmetric key")
			e.forget(ctx, p, errs.ErrNoSymKey)
			continue
		}
		if err := e.relay.Subscribe(ctx, p.Topic, e.onMessage); err != nil {
			return errs.Transport("subscribe pairing topic", err)
		}
		restored++
	}

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.stopSweep = cancel
	e.sweepDone = make(chan struct{})
	go e.sweepLoop(sweepCtx)

	e.initialized = true
	e.log.WithField("restored", restored).Info("pairing engine initialized")
	return nil
}

// Destroy stops the sweeper and fails every outstanding approval wait.
// It leaves the relay connected; the caller owns it.
func (e *Engine) Destroy() {
	e.lifecycle.Lock()
	if e.destroyed {
		e.lifecycle.Unlock()
		return
	}
	e.destroyed = true
	stop, done := e.stopSweep, e.sweepDone
	e.lifecycle.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	e.approvals.RejectAll(errs.ErrDestroyed)
	e.log.Info("pairing engine destroyed")
}

// Get returns the pairing for topic. An expired pairing is removed and
// reported as absent.
func (e *Engine) Get(ctx context.Context, topic domain.Topic) (domain.Pairing, bool, error) {
	p, ok, err := e.store.Get(topic)
	if err != nil || !ok {
		return domain.Pairing{}, false, err
	}
	if p.Expired(e.now()) {
		e.expire(ctx, p)
		return domain.Pairing{}, false, nil
	}
	return p, true, nil
}

// GetAll lists the unexpired pairings.
func (e *Engine) GetAll() ([]domain.Pairing, error) {
	all, err := e.store.GetAll()
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

// Sweep removes every expired pairing and reports how many it removed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	all, err := e.store.GetAll()
	if err != nil {
		return 0, err
	}
	now := e.now()
	n := 0
	for _, p := range all {
		if p.Expired(now) {
			e.expire(ctx, p)
			n++
		}
	}
	return n, nil
}

func (e *Engine) sweepLoop(ctx context.Context) {
	defer close(e.sweepDone)
	t := time.NewTicker(e.opts.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := e.Sweep(ctx); err != nil {
				e.log.WithError(err).Warn("pairing sweep failed")
			} else if n > 0 {
				e.log.WithField("removed", n).Debug("expired pairings swept")
			}
		}
	}
}

func (e *Engine) ready() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.destroyed {
		return errs.ErrDestroyed
	}
	if !e.initialized {
		return errs.InvalidState("pairing engine not initialized")
	}
	return nil
}

func (e *Engine) ensureRelay(ctx context.Context) error {
	if e.relay.Connected() {
		return nil
	}
	if err := e.relay.Start(ctx); err != nil {
		return errs.Transport("start relay", err)
	}
	return nil
}

func (e *Engine) now() int64 { return e.opts.now().Unix() }

// active loads topic and checks it is usable for outbound traffic.
func (e *Engine) active(topic domain.Topic) (domain.Pairing, error) {
	p, ok, err := e.store.Get(topic)
	if err != nil {
		return domain.Pairing{}, err
	}
	if !ok {
		return domain.Pairing{}, errs.NotFound("pairing", topic)
	}
	if p.Expired(e.now()) {
		return domain.Pairing{}, errs.Expired("pairing", topic)
	}
	if p.Status != domain.PairingActive {
		return domain.Pairing{}, errs.InvalidState("pairing %q is %s", topic, p.Status)
	}
	return p, nil
}

// send seals msg with the topic's symmetric key and publishes it.
func (e *Engine) send(ctx context.Context, topic domain.Topic, msg wire.Message) error {
	symKey, ok, err := e.keychain.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNoSymKey
	}
	payload, err := wire.Seal(e.crypto, symKey, msg)
	if err != nil {
		return err
	}
	if err := e.relay.Publish(ctx, topic, payload); err != nil {
		var ae *errs.AppError
		if errors.As(err, &ae) {
			return err
		}
		return errs.Transport("publish "+string(msg.Method()), err)
	}
	return nil
}

// forget drops every local trace of p and fails its approval wait with cause.
func (e *Engine) forget(ctx context.Context, p domain.Pairing, cause error) {
	log := e.log.WithField("topic", p.Topic)
	if err := e.relay.Unsubscribe(ctx, p.Topic); err != nil {
		log.WithError(err).Debug("unsubscribe failed")
	}
	if err := e.store.Delete(p.Topic); err != nil {
		log.WithError(err).Warn("delete pairing record failed")
	}
	if err := e.keychain.Delete(p.Topic); err != nil {
		log.WithError(err).Debug("delete pairing symkey failed")
	}
	if p.Self.PublicKey != "" {
		if err := e.keychain.Delete(p.Self.PublicKey); err != nil {
			log.WithError(err).Debug("delete pairing private key failed")
		}
	}
	e.approvals.Reject(p.Topic, cause)
}

func (e *Engine) expire(ctx context.Context, p domain.Pairing) {
	e.forget(ctx, p, errs.Expired("pairing", p.Topic))
	e.emit(Event{Kind: EventDeleted, Topic: p.Topic, Pairing: p, Reason: "expired"})
}

func (e *Engine) onApprovalTimeout(topic string) {
	e.mu.Lock()
	p, ok, err := e.store.Get(topic)
	e.mu.Unlock()
	if err != nil || !ok || p.Status != domain.PairingPending {
		return
	}
	e.log.WithField("topic", topic).Info("pairing approval timed out")
	e.forget(context.Background(), p, errs.Timeout("pairing approval"))
	e.emit(Event{Kind: EventDeleted, Topic: topic, Pairing: p, Reason: "approval timed out"})
}

func logFields(topic domain.Topic, msg wire.Message) logrus.Fields {
	return logrus.Fields{"topic": topic, "method": msg.Method()}
}
