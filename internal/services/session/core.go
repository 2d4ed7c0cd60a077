package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/pending"
	"pairlink/internal/protocol/wire"
	"pairlink/internal/services/pairing"
)

// Pairings is the part of the pairing engine used to carry the handshake.
type Pairings interface {
	Forward(ctx context.Context, topic domain.Topic, msg wire.Message) error
	OnSession(fn pairing.SessionHandler)
}

// Deps are the collaborators shared by both engine roles.
type Deps struct {
	Crypto        domain.CryptoProvider
	Relay         domain.Relay
	Pairings      Pairings
	ProposalStore domain.ProposalStore
	SessionStore  domain.SessionStore
	Keychain      domain.Keychain
}

var errDisconnected = errs.InvalidState("session disconnected")

// core is everything both roles do once a session is settled.
type core struct {
	Deps
	opts options
	log  *logrus.Entry

	requests    *pending.Registry[json.RawMessage]
	settlements *pending.Registry[domain.Session]

	// mu serialises read-modify-write cycles on the session store.
	mu sync.Mutex

	lifecycle   sync.Mutex
	initialized bool
	destroyed   bool
	stopSweep   context.CancelFunc
	sweepDone   chan struct{}

	hmu      sync.RWMutex
	handlers []func(Event)

	// lastID is the most recently issued request or ping id.
	lastID atomic.Int64
}

func newCore(d Deps, role string, opts []Option) *core {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &core{
		Deps:        d,
		opts:        o,
		log:         o.log.WithFields(logrus.Fields{"component": "session", "role": role}),
		requests:    pending.New[json.RawMessage]("session request"),
		settlements: pending.New[domain.Session]("session settlement"),
	}
	c.lastID.Store(o.now().UnixMilli() * 1000)
	return c
}

// Init connects the relay, restores subscriptions for settled sessions,
// sweeps expired records and starts the periodic cleanup. Calling it again
// is a no-op.
func (c *core) Init(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.destroyed {
		return errs.ErrDestroyed
	}
	if c.initialized {
		return nil
	}
	if !c.Relay.Connected() {
		if err := c.Relay.Start(ctx); err != nil {
			return errs.Transport("start relay", err)
		}
	}

	all, err := c.SessionStore.GetAll()
	if err != nil {
		return err
	}
	now := c.now()
	restored := 0
	for _, s := range all {
		if s.Status != domain.SessionSettled {
			c.forget(ctx, s)
			continue
		}
		if s.Expired(now) {
			continue
		}
		if _, ok, err := c.Keychain.Get(s.Topic); err != nil || !ok {
			c.log.WithField("topic", s.Topic).Warn("dropping session without symmetric key")
			c.forget(ctx, s)
			continue
		}
		if err := c.Relay.Subscribe(ctx, s.Topic, c.onMessage); err != nil {
			return errs.Transport("subscribe session topic", err)
		}
		restored++
	}
	if _, err := c.cleanup(ctx); err != nil {
		c.log.WithError(err).Warn("initial session cleanup failed")
	}

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopSweep = cancel
	c.sweepDone = make(chan struct{})
	go c.sweepLoop(sweepCtx)

	c.initialized = true
	c.log.WithField("restored", restored).Info("session engine initialized")
	return nil
}

// Destroy stops the cleanup timer and fails every outstanding request and
// settlement wait. The relay is left to its owner.
func (c *core) Destroy() {
	c.lifecycle.Lock()
	if c.destroyed {
		c.lifecycle.Unlock()
		return
	}
	c.destroyed = true
	stop, done := c.stopSweep, c.sweepDone
	c.lifecycle.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	c.requests.RejectAll(errs.ErrDestroyed)
	c.settlements.RejectAll(errs.ErrDestroyed)
	c.log.Info("session engine destroyed")
}

// Get returns the session for topic.
func (c *core) Get(topic domain.Topic) (domain.Session, bool, error) {
	return c.SessionStore.Get(topic)
}

// GetAll lists settled, unexpired sessions.
func (c *core) GetAll() ([]domain.Session, error) {
	all, err := c.SessionStore.GetAll()
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := all[:0]
	for _, s := range all {
		if s.Status == domain.SessionSettled && !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Find lists the sessions whose granted namespaces cover required.
func (c *core) Find(required domain.Namespaces) ([]domain.Session, error) {
	all, err := c.GetAll()
	if err != nil {
		return nil, err
	}
	var out []domain.Session
	for _, s := range all {
		if Covers(s.Namespaces, required) {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpdateParams replaces the granted namespaces of a session.
type UpdateParams struct {
	Topic      domain.Topic
	Namespaces domain.Namespaces
}

// Update replaces the namespaces of a session this peer controls. The new
// namespaces must still cover the session's required namespaces.
func (c *core) Update(ctx context.Context, p UpdateParams) (domain.Session, error) {
	if err := c.ready(); err != nil {
		return domain.Session{}, err
	}
	if err := ValidateApproval(nil, p.Namespaces); err != nil {
		return domain.Session{}, err
	}
	s, err := c.mutate(p.Topic, true, func(s *domain.Session) error {
		if err := checkCoverage(s.RequiredNamespaces, p.Namespaces); err != nil {
			return err
		}
		s.Namespaces = p.Namespaces
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	if err := c.send(ctx, s.Topic, wire.SessionUpdate{Namespaces: s.Namespaces}); err != nil {
		return domain.Session{}, err
	}
	c.emit(Event{Kind: EventUpdated, Topic: s.Topic, Session: s})
	return s, nil
}

// ExtendParams pushes a session's expiry out to now+TTL. A zero TTL uses the
// engine's session expiry.
type ExtendParams struct {
	Topic domain.Topic
	TTL   time.Duration
}

// Extend renews a session this peer controls. The expiry never moves backwards.
func (c *core) Extend(ctx context.Context, p ExtendParams) (domain.Session, error) {
	if err := c.ready(); err != nil {
		return domain.Session{}, err
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = c.opts.expiry
	}
	s, err := c.mutate(p.Topic, true, func(s *domain.Session) error {
		expiry := c.now() + int64(ttl/time.Second)
		if expiry < s.Expiry {
			return errs.InvalidArg("extend would shorten the session")
		}
		s.Expiry = expiry
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	if err := c.send(ctx, s.Topic, wire.SessionExtend{Expiry: s.Expiry}); err != nil {
		return domain.Session{}, err
	}
	c.emit(Event{Kind: EventExtended, Topic: s.Topic, Session: s})
	return s, nil
}

// Disconnect ends a session. The peer is notified best-effort; local state is
// always removed and pending requests on the topic fail.
func (c *core) Disconnect(ctx context.Context, topic domain.Topic, reason string) error {
	if err := c.ready(); err != nil {
		return err
	}
	s, ok, err := c.SessionStore.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("session", topic)
	}
	if err := c.send(ctx, topic, wire.SessionDelete{Reason: reason}); err != nil {
		c.log.WithError(err).WithField("topic", topic).Debug("session delete not delivered")
	}
	c.terminate(ctx, s, reason)
	return nil
}

// Ping sends a ping on a settled session. The answer arrives as an EventPong.
func (c *core) Ping(ctx context.Context, topic domain.Topic) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.settled(topic); err != nil {
		return err
	}
	return c.send(ctx, topic, wire.SessionPing{ID: c.nextID()})
}

// RequestParams is an application call on a settled session.
type RequestParams struct {
	Topic   domain.Topic
	ChainID string
	Method  string
	Params  json.RawMessage
}

// Request sends an application call to the peer and waits for its response.
// The method must be granted by the session; so must the chain, when given.
func (c *core) Request(ctx context.Context, p RequestParams) (json.RawMessage, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	s, err := c.settled(p.Topic)
	if err != nil {
		return nil, err
	}
	if !s.Namespaces.HasMethod(p.Method) {
		return nil, errs.Validation(errs.ReasonInvalidMethod, p.Method, "method %q not granted by session", p.Method)
	}
	if p.ChainID != "" && !s.Namespaces.HasChain(p.ChainID) {
		return nil, errs.Validation(errs.ReasonInvalidChain, p.ChainID, "chain %q not granted by session", p.ChainID)
	}

	id := c.nextID()
	key := requestKey(p.Topic, id)
	ch, err := c.requests.Register(key, c.opts.requestTimeout)
	if err != nil {
		return nil, err
	}
	req := wire.SessionRequest{ID: id, ChainID: p.ChainID, Request: wire.RPCRequest{Method: p.Method, Params: p.Params}}
	if err := c.send(ctx, p.Topic, req); err != nil {
		c.requests.Reject(key, err)
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"topic": p.Topic, "id": id, "rpc": p.Method}).Debug("request sent")

	res, err := pending.Wait(ctx, ch)
	if ctx.Err() != nil {
		c.requests.Reject(key, ctx.Err())
	}
	return res, err
}

// RespondParams answers a request received as an EventRequest. Exactly one
// of Result and Error should be set.
type RespondParams struct {
	Topic  domain.Topic
	ID     int64
	Result json.RawMessage
	Error  *wire.RPCError
}

// Respond publishes a response. No record of serviced requests is kept.
func (c *core) Respond(ctx context.Context, p RespondParams) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, err := c.settled(p.Topic); err != nil {
		return err
	}
	return c.send(ctx, p.Topic, wire.SessionResponse{ID: p.ID, Result: p.Result, Error: p.Error})
}

// EmitParams is an application event published on a session.
type EmitParams struct {
	Topic   domain.Topic
	ChainID string
	Name    string
	Data    json.RawMessage
}

// Emit publishes an event the session grants.
func (c *core) Emit(ctx context.Context, p EmitParams) error {
	if err := c.ready(); err != nil {
		return err
	}
	s, err := c.settled(p.Topic)
	if err != nil {
		return err
	}
	if !s.Namespaces.HasEvent(p.Name) {
		return errs.Validation(errs.ReasonInvalidEvent, p.Name, "event %q not granted by session", p.Name)
	}
	if p.ChainID != "" && !s.Namespaces.HasChain(p.ChainID) {
		return errs.Validation(errs.ReasonInvalidChain, p.ChainID, "chain %q not granted by session", p.ChainID)
	}
	return c.send(ctx, p.Topic, wire.SessionEvent{ChainID: p.ChainID, Event: wire.Event{Name: p.Name, Data: p.Data}})
}

// Cleanup disconnects expired sessions and drops expired proposals. It
// reports how many records it removed.
func (c *core) Cleanup(ctx context.Context) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.cleanup(ctx)
}

func (c *core) cleanup(ctx context.Context) (int, error) {
	now := c.now()
	n := 0

	sessions, err := c.SessionStore.GetAll()
	if err != nil {
		return 0, err
	}
	for _, s := range sessions {
		if !s.Expired(now) {
			continue
		}
		if s.Status == domain.SessionSettled {
			if err := c.send(ctx, s.Topic, wire.SessionDelete{Reason: "expired"}); err != nil {
				c.log.WithError(err).WithField("topic", s.Topic).Debug("expiry notice not delivered")
			}
		}
		c.terminate(ctx, s, "expired")
		n++
	}

	proposals, err := c.ProposalStore.GetAll()
	if err != nil {
		return n, err
	}
	for _, p := range proposals {
		if p.Expired(now) {
			c.dropProposal(p, errs.Expired("proposal", p.ID))
			n++
		}
	}
	return n, nil
}

func (c *core) sweepLoop(ctx context.Context) {
	defer close(c.sweepDone)
	t := time.NewTicker(c.opts.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := c.cleanup(ctx); err != nil {
				c.log.WithError(err).Warn("session cleanup failed")
			} else if n > 0 {
				c.log.WithField("removed", n).Debug("expired session records swept")
			}
		}
	}
}

func (c *core) ready() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.destroyed {
		return errs.ErrDestroyed
	}
	if !c.initialized {
		return errs.InvalidState("session engine not initialized")
	}
	return nil
}

func (c *core) now() int64 { return c.opts.now().Unix() }

// settled loads topic and checks it is a live session.
func (c *core) settled(topic domain.Topic) (domain.Session, error) {
	s, ok, err := c.SessionStore.Get(topic)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, errs.NotFound("session", topic)
	}
	if s.Status != domain.SessionSettled {
		return domain.Session{}, errs.InvalidState("session %q is %s", topic, s.Status)
	}
	if s.Expired(c.now()) {
		return domain.Session{}, errs.Expired("session", topic)
	}
	return s, nil
}

// mutate applies fn to a settled session under the store lock and persists
// the result. With controllerOnly, only the session controller may mutate.
func (c *core) mutate(topic domain.Topic, controllerOnly bool, fn func(*domain.Session) error) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.settled(topic)
	if err != nil {
		return domain.Session{}, err
	}
	if controllerOnly && s.Controller != s.Self.PublicKey {
		return domain.Session{}, errs.InvalidState("only the session controller may change session %q", topic)
	}
	if err := fn(&s); err != nil {
		return domain.Session{}, err
	}
	s.UpdatedAt = c.now()
	if err := c.SessionStore.Set(topic, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// settle persists s, stores its key and subscribes its topic. On failure
// nothing is left behind.
func (c *core) settle(ctx context.Context, s domain.Session, symKey string) error {
	if err := c.Keychain.Set(s.Topic, symKey); err != nil {
		return err
	}
	if err := c.SessionStore.Set(s.Topic, s); err != nil {
		c.forget(ctx, s)
		return err
	}
	if err := c.Relay.Subscribe(ctx, s.Topic, c.onMessage); err != nil {
		c.forget(ctx, s)
		return errs.Transport("subscribe session topic", err)
	}
	return nil
}

// terminate marks s disconnected, removes it and emits EventDeleted.
func (c *core) terminate(ctx context.Context, s domain.Session, reason string) {
	c.mu.Lock()
	s.Status = domain.SessionDisconnected
	s.UpdatedAt = c.now()
	if err := c.SessionStore.Set(s.Topic, s); err != nil {
		c.log.WithError(err).WithField("topic", s.Topic).Debug("mark session disconnected failed")
	}
	c.mu.Unlock()

	c.forget(ctx, s)
	c.requests.RejectMatching(func(id string) bool {
		return strings.HasPrefix(id, s.Topic+"#")
	}, errDisconnected)
	c.log.WithFields(logrus.Fields{"topic": s.Topic, "reason": reason}).Info("session deleted")
	c.emit(Event{Kind: EventDeleted, Topic: s.Topic, Session: s, Reason: reason})
}

func (c *core) forget(ctx context.Context, s domain.Session) {
	log := c.log.WithField("topic", s.Topic)
	if err := c.Relay.Unsubscribe(ctx, s.Topic); err != nil {
		log.WithError(err).Debug("unsubscribe failed")
	}
	if err := c.SessionStore.Delete(s.Topic); err != nil {
		log.WithError(err).Warn("delete session record failed")
	}
	if err := c.Keychain.Delete(s.Topic); err != nil {
		log.WithError(err).Debug("delete session key failed")
	}
}

// dropProposal removes a proposal and its private key and fails its settlement wait.
func (c *core) dropProposal(p domain.Proposal, cause error) {
	log := c.log.WithField("proposal", p.ID)
	if err := c.ProposalStore.Delete(p.ID); err != nil {
		log.WithError(err).Warn("delete proposal failed")
	}
	if err := c.Keychain.Delete(p.Proposer.PublicKey); err != nil {
		log.WithError(err).Debug("delete proposal key failed")
	}
	c.settlements.Reject(p.ID, cause)
}

func (c *core) send(ctx context.Context, topic domain.Topic, msg wire.Message) error {
	symKey, ok, err := c.Keychain.Get(topic)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNoSymKey
	}
	payload, err := wire.Seal(c.Crypto, symKey, msg)
	if err != nil {
		return err
	}
	if err := c.Relay.Publish(ctx, topic, payload); err != nil {
		var ae *errs.AppError
		if errors.As(err, &ae) {
			return err
		}
		return errs.Transport("publish "+string(msg.Method()), err)
	}
	return nil
}

// deriveTopic runs the ECDH exchange and returns the session key and topic.
func (c *core) deriveTopic(privateKey, peerPublicKey string) (symKey string, topic domain.Topic, err error) {
	symKey, err = c.Crypto.GenerateSharedKey(privateKey, peerPublicKey)
	if err != nil {
		return "", "", err
	}
	topic, err = c.Crypto.Hash(symKey)
	if err != nil {
		return "", "", err
	}
	return symKey, topic, nil
}

func requestKey(topic domain.Topic, id int64) string {
	return topic + "#" + strconv.FormatInt(id, 10)
}

// nextID issues ids unique for the engine's lifetime, counting up from the
// engine's creation time in milliseconds times 1000.
func (c *core) nextID() int64 {
	return c.lastID.Add(1)
}
