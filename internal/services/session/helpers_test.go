package session_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/relay"
	"pairlink/internal/services/pairing"
	"pairlink/internal/services/session"
	"pairlink/internal/store"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Now()} }

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// side is one peer's stores, relay client and engines.
type side struct {
	relay     *relay.Memory
	keys      *store.MemoryKeychain
	proposals *store.MemoryStore[domain.Proposal]
	sessions  *store.MemoryStore[domain.Session]
	pairing   *pairing.Engine
	events    chan session.Event
}

func newSide(t *testing.T, hub *relay.MemoryHub) *side {
	t.Helper()
	s := &side{
		relay:     hub.Client(),
		keys:      store.NewMemoryKeychain(),
		proposals: store.NewMemoryStore[domain.Proposal](),
		sessions:  store.NewMemoryStore[domain.Session](),
		events:    make(chan session.Event, 64),
	}
	s.pairing = pairing.New(crypto.New(), s.relay, store.NewMemoryStore[domain.Pairing](), s.keys,
		pairing.WithLogger(quietLogger()))
	require.NoError(t, s.pairing.Init(context.Background()))
	t.Cleanup(s.pairing.Destroy)
	return s
}

func (s *side) deps() session.Deps {
	return session.Deps{
		Crypto:        crypto.New(),
		Relay:         s.relay,
		Pairings:      s.pairing,
		ProposalStore: s.proposals,
		SessionStore:  s.sessions,
		Keychain:      s.keys,
	}
}

func (s *side) record(ev session.Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// waitEvent returns the next event of kind, skipping others.
func (s *side) waitEvent(t *testing.T, kind session.EventKind) session.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return session.Event{}
		}
	}
}

type fixture struct {
	hub          *relay.MemoryHub
	a, b         *side
	proposer     *session.ProposerEngine
	responder    *session.ResponderEngine
	pairingTopic domain.Topic
}

// newFixture pairs a proposer side a with a responder side b.
func newFixture(t *testing.T, opts ...session.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	f := &fixture{hub: hub, a: newSide(t, hub), b: newSide(t, hub)}

	opts = append([]session.Option{session.WithLogger(quietLogger())}, opts...)
	f.proposer = session.NewProposer(f.a.deps(), opts...)
	f.responder = session.NewResponder(f.b.deps(), opts...)
	f.proposer.On(f.a.record)
	f.responder.On(f.b.record)
	require.NoError(t, f.proposer.Init(ctx))
	require.NoError(t, f.responder.Init(ctx))
	t.Cleanup(f.proposer.Destroy)
	t.Cleanup(f.responder.Destroy)

	res, err := f.a.pairing.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	_, err = f.b.pairing.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	require.NoError(t, err)
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = res.Approval(wctx)
	require.NoError(t, err)
	f.pairingTopic = res.Topic
	return f
}

func ethRequired() domain.Namespaces {
	return domain.Namespaces{"eip155": {
		Chains:  []string{"eip155:1"},
		Methods: []string{"eth_sign"},
		Events:  []string{},
	}}
}

func ethGranted() domain.Namespaces {
	return domain.Namespaces{"eip155": {
		Chains:   []string{"eip155:1"},
		Methods:  []string{"eth_sign"},
		Events:   []string{"accountsChanged"},
		Accounts: []string{"eip155:1:0xabc"},
	}}
}

// propose sends a proposal from a and waits for b to receive it.
func (f *fixture) propose(t *testing.T, required domain.Namespaces) (*session.ProposeResult, domain.Proposal) {
	t.Helper()
	res, err := f.proposer.Propose(context.Background(), session.ProposeParams{
		PairingTopic:       f.pairingTopic,
		RequiredNamespaces: required,
	})
	require.NoError(t, err)
	ev := f.b.waitEvent(t, session.EventProposal)
	require.Equal(t, res.ID, ev.Proposal.ID)
	return res, ev.Proposal
}

// settle runs a full propose/approve handshake and returns both views of the session.
func (f *fixture) settle(t *testing.T) (proposerView, responderView domain.Session) {
	t.Helper()
	ctx := context.Background()
	res, prop := f.propose(t, ethRequired())
	responderView, err := f.responder.Approve(ctx, session.ApproveParams{ProposalID: prop.ID, Namespaces: ethGranted()})
	require.NoError(t, err)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	proposerView, err = res.Settlement(wctx)
	require.NoError(t, err)
	return proposerView, responderView
}
