package pairing_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/relay"
	"pairlink/internal/services/pairing"
	"pairlink/internal/store"
)

type peer struct {
	eng    *pairing.Engine
	relay  *relay.Memory
	store  *store.MemoryStore[domain.Pairing]
	keys   *store.MemoryKeychain
	events chan pairing.Event
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newPeer(t *testing.T, hub *relay.MemoryHub, opts ...pairing.Option) *peer {
	t.Helper()
	return newPeerWith(t, hub.Client(), store.NewMemoryStore[domain.Pairing](), store.NewMemoryKeychain(), opts...)
}

func newPeerWith(t *testing.T, r *relay.Memory, s *store.MemoryStore[domain.Pairing], k *store.MemoryKeychain, opts ...pairing.Option) *peer {
	t.Helper()
	opts = append([]pairing.Option{pairing.WithLogger(quietLogger())}, opts...)
	p := &peer{
		eng:    pairing.New(crypto.New(), r, s, k, opts...),
		relay:  r,
		store:  s,
		keys:   k,
		events: make(chan pairing.Event, 64),
	}
	p.eng.On(func(ev pairing.Event) {
		select {
		case p.events <- ev:
		default:
		}
	})
	require.NoError(t, p.eng.Init(context.Background()))
	t.Cleanup(p.eng.Destroy)
	return p
}

// waitEvent returns the next event of kind, skipping others.
func (p *peer) waitEvent(t *testing.T, kind pairing.EventKind) pairing.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
			return pairing.Event{}
		}
	}
}

// pair runs a full create/activate/approve handshake between a and b.
func pair(t *testing.T, a, b *peer) domain.Topic {
	t.Helper()
	ctx := context.Background()
	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	_, err = b.eng.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	require.NoError(t, err)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = res.Approval(wctx)
	require.NoError(t, err)
	return res.Topic
}

// fixedClock is a settable clock for expiry tests.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }
