package pairing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/protocol/uri"
	"pairlink/internal/protocol/wire"
	"pairlink/internal/relay"
	"pairlink/internal/services/pairing"
	"pairlink/internal/store"
)

func TestCreateActivate_BothSidesActive(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub, pairing.WithMetadata(domain.Metadata{Name: "dapp"}))
	b := newPeer(t, hub, pairing.WithMetadata(domain.Metadata{Name: "wallet"}))

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.PairingPending, res.Pairing.Status)
	assert.Empty(t, res.Pairing.Peer.PublicKey)

	want, err := crypto.New().Hash(res.Pairing.Self.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, want, res.Topic)

	u, err := uri.Decode(res.URI)
	require.NoError(t, err)
	assert.Equal(t, res.Topic, u.Topic)
	assert.Equal(t, relay.ProtocolMemory, u.Relay.Protocol)

	bp, err := b.eng.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	require.NoError(t, err)
	assert.Equal(t, domain.PairingActive, bp.Status)
	assert.Equal(t, res.Pairing.Self.PublicKey, bp.Peer.PublicKey)
	assert.False(t, bp.Initiator)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ap, err := res.Approval(wctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PairingActive, ap.Status)
	assert.Equal(t, bp.Self.PublicKey, ap.Peer.PublicKey)
	assert.Equal(t, "wallet", ap.Peer.Metadata.Name)
	assert.True(t, ap.Initiator)

	// A second Approval call returns the same outcome.
	again, err := res.Approval(wctx)
	require.NoError(t, err)
	assert.Equal(t, ap, again)

	got, ok, err := a.eng.Get(ctx, res.Topic)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PairingActive, got.Status)
	a.waitEvent(t, pairing.EventApproved)
}

func TestCreate_ApprovalTimeout_RemovesPairing(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub, pairing.WithApprovalTimeout(50*time.Millisecond))

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)

	_, err = res.Approval(ctx)
	require.Error(t, err)
	assert.Equal(t, errs.CodeTimeout, errs.CodeOf(err))

	ev := a.waitEvent(t, pairing.EventDeleted)
	assert.Equal(t, res.Topic, ev.Topic)

	_, ok, err := a.eng.Get(ctx, res.Topic)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = a.keys.Get(res.Topic)
	assert.False(t, ok)
	assert.False(t, a.relay.Subscribed(res.Topic))
}

func TestCreate_ApprovalHonoursContext(t *testing.T) {
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)

	res, err := a.eng.Create(context.Background(), pairing.CreateParams{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = res.Approval(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInit_IsIdempotentAndRestoresSubscriptions(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	// A fresh engine over the same stores picks the pairing up again.
	r := hub.Client()
	restarted := newPeerWith(t, r, a.store, a.keys)
	require.NoError(t, restarted.eng.Init(ctx))
	require.NoError(t, restarted.eng.Init(ctx))
	assert.Equal(t, 1, r.Subscriptions())
	assert.True(t, r.Subscribed(topic))
}

func TestInit_DropsExpiredAndKeylessPairings(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	s := store.NewMemoryStore[domain.Pairing]()
	k := store.NewMemoryKeychain()

	now := time.Now().Unix()
	require.NoError(t, s.Set("old", domain.Pairing{Topic: "old", Status: domain.PairingActive, Expiry: now - 1}))
	require.NoError(t, k.Set("old", "00"))
	require.NoError(t, s.Set("keyless", domain.Pairing{Topic: "keyless", Status: domain.PairingActive, Expiry: now + 3600}))

	r := hub.Client()
	p := newPeerWith(t, r, s, k)
	require.NoError(t, p.eng.Init(ctx))

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, r.Subscriptions())
}

func TestGet_RemovesExpiredPairing(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	clock := &fixedClock{t: time.Now()}
	a := newPeer(t, hub, pairing.WithClock(clock.now), pairing.WithExpiry(time.Hour))

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)

	all, err := a.eng.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	clock.t = clock.t.Add(2 * time.Hour)
	all, err = a.eng.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err := a.eng.Get(ctx, res.Topic)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = a.store.Get(res.Topic)
	assert.False(t, ok)
	assert.Equal(t, "expired", a.waitEvent(t, pairing.EventDeleted).Reason)
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	clock := &fixedClock{t: time.Now()}
	a := newPeer(t, hub, pairing.WithClock(clock.now))

	short, err := a.eng.Create(ctx, pairing.CreateParams{Expiry: time.Minute})
	require.NoError(t, err)
	long, err := a.eng.Create(ctx, pairing.CreateParams{Expiry: time.Hour})
	require.NoError(t, err)

	clock.t = clock.t.Add(10 * time.Minute)
	n, err := a.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := a.store.Get(short.Topic)
	assert.False(t, ok)
	_, ok, _ = a.store.Get(long.Topic)
	assert.True(t, ok)
}

func TestActivate_ExistingTopicFails(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	_, err = b.eng.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	require.NoError(t, err)

	_, err = b.eng.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	assert.Equal(t, errs.CodeAlreadyExists, errs.CodeOf(err))
}

func TestActivate_URIWithoutPublicKey(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a, b := newPeer(t, hub), newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	u, err := uri.Decode(res.URI)
	require.NoError(t, err)
	u.PublicKey = ""
	bare := uri.Encode(u)
	require.NotContains(t, bare, "publicKey")

	bp, err := b.eng.Activate(ctx, pairing.ActivateParams{URI: bare})
	require.NoError(t, err)
	assert.Equal(t, domain.PairingActive, bp.Status)
	assert.Empty(t, bp.Peer.PublicKey)

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ap, err := res.Approval(wctx)
	require.NoError(t, err)
	assert.Equal(t, bp.Self.PublicKey, ap.Peer.PublicKey)

	require.NoError(t, b.eng.Ping(ctx, res.Topic))
	b.waitEvent(t, pairing.EventPong)
}

func TestActivate_RejectsBadURIs(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	u, err := uri.Decode(res.URI)
	require.NoError(t, err)

	kp, err := crypto.New().GenerateKeyPair()
	require.NoError(t, err)
	u.PublicKey = kp.PublicKey
	_, err = b.eng.Activate(ctx, pairing.ActivateParams{URI: uri.Encode(u)})
	assert.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))

	_, err = b.eng.Activate(ctx, pairing.ActivateParams{URI: "wc:abc@1?relay-protocol=memory&symKey=00"})
	assert.Equal(t, errs.CodeUnsupported, errs.CodeOf(err))

	all, err := b.eng.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

// deafRelay accepts subscriptions but cannot publish.
type deafRelay struct{ *relay.Memory }

func (deafRelay) Publish(context.Context, domain.Topic, []byte) error {
	return errors.New("link down")
}

func TestActivate_PublishFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)

	mem := hub.Client()
	keys := store.NewMemoryKeychain()
	s := store.NewMemoryStore[domain.Pairing]()
	eng := pairing.New(crypto.New(), deafRelay{mem}, s, keys, pairing.WithLogger(quietLogger()))
	require.NoError(t, eng.Init(ctx))
	defer eng.Destroy()

	_, err = eng.Activate(ctx, pairing.ActivateParams{URI: res.URI})
	require.Error(t, err)
	assert.Equal(t, errs.CodeTransport, errs.CodeOf(err))

	_, ok, _ := s.Get(res.Topic)
	assert.False(t, ok)
	_, ok, _ = keys.Get(res.Topic)
	assert.False(t, ok)
	assert.False(t, mem.Subscribed(res.Topic))
}

func TestDelete_NotifiesPeer(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	require.NoError(t, a.eng.Delete(ctx, topic, "user disconnected"))
	_, ok, _ := a.store.Get(topic)
	assert.False(t, ok)

	ev := b.waitEvent(t, pairing.EventDeleted)
	assert.Equal(t, topic, ev.Topic)
	assert.Equal(t, "user disconnected", ev.Reason)
	_, ok, _ = b.store.Get(topic)
	assert.False(t, ok)

	err := a.eng.Delete(ctx, topic, "again")
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestReject_FailsApprovalWait(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	require.NoError(t, a.eng.Reject(ctx, res.Topic, "not interested"))

	_, err = res.Approval(ctx)
	assert.Equal(t, errs.CodeRejected, errs.CodeOf(err))
	a.waitEvent(t, pairing.EventRejected)
}

func TestReject_ByResponderRemovesProposerRecord(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	require.NoError(t, b.eng.Reject(ctx, topic, "nope"))
	ev := a.waitEvent(t, pairing.EventRejected)
	assert.Equal(t, "nope", ev.Reason)
	_, ok, _ := a.store.Get(topic)
	assert.False(t, ok)
}

func TestUpdateAndPing(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	require.NoError(t, a.eng.Update(ctx, topic, domain.Metadata{Name: "renamed"}))
	ev := b.waitEvent(t, pairing.EventUpdated)
	assert.Equal(t, "renamed", ev.Pairing.Peer.Metadata.Name)

	require.NoError(t, b.eng.Ping(ctx, topic))
	assert.Equal(t, topic, b.waitEvent(t, pairing.EventPong).Topic)

	err := a.eng.Ping(ctx, "missing")
	assert.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestPing_PendingPairingIsInvalidState(t *testing.T) {
	ctx := context.Background()
	a := newPeer(t, relay.NewMemoryHub())

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	err = a.eng.Ping(ctx, res.Topic)
	assert.Equal(t, errs.CodeInvalidState, errs.CodeOf(err))
}

func TestForward_DeliversSessionHandshake(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	got := make(chan wire.Message, 1)
	b.eng.OnSession(func(_ context.Context, tp domain.Topic, msg wire.Message) {
		if tp == topic {
			got <- msg
		}
	})

	err := a.eng.Forward(ctx, topic, wire.SessionPing{ID: 1})
	assert.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))

	require.NoError(t, a.eng.Forward(ctx, topic, wire.SessionReject{ProposalID: "p1", Reason: "x"}))
	select {
	case msg := <-got:
		assert.Equal(t, wire.SessionReject{ProposalID: "p1", Reason: "x"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake not delivered")
	}
}

func TestApprove_IgnoredWhenAlreadyActive(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)
	b := newPeer(t, hub)
	topic := pair(t, a, b)

	before, ok, err := a.store.Get(topic)
	require.NoError(t, err)
	require.True(t, ok)

	symKey, ok, err := b.keys.Get(topic)
	require.NoError(t, err)
	require.True(t, ok)
	payload, err := wire.Seal(crypto.New(), symKey, wire.PairingApprove{
		Responder: domain.Participant{PublicKey: "ffff"},
		Expiry:    time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	intruder := hub.Client()
	require.NoError(t, intruder.Start(ctx))
	require.NoError(t, intruder.Publish(ctx, topic, payload))

	// A pong round-trip proves the approve was processed before it.
	require.NoError(t, a.eng.Ping(ctx, topic))
	a.waitEvent(t, pairing.EventPong)

	after, _, err := a.store.Get(topic)
	require.NoError(t, err)
	assert.Equal(t, before.Peer, after.Peer)
}

func TestDestroy_FailsWaitsAndOperations(t *testing.T) {
	ctx := context.Background()
	hub := relay.NewMemoryHub()
	a := newPeer(t, hub)

	res, err := a.eng.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)

	a.eng.Destroy()
	_, err = res.Approval(ctx)
	assert.Equal(t, errs.CodeDestroyed, errs.CodeOf(err))

	_, err = a.eng.Create(ctx, pairing.CreateParams{})
	assert.True(t, errors.Is(err, errs.ErrDestroyed))
	assert.True(t, errors.Is(a.eng.Init(ctx), errs.ErrDestroyed))
}
