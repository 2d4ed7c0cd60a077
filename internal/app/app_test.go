package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/app"
	"pairlink/internal/domain"
	"pairlink/internal/relay"
	"pairlink/internal/services/pairing"
	"pairlink/internal/services/session"
	"pairlink/internal/store"
)

func testConfig(t *testing.T, name string) *app.Config {
	t.Helper()
	v, err := app.LoadConfig("")
	require.NoError(t, err)
	cfg, err := app.ParseConfig(v)
	require.NoError(t, err)
	cfg.Home = t.TempDir()
	cfg.Relay = relay.ProtocolMemory
	cfg.LogLevel = "error"
	cfg.Metadata = domain.Metadata{Name: name}
	return cfg
}

func newApp(t *testing.T, hub *relay.MemoryHub, name string, role app.Role) *app.App {
	t.Helper()
	w, err := app.NewWire(testConfig(t, name), app.WithRelay(hub.Client()), app.WithKeychain(store.NewMemoryKeychain()))
	require.NoError(t, err)
	a, err := app.New(context.Background(), w, role)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewWire_RequiresPassphraseAndKnownRelay(t *testing.T) {
	cfg := testConfig(t, "x")
	_, err := app.NewWire(cfg)
	assert.Error(t, err)

	cfg.Passphrase = "pw"
	_, err = app.NewWire(cfg)
	assert.Error(t, err, "memory relay cannot be built from config")

	cfg.Relay = "carrier-pigeon"
	_, err = app.NewWire(cfg)
	assert.Error(t, err)

	cfg.Relay = relay.ProtocolHTTP
	w, err := app.NewWire(cfg)
	require.NoError(t, err)
	assert.Equal(t, relay.ProtocolHTTP, w.Relay.Protocol().Protocol)
}

func TestApp_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub := relay.NewMemoryHub()
	dapp := newApp(t, hub, "dapp", app.RoleProposer)
	wallet := newApp(t, hub, "wallet", app.RoleResponder)

	proposals := make(chan domain.Proposal, 1)
	requests := make(chan session.Event, 1)
	wallet.Responder.On(func(ev session.Event) {
		switch ev.Kind {
		case session.EventProposal:
			proposals <- ev.Proposal
		case session.EventRequest:
			requests <- ev
		}
	})

	created, err := dapp.Pairing.Create(ctx, pairing.CreateParams{})
	require.NoError(t, err)
	_, err = wallet.Pairing.Activate(ctx, pairing.ActivateParams{URI: created.URI})
	require.NoError(t, err)
	p, err := created.Approval(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wallet", p.Peer.Metadata.Name)

	proposed, err := dapp.Proposer.Propose(ctx, session.ProposeParams{
		PairingTopic:       created.Topic,
		RequiredNamespaces: domain.Namespaces{"eip155": {Chains: []string{"eip155:1"}, Methods: []string{"eth_sign"}}},
	})
	require.NoError(t, err)

	prop := <-proposals
	_, err = wallet.Responder.Approve(ctx, session.ApproveParams{
		ProposalID: prop.ID,
		Namespaces: domain.Namespaces{"eip155": {
			Chains:   []string{"eip155:1"},
			Methods:  []string{"eth_sign"},
			Accounts: []string{"eip155:1:0xabc"},
		}},
	})
	require.NoError(t, err)
	s, err := proposed.Settlement(ctx)
	require.NoError(t, err)

	go func() {
		ev := <-requests
		_ = wallet.Responder.Respond(ctx, session.RespondParams{Topic: ev.Topic, ID: ev.Request.ID, Result: json.RawMessage(`"0xsig"`)})
	}()
	res, err := dapp.Proposer.Request(ctx, session.RequestParams{Topic: s.Topic, ChainID: "eip155:1", Method: "eth_sign"})
	require.NoError(t, err)
	assert.JSONEq(t, `"0xsig"`, string(res))

	// Session records are persisted in the home directory.
	stored, ok, err := dapp.Sessions.Get(s.Topic)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SessionSettled, stored.Status)
}
