package app

import (
	"context"

	"pairlink/internal/services/pairing"
	"pairlink/internal/services/session"
)

// Role selects which session engine an App runs.
type Role int

const (
	// RolePairingOnly runs the pairing engine alone.
	RolePairingOnly Role = iota
	RoleProposer
	RoleResponder
)

// App is an initialized pairing engine plus at most one session engine.
type App struct {
	*Wire
	Pairing   *pairing.Engine
	Proposer  *session.ProposerEngine
	Responder *session.ResponderEngine
}

// New builds the engines for role over w and initializes them.
func New(ctx context.Context, w *Wire, role Role) (*App, error) {
	cfg := w.Config
	a := &App{Wire: w}
	a.Pairing = pairing.New(w.Crypto, w.Relay, w.Pairings, w.Keychain,
		pairing.WithLogger(w.Log),
		pairing.WithApprovalTimeout(cfg.ApprovalTimeout),
		pairing.WithExpiry(cfg.PairingExpiry),
		pairing.WithSweepInterval(cfg.SweepInterval),
		pairing.WithMetadata(cfg.Metadata),
	)

	deps := session.Deps{
		Crypto:        w.Crypto,
		Relay:         w.Relay,
		Pairings:      a.Pairing,
		ProposalStore: w.Proposals,
		SessionStore:  w.Sessions,
		Keychain:      w.Keychain,
	}
	opts := []session.Option{
		session.WithLogger(w.Log),
		session.WithRequestTimeout(cfg.RequestTimeout),
		session.WithExpiry(cfg.SessionExpiry),
		session.WithProposalExpiry(cfg.ProposalExpiry),
		session.WithSweepInterval(cfg.SweepInterval),
		session.WithMetadata(cfg.Metadata),
	}
	switch role {
	case RoleProposer:
		a.Proposer = session.NewProposer(deps, opts...)
	case RoleResponder:
		a.Responder = session.NewResponder(deps, opts...)
	}

	if err := a.Pairing.Init(ctx); err != nil {
		return nil, err
	}
	var err error
	switch {
	case a.Proposer != nil:
		err = a.Proposer.Init(ctx)
	case a.Responder != nil:
		err = a.Responder.Init(ctx)
	}
	if err != nil {
		a.Pairing.Destroy()
		return nil, err
	}
	return a, nil
}

// Close destroys the engines and then stops the relay.
func (a *App) Close(ctx context.Context) error {
	if a.Proposer != nil {
		a.Proposer.Destroy()
	}
	if a.Responder != nil {
		a.Responder.Destroy()
	}
	a.Pairing.Destroy()
	return a.Relay.Stop(ctx)
}
