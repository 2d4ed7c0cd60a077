package app

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/relay"
	"pairlink/internal/store"
)

// Wire bundles the stores, crypto provider and relay the engines are built from.
type Wire struct {
	Config    *Config
	Log       *logrus.Entry
	Crypto    domain.CryptoProvider
	Relay     domain.Relay
	Keychain  domain.Keychain
	Pairings  domain.PairingStore
	Proposals domain.ProposalStore
	Sessions  domain.SessionStore
}

// WireOption overrides a dependency NewWire would otherwise build.
type WireOption func(*Wire)

// WithRelay supplies the relay instead of building one from Config.Relay.
func WithRelay(r domain.Relay) WireOption { return func(w *Wire) { w.Relay = r } }

// WithKeychain supplies the keychain instead of the passphrase-protected file keychain.
func WithKeychain(k domain.Keychain) WireOption { return func(w *Wire) { w.Keychain = k } }

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg *Config, opts ...WireOption) (*Wire, error) {
	w := &Wire{Config: cfg, Crypto: crypto.New()}
	for _, opt := range opts {
		opt(w)
	}

	logger := logrus.StandardLogger()
	if cfg.LogLevel != "" {
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		logger.SetLevel(lvl)
	}
	w.Log = logrus.NewEntry(logger)

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}

	// File-based stores
	w.Pairings = store.NewPairingFileStore(cfg.Home)
	w.Proposals = store.NewProposalFileStore(cfg.Home)
	w.Sessions = store.NewSessionFileStore(cfg.Home)

	if w.Keychain == nil {
		if cfg.Passphrase == "" {
			return nil, fmt.Errorf("passphrase required (-p)")
		}
		w.Keychain = store.NewKeychainFileStore(cfg.Home, cfg.Passphrase)
	}

	if w.Relay == nil {
		r, err := newRelay(cfg)
		if err != nil {
			return nil, err
		}
		w.Relay = r
	}
	return w, nil
}

func newRelay(cfg *Config) (domain.Relay, error) {
	switch cfg.Relay {
	case relay.ProtocolHTTP:
		if cfg.RelayURL == "" {
			return nil, fmt.Errorf("no relay configured. use --relay-url")
		}
		return relay.NewHTTP(cfg.RelayURL, http.DefaultClient), nil
	case relay.ProtocolLibp2p:
		return relay.NewGossip(relay.GossipConfig{ListenAddrs: cfg.ListenAddrs, Bootstrap: cfg.Bootstrap}), nil
	case relay.ProtocolMemory:
		return nil, fmt.Errorf("the memory relay only works in-process; pass it with WithRelay")
	default:
		return nil, fmt.Errorf("unknown relay %q", cfg.Relay)
	}
}
