package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

// ProtocolLibp2p identifies the GossipSub relay.
const ProtocolLibp2p = "libp2p"

// GossipConfig configures a Gossip relay node.
type GossipConfig struct {
	// ListenAddrs are multiaddrs to listen on, e.g. /ip4/0.0.0.0/tcp/4001.
	ListenAddrs []string
	// Bootstrap are peer multiaddrs (with /p2p/ id) dialled on Start.
	Bootstrap []string
}

// Gossip is a relay built on a libp2p host running GossipSub. Pairing and
// session topics map one-to-one onto pubsub topics.
type Gossip struct {
	cfg GossipConfig
	log *logrus.Entry

	mu     sync.Mutex
	host   host.Host
	ps     *pubsub.PubSub
	cancel context.CancelFunc
	joined map[domain.Topic]*pubsub.Topic
	subs   map[domain.Topic]*gossipSub
}

type gossipSub struct {
	sub    *pubsub.Subscription
	cancel context.CancelFunc

	mu      sync.Mutex
	handler domain.MessageHandler
}

// NewGossip returns an unstarted Gossip relay.
func NewGossip(cfg GossipConfig) *Gossip {
	return &Gossip{
		cfg:    cfg,
		log:    logrus.WithField("component", "relay.gossip"),
		joined: make(map[domain.Topic]*pubsub.Topic),
		subs:   make(map[domain.Topic]*gossipSub),
	}
}

// Start creates the libp2p host, the GossipSub router and dials bootstrap peers.
func (g *Gossip) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.host != nil {
		return nil
	}

	opts := []libp2p.Option{}
	if len(g.cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(g.cfg.ListenAddrs...))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return errs.Transport("libp2p host", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ps, err := pubsub.NewGossipSub(runCtx, h)
	if err != nil {
		cancel()
		_ = h.Close()
		return errs.Transport("gossipsub", err)
	}

	for _, addr := range g.cfg.Bootstrap {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			g.log.WithError(err).WithField("addr", addr).Warn("bad bootstrap address")
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			g.log.WithError(err).WithField("peer", info.ID).Warn("bootstrap dial failed")
		}
	}

	g.host, g.ps, g.cancel = h, ps, cancel
	g.log.WithFields(logrus.Fields{"peer": h.ID(), "addrs": h.Addrs()}).Info("gossip relay started")
	return nil
}

// Stop cancels every subscription, leaves all topics and closes the host.
func (g *Gossip) Stop(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.host == nil {
		return nil
	}
	for topic, s := range g.subs {
		s.cancel()
		s.sub.Cancel()
		delete(g.subs, topic)
	}
	for topic, t := range g.joined {
		_ = t.Close()
		delete(g.joined, topic)
	}
	g.cancel()
	err := g.host.Close()
	g.host, g.ps = nil, nil
	return err
}

func (g *Gossip) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	g.mu.Lock()
	t, err := g.joinLocked(topic)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, payload); err != nil {
		return errs.Transport("gossip publish", err)
	}
	return nil
}

func (g *Gossip) Subscribe(_ context.Context, topic domain.Topic, handler domain.MessageHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.subs[topic]; ok {
		s.mu.Lock()
		s.handler = handler
		s.mu.Unlock()
		return nil
	}
	t, err := g.joinLocked(topic)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return errs.Transport("gossip subscribe", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &gossipSub{sub: sub, cancel: cancel, handler: handler}
	g.subs[topic] = s
	go g.read(ctx, topic, s, g.host.ID())
	return nil
}

func (g *Gossip) Unsubscribe(_ context.Context, topic domain.Topic) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.subs[topic]; ok {
		s.cancel()
		s.sub.Cancel()
		delete(g.subs, topic)
	}
	// The topic handle stays joined: pubsub refuses to close a topic while
	// a cancelled subscription is still draining, and re-joining an open
	// topic fails.
	return nil
}

func (g *Gossip) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.host != nil
}

// Protocol reports the node's first dialable address as relay data.
func (g *Gossip) Protocol() domain.RelayProtocolOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	opts := domain.RelayProtocolOptions{Protocol: ProtocolLibp2p}
	if g.host != nil && len(g.host.Addrs()) > 0 {
		opts.Data = fmt.Sprintf("%s/p2p/%s", g.host.Addrs()[0], g.host.ID())
	}
	return opts
}

func (g *Gossip) joinLocked(topic domain.Topic) (*pubsub.Topic, error) {
	if g.ps == nil {
		return nil, errs.ErrNotConnected
	}
	if t, ok := g.joined[topic]; ok {
		return t, nil
	}
	t, err := g.ps.Join(topic)
	if err != nil {
		return nil, errs.Transport("gossip join", err)
	}
	g.joined[topic] = t
	return t, nil
}

func (g *Gossip) read(ctx context.Context, topic domain.Topic, s *gossipSub, self peer.ID) {
	log := g.log.WithField("topic", topic)
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("gossip subscription ended")
			}
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		h(context.WithoutCancel(ctx), topic, msg.Data)
	}
}

var _ domain.Relay = (*Gossip)(nil)
