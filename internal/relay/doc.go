// Package relay provides implementations of the domain.Relay interface used
// by pairlink.
//
// The relay is an untrusted, topic-addressed publish/subscribe service
// between peers. It never sees plaintext: every payload is sealed by the
// engines before it is published.
//
// Implementations:
//   - Memory: an in-process hub, used by tests and single-process demos.
//   - HTTP: a long-polling client for the development relay in cmd/relay.
//   - Gossip: a libp2p GossipSub node where each topic is a pubsub topic.
//
// Delivery is at-most-once. A publisher never receives its own messages.
// Handlers for one topic are invoked sequentially in delivery order; there
// is no ordering across topics.
package relay
