package interfaces

import (
	"context"

	domaintypes "pairlink/internal/domain/types"
)

// MessageHandler receives a raw payload published on topic. Calls for one
// topic are made sequentially, in relay-delivery order.
type MessageHandler func(ctx context.Context, topic domaintypes.Topic, payload []byte)

// Relay is a topic-addressed publish/subscribe transport.
type Relay interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Publish(ctx context.Context, topic domaintypes.Topic, payload []byte) error
	// Subscribe registers handler for topic. Subscribing again to the same
	// topic replaces the handler rather than adding a second subscription.
	Subscribe(ctx context.Context, topic domaintypes.Topic, handler MessageHandler) error
	Unsubscribe(ctx context.Context, topic domaintypes.Topic) error

	Connected() bool
	Protocol() domaintypes.RelayProtocolOptions
}
