package messaging

import (
	"context"

	"github.com/agentwire/agentwire-go/contracts"
)

// TransportPublisher sends envelopes to a target agent's inbox. Delivery is
// one-way: a successful Publish means the transport accepted the envelope,
// nothing more.
type TransportPublisher interface {
	// Publish sends an envelope to the inbox identified by target
	Publish(ctx context.Context, target string, envelope *contracts.Envelope) error

	// Close closes the publisher
	Close() error
}

// TransportSubscriber consumes envelopes arriving at an agent's inbox
type TransportSubscriber interface {
	// Subscribe registers a handler for deliveries to the given address
	Subscribe(ctx context.Context, address string, handler func(delivery TransportDelivery) error, options SubscriptionOptions) error

	// Unsubscribe removes a subscription
	Unsubscribe(address string) error

	// Close closes the subscriber
	Close() error
}

// TransportDelivery represents one inbound envelope delivery
type TransportDelivery interface {
	// Body returns the serialized envelope
	Body() []byte

	// Acknowledge marks the delivery as processed
	Acknowledge() error

	// Reject rejects the delivery with optional requeue
	Reject(requeue bool) error
}

// Transport provides both directions plus inbox lifecycle
type Transport interface {
	// Publisher returns a transport publisher
	Publisher() TransportPublisher

	// Subscriber returns a transport subscriber
	Subscriber() TransportSubscriber

	// EnsureInbox creates the inbox for an agent address if it does not exist
	EnsureInbox(ctx context.Context, address string) error

	// Connect establishes the underlying connection
	Connect(ctx context.Context) error

	// Close closes all resources
	Close() error

	// IsConnected returns connection status
	IsConnected() bool
}

// SubscriptionOptions configures inbox consumption
type SubscriptionOptions struct {
	PrefetchCount int
	AutoAck       bool
}
