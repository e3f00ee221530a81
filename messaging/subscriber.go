package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentwire/agentwire-go/contracts"
)

// MessageSubscriber consumes an agent inbox, decodes envelopes, and hands the
// typed messages to a dispatcher. Poison deliveries (undecodable envelopes,
// unknown types) are logged and acknowledged so they are not redelivered
// forever; handler failures never crash the consume loop.
type MessageSubscriber struct {
	subscriber TransportSubscriber
	dispatcher *MessageDispatcher
	codec      EnvelopeCodec
	logger     *slog.Logger
}

// SubscriberOption configures the MessageSubscriber
type SubscriberOption func(*MessageSubscriber)

// WithSubscriberLogger sets the logger
func WithSubscriberLogger(logger *slog.Logger) SubscriberOption {
	return func(s *MessageSubscriber) {
		s.logger = logger
	}
}

// NewMessageSubscriber creates a new message subscriber
func NewMessageSubscriber(subscriber TransportSubscriber, dispatcher *MessageDispatcher, options ...SubscriberOption) *MessageSubscriber {
	s := &MessageSubscriber{
		subscriber: subscriber,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Subscribe starts consuming the inbox for the given agent address
func (s *MessageSubscriber) Subscribe(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	opts := SubscriptionOptions{PrefetchCount: 10}
	return s.subscriber.Subscribe(ctx, address, func(delivery TransportDelivery) error {
		s.handleDelivery(ctx, delivery)
		return nil
	}, opts)
}

// Unsubscribe stops consuming the inbox
func (s *MessageSubscriber) Unsubscribe(address string) error {
	return s.subscriber.Unsubscribe(address)
}

// Close closes the underlying transport subscriber
func (s *MessageSubscriber) Close() error {
	return s.subscriber.Close()
}

func (s *MessageSubscriber) handleDelivery(ctx context.Context, delivery TransportDelivery) {
	envelope, err := s.codec.Decode(delivery.Body())
	if err != nil {
		s.logger.Error("dropping undecodable delivery", "error", err)
		_ = delivery.Acknowledge()
		return
	}

	msg, err := DecodeMessage(envelope)
	if err != nil {
		s.logger.Error("dropping delivery with unknown body",
			"envelopeId", envelope.ID,
			"envelopeType", envelope.Type,
			"error", err,
		)
		_ = delivery.Acknowledge()
		return
	}

	if stamped, ok := msg.(*contracts.ChatMessage); ok && stamped.Sender == "" {
		stamped.Sender = envelope.Sender
	}

	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		// Dispatch failures stay local: the message is consumed either way.
		s.logger.Error("dispatch failed", "messageId", msg.GetID(), "error", err)
	}
	if err := delivery.Acknowledge(); err != nil {
		s.logger.Warn("failed to acknowledge delivery", "messageId", msg.GetID(), "error", err)
	}
}
