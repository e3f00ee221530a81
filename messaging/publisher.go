package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/internal/reliability"
)

// MessagePublisher provides high-level message publishing. Outbound messages
// are wrapped in envelopes stamped with the local agent address and pushed
// through the configured retry policy and circuit breaker.
type MessagePublisher struct {
	publisher      TransportPublisher
	factory        *EnvelopeFactory
	circuitBreaker *reliability.CircuitBreaker
	retryPolicy    reliability.RetryPolicy
	logger         *slog.Logger
	sender         string
}

// PublisherOption configures the MessagePublisher
type PublisherOption func(*MessagePublisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *MessagePublisher) {
		p.logger = logger
	}
}

// WithCircuitBreaker sets the circuit breaker guarding the send path
func WithCircuitBreaker(cb *reliability.CircuitBreaker) PublisherOption {
	return func(p *MessagePublisher) {
		p.circuitBreaker = cb
	}
}

// WithRetryPolicy sets the retry policy for transient publish failures
func WithRetryPolicy(policy reliability.RetryPolicy) PublisherOption {
	return func(p *MessagePublisher) {
		p.retryPolicy = policy
	}
}

// NewMessagePublisher creates a new message publisher. sender is the local
// agent address stamped on every outbound envelope. Transient publish
// failures retry with exponential backoff unless a different policy is
// configured.
func NewMessagePublisher(publisher TransportPublisher, sender string, options ...PublisherOption) *MessagePublisher {
	p := &MessagePublisher{
		publisher:   publisher,
		factory:     NewEnvelopeFactory(),
		logger:      slog.Default(),
		sender:      sender,
		retryPolicy: reliability.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, 3),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Send wraps msg into an envelope and publishes it to the target inbox
func (p *MessagePublisher) Send(ctx context.Context, target string, msg contracts.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if target == "" {
		return fmt.Errorf("target address cannot be empty")
	}

	envelope, err := p.factory.CreateEnvelope(msg, p.sender, target)
	if err != nil {
		return fmt.Errorf("failed to create envelope: %w", err)
	}

	publish := func() error {
		return p.publisher.Publish(ctx, target, envelope)
	}

	if p.retryPolicy != nil {
		inner := publish
		publish = func() error {
			return reliability.Retry(ctx, p.retryPolicy, inner)
		}
	}
	if p.circuitBreaker != nil {
		inner := publish
		publish = func() error {
			return p.circuitBreaker.Execute(ctx, inner)
		}
	}

	if err := publish(); err != nil {
		p.logger.Error("publish failed",
			"target", target,
			"messageType", msg.GetType(),
			"messageId", msg.GetID(),
			"error", err,
		)
		return err
	}

	p.logger.Debug("message published",
		"target", target,
		"messageType", msg.GetType(),
		"messageId", msg.GetID(),
	)
	return nil
}

// Close closes the underlying transport publisher
func (p *MessagePublisher) Close() error {
	return p.publisher.Close()
}
