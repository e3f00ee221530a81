package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes messages with broker confirmation. A confirmed publish
// means the broker has taken responsibility for the message; it says nothing
// about whether anyone will consume it.
type Publisher struct {
	pool           *ChannelPool
	confirmTimeout time.Duration
	publishTimeout time.Duration
	maxAttempts    int
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithConfirmTimeout sets how long to wait for a broker confirmation.
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.confirmTimeout = timeout
	}
}

// WithPublishTimeout bounds the whole publish operation when the caller's
// context carries no deadline.
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.publishTimeout = timeout
	}
}

// WithPublishAttempts sets how many times a publish is attempted.
func WithPublishAttempts(attempts int) PublisherOption {
	return func(p *Publisher) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
	}
}

// NewPublisher creates a confirming publisher on top of the channel pool.
func NewPublisher(pool *ChannelPool, options ...PublisherOption) *Publisher {
	p := &Publisher{
		pool:           pool,
		confirmTimeout: 5 * time.Second,
		publishTimeout: 10 * time.Second,
		maxAttempts:    3,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Publish sends one message and waits for the broker's confirmation,
// retrying transient failures with a linear backoff.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := p.publishOnce(ctx, exchange, routingKey, msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return &PublishError{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Err:        fmt.Errorf("after %d attempts: %w", p.maxAttempts, lastErr),
	}
}

func (p *Publisher) publishOnce(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	ch, err := p.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Put(ch)

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable confirm mode: %w", err)
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return err
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return ErrPublishNotConfirmed
		}
		return nil
	case ret := <-returns:
		return fmt.Errorf("message returned by broker: %s", ret.ReplyText)
	case <-time.After(p.confirmTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the publisher. The channel pool is owned by the transport
// and closed there.
func (p *Publisher) Close() error {
	return nil
}
