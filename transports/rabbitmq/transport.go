// Package rabbitmq implements the messaging transport on top of RabbitMQ.
// Every agent address maps to one durable inbox queue; envelopes are
// published to the default exchange with the inbox queue name as routing
// key, so no exchange topology beyond the broker defaults is required.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/internal/rabbitmq"
	"github.com/agentwire/agentwire-go/messaging"
	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const inboxPrefix = "agentwire.inbox."

// InboxQueue returns the queue name backing an agent address.
func InboxQueue(address string) string {
	return inboxPrefix + address
}

// Transport implements messaging.Transport for RabbitMQ.
type Transport struct {
	manager   *rabbitmq.ConnectionManager
	pool      *rabbitmq.ChannelPool
	publisher *rabbitmq.Publisher
	consumer  *rabbitmq.Consumer
	logger    *slog.Logger
}

// TransportConfig collects the options for the underlying layers.
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	PublisherOptions  []rabbitmq.PublisherOption
	Logger            *slog.Logger
}

// TransportOption configures the transport.
type TransportOption func(*TransportConfig)

// WithConnectionOptions passes options through to the connection manager.
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithPublisherOptions passes options through to the publisher.
func WithPublisherOptions(opts ...rabbitmq.PublisherOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.PublisherOptions = append(cfg.PublisherOptions, opts...)
	}
}

// WithTransportLogger sets the logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

// NewTransport creates a RabbitMQ transport and connects to the broker.
func NewTransport(connectionString string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{Logger: slog.Default()}
	for _, opt := range options {
		opt(cfg)
	}

	connOpts := append([]rabbitmq.ConnectionOption{rabbitmq.WithConnectionLogger(cfg.Logger)}, cfg.ConnectionOptions...)
	manager := rabbitmq.NewConnectionManager(connectionString, connOpts...)
	if err := manager.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pool := rabbitmq.NewChannelPool(manager)

	return &Transport{
		manager:   manager,
		pool:      pool,
		publisher: rabbitmq.NewPublisher(pool, cfg.PublisherOptions...),
		consumer:  rabbitmq.NewConsumer(manager, cfg.Logger),
		logger:    cfg.Logger,
	}, nil
}

// Publisher returns the envelope publisher.
func (t *Transport) Publisher() messaging.TransportPublisher {
	return &publisherAdapter{publisher: t.publisher}
}

// Subscriber returns the inbox subscriber.
func (t *Transport) Subscriber() messaging.TransportSubscriber {
	return &subscriberAdapter{consumer: t.consumer}
}

// EnsureInbox declares the durable inbox queue for an agent address. Safe to
// call repeatedly.
func (t *Transport) EnsureInbox(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	ch, err := t.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer t.pool.Put(ch)

	queue := InboxQueue(address)
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare inbox %s: %w", queue, err)
	}

	t.logger.Debug("inbox ready", "address", address, "queue", queue)
	return nil
}

// Connect establishes the broker connection.
func (t *Transport) Connect(ctx context.Context) error {
	return t.manager.Connect(ctx)
}

// Close shuts down consumers, the channel pool and the connection.
func (t *Transport) Close() error {
	t.consumer.Close()
	t.pool.Close()
	return t.manager.Close()
}

// IsConnected reports broker connectivity.
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

type publisherAdapter struct {
	publisher *rabbitmq.Publisher
}

// Publish serializes the envelope and sends it to the target's inbox queue
// through the default exchange.
func (p *publisherAdapter) Publish(ctx context.Context, target string, envelope *contracts.Envelope) error {
	if target == "" {
		return fmt.Errorf("target cannot be empty")
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     envelope.ID,
		CorrelationId: envelope.CorrelationID,
		Type:          envelope.Type,
	}
	if len(envelope.Headers) > 0 {
		msg.Headers = make(amqp.Table, len(envelope.Headers))
		for k, v := range envelope.Headers {
			msg.Headers[k] = v
		}
	}

	return p.publisher.Publish(ctx, "", InboxQueue(target), msg)
}

func (p *publisherAdapter) Close() error {
	return p.publisher.Close()
}

type subscriberAdapter struct {
	consumer *rabbitmq.Consumer

	mu        sync.Mutex
	addresses map[string]string // address -> queue
}

// Subscribe consumes the inbox queue for an agent address.
func (s *subscriberAdapter) Subscribe(ctx context.Context, address string, handler func(messaging.TransportDelivery) error, options messaging.SubscriptionOptions) error {
	queue := InboxQueue(address)

	err := s.consumer.Subscribe(ctx, queue, rabbitmq.ConsumeOptions{
		PrefetchCount: options.PrefetchCount,
		AutoAck:       options.AutoAck,
	}, func(delivery amqp.Delivery) {
		// decode and dispatch errors are handled upstream
		_ = handler(&deliveryAdapter{delivery: delivery})
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.addresses == nil {
		s.addresses = make(map[string]string)
	}
	s.addresses[address] = queue
	s.mu.Unlock()
	return nil
}

// Unsubscribe stops consuming an address's inbox.
func (s *subscriberAdapter) Unsubscribe(address string) error {
	s.mu.Lock()
	queue, ok := s.addresses[address]
	if ok {
		delete(s.addresses, address)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no subscription for address %s", address)
	}
	return s.consumer.Unsubscribe(queue)
}

// Close stops all inbox subscriptions.
func (s *subscriberAdapter) Close() error {
	s.mu.Lock()
	s.addresses = nil
	s.mu.Unlock()
	return s.consumer.Close()
}

type deliveryAdapter struct {
	delivery amqp.Delivery
}

func (d *deliveryAdapter) Body() []byte {
	return d.delivery.Body
}

func (d *deliveryAdapter) Acknowledge() error {
	return d.delivery.Ack(false)
}

func (d *deliveryAdapter) Reject(requeue bool) error {
	return d.delivery.Nack(false, requeue)
}
