// Package agentwire wires the transport, messaging stack, and sync-async
// bridge into one client for talking to a remote agent over a one-way
// message transport as if it were a request-response service.
package agentwire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentwire/agentwire-go/bridge"
	"github.com/agentwire/agentwire-go/interceptors"
	"github.com/agentwire/agentwire-go/internal/reliability"
	"github.com/agentwire/agentwire-go/messaging"
	rabbitmqTransport "github.com/agentwire/agentwire-go/transports/rabbitmq"
)

// Client owns one agent address and forwards requests to one target agent.
type Client struct {
	transport  messaging.Transport
	publisher  *messaging.MessagePublisher
	subscriber *messaging.MessageSubscriber
	dispatcher *messaging.MessageDispatcher
	bridge     *bridge.SyncAsyncBridge
	address    string
	target     string
	logger     *slog.Logger
}

// clientConfig holds client configuration.
type clientConfig struct {
	logger         *slog.Logger
	requestTimeout time.Duration
	policy         bridge.MatchingPolicy
	maxPending     int
	transportOpts  []rabbitmqTransport.TransportOption
}

// ClientOption configures the client.
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithRequestTimeout sets the default Forward timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.requestTimeout = timeout
	}
}

// WithMatchingPolicy selects how inbound replies are matched to pending
// requests. The default is FIFO, for peers that do not echo correlation IDs.
func WithMatchingPolicy(policy bridge.MatchingPolicy) ClientOption {
	return func(cfg *clientConfig) {
		cfg.policy = policy
	}
}

// WithMaxPendingRequests caps concurrent in-flight requests.
func WithMaxPendingRequests(max int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.maxPending = max
	}
}

// WithTransportOptions passes options through to the RabbitMQ transport.
// Ignored by NewClientWithTransport.
func WithTransportOptions(opts ...rabbitmqTransport.TransportOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.transportOpts = append(cfg.transportOpts, opts...)
	}
}

// NewClient creates a client on a RabbitMQ transport. The client answers as
// address and forwards requests to target.
func NewClient(connectionString, address, target string, options ...ClientOption) (*Client, error) {
	cfg := newClientConfig(options)

	transportOpts := append(
		[]rabbitmqTransport.TransportOption{rabbitmqTransport.WithTransportLogger(cfg.logger)},
		cfg.transportOpts...,
	)
	transport, err := rabbitmqTransport.NewTransport(connectionString, transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	client, err := newClient(transport, address, target, cfg)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithTransport creates a client on an existing transport. The
// caller keeps ownership of the transport's connection lifecycle.
func NewClientWithTransport(transport messaging.Transport, address, target string, options ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	return newClient(transport, address, target, newClientConfig(options))
}

func newClientConfig(options []ClientOption) *clientConfig {
	cfg := &clientConfig{
		logger:         slog.Default(),
		requestTimeout: bridge.DefaultTimeout,
		policy:         bridge.MatchFIFO,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

func newClient(transport messaging.Transport, address, target string, cfg *clientConfig) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	if target == "" {
		return nil, fmt.Errorf("target cannot be empty")
	}

	chain := interceptors.NewChain(
		interceptors.NewRecoveryInterceptor(cfg.logger),
		interceptors.NewTimeoutInterceptor(cfg.requestTimeout),
		interceptors.NewMetricsInterceptor(),
		interceptors.NewLoggingInterceptor(cfg.logger),
	)
	dispatcher := messaging.NewMessageDispatcher(
		messaging.WithDispatcherLogger(cfg.logger),
		messaging.WithDispatcherMiddleware(chain.Middleware()),
	)
	publisher := messaging.NewMessagePublisher(
		transport.Publisher(),
		address,
		messaging.WithPublisherLogger(cfg.logger),
		messaging.WithCircuitBreaker(reliability.NewCircuitBreaker()),
	)
	subscriber := messaging.NewMessageSubscriber(
		transport.Subscriber(),
		dispatcher,
		messaging.WithSubscriberLogger(cfg.logger),
	)

	bridgeOpts := []bridge.BridgeOption{
		bridge.WithDefaultTimeout(cfg.requestTimeout),
		bridge.WithMatchingPolicy(cfg.policy),
		bridge.WithBridgeLogger(cfg.logger),
	}
	if cfg.maxPending > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithMaxPendingRequests(cfg.maxPending))
	}
	b, err := bridge.NewSyncAsyncBridge(publisher, target, bridgeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	// Inbound chat messages are replies to resolve; acknowledgements are
	// informational.
	if err := dispatcher.RegisterHandlerFunc("ChatMessage", b.HandleReply); err != nil {
		return nil, err
	}
	if err := dispatcher.RegisterHandlerFunc("ChatAcknowledgement", b.HandleAck); err != nil {
		return nil, err
	}

	return &Client{
		transport:  transport,
		publisher:  publisher,
		subscriber: subscriber,
		dispatcher: dispatcher,
		bridge:     b,
		address:    address,
		target:     target,
		logger:     cfg.logger,
	}, nil
}

// Start declares the client's own inbox and begins consuming replies.
func (c *Client) Start(ctx context.Context) error {
	if err := c.transport.EnsureInbox(ctx, c.address); err != nil {
		return fmt.Errorf("failed to ensure inbox: %w", err)
	}
	if err := c.transport.EnsureInbox(ctx, c.target); err != nil {
		return fmt.Errorf("failed to ensure target inbox: %w", err)
	}
	if err := c.subscriber.Subscribe(ctx, c.address); err != nil {
		return fmt.Errorf("failed to subscribe to inbox: %w", err)
	}

	c.logger.Info("client started", "address", c.address, "target", c.target)
	return nil
}

// Forward sends text to the target and blocks until the reply or timeout.
func (c *Client) Forward(ctx context.Context, text string, timeout time.Duration) (string, error) {
	return c.bridge.Forward(ctx, text, timeout)
}

// Notify sends text one-way.
func (c *Client) Notify(ctx context.Context, text string) error {
	return c.bridge.Notify(ctx, text)
}

// Address returns the client's own agent address.
func (c *Client) Address() string {
	return c.address
}

// Target returns the remote agent address requests go to.
func (c *Client) Target() string {
	return c.target
}

// Bridge returns the sync-async bridge.
func (c *Client) Bridge() *bridge.SyncAsyncBridge {
	return c.bridge
}

// Publisher returns the message publisher.
func (c *Client) Publisher() *messaging.MessagePublisher {
	return c.publisher
}

// Subscriber returns the message subscriber.
func (c *Client) Subscriber() *messaging.MessageSubscriber {
	return c.subscriber
}

// Dispatcher returns the message dispatcher.
func (c *Client) Dispatcher() *messaging.MessageDispatcher {
	return c.dispatcher
}

// Transport returns the underlying transport.
func (c *Client) Transport() messaging.Transport {
	return c.transport
}

// Close shuts down the bridge, messaging components, and transport.
func (c *Client) Close() error {
	if c.bridge != nil {
		c.bridge.Close()
	}
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.subscriber != nil {
		c.subscriber.Close()
	}
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}
