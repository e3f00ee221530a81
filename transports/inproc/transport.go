// Package inproc implements the messaging transport in process memory.
// Inboxes are buffered channels keyed by agent address, so a gateway and an
// agent can talk through the real publisher and subscriber stack without a
// broker. Intended for tests and local development.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/messaging"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultInboxDepth = 64

// Transport implements messaging.Transport with in-memory inboxes.
type Transport struct {
	inboxDepth int

	mu      sync.Mutex
	inboxes map[string]chan []byte
	subs    map[string]context.CancelFunc
	closed  bool
}

// TransportOption configures the transport.
type TransportOption func(*Transport)

// WithInboxDepth sets the buffer size of each inbox.
func WithInboxDepth(depth int) TransportOption {
	return func(t *Transport) {
		if depth > 0 {
			t.inboxDepth = depth
		}
	}
}

// NewTransport creates an in-process transport.
func NewTransport(options ...TransportOption) *Transport {
	t := &Transport{
		inboxDepth: defaultInboxDepth,
		inboxes:    make(map[string]chan []byte),
		subs:       make(map[string]context.CancelFunc),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Publisher returns the envelope publisher.
func (t *Transport) Publisher() messaging.TransportPublisher {
	return &publisher{transport: t}
}

// Subscriber returns the inbox subscriber.
func (t *Transport) Subscriber() messaging.TransportSubscriber {
	return &subscriber{transport: t}
}

// EnsureInbox creates the inbox channel for an address if missing.
func (t *Transport) EnsureInbox(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	if _, ok := t.inboxes[address]; !ok {
		t.inboxes[address] = make(chan []byte, t.inboxDepth)
	}
	return nil
}

// Connect is a no-op; the transport is always reachable.
func (t *Transport) Connect(ctx context.Context) error {
	return nil
}

// Close stops all subscriptions and drops all inboxes.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, cancel := range t.subs {
		cancel()
	}
	t.subs = make(map[string]context.CancelFunc)
	t.inboxes = make(map[string]chan []byte)
	return nil
}

// IsConnected is true until Close is called.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *Transport) inbox(address string) (chan []byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.inboxes[address]
	return ch, ok
}

type publisher struct {
	transport *Transport
}

// Publish serializes the envelope into the target's inbox. Publishing to an
// address with no inbox fails, matching a broker rejecting an unroutable
// message.
func (p *publisher) Publish(ctx context.Context, target string, envelope *contracts.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	inbox, ok := p.transport.inbox(target)
	if !ok {
		return fmt.Errorf("no inbox for address %s", target)
	}

	select {
	case inbox <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *publisher) Close() error {
	return nil
}

type subscriber struct {
	transport *Transport
}

// Subscribe drains the address's inbox on a goroutine until the context ends
// or the subscription is removed.
func (s *subscriber) Subscribe(ctx context.Context, address string, handler func(messaging.TransportDelivery) error, options messaging.SubscriptionOptions) error {
	if err := s.transport.EnsureInbox(ctx, address); err != nil {
		return err
	}
	inbox, _ := s.transport.inbox(address)

	t := s.transport
	t.mu.Lock()
	if _, exists := t.subs[address]; exists {
		t.mu.Unlock()
		return fmt.Errorf("already subscribed to %s", address)
	}
	subCtx, cancel := context.WithCancel(ctx)
	t.subs[address] = cancel
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			if t.subs[address] != nil {
				delete(t.subs, address)
			}
			t.mu.Unlock()
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case body := <-inbox:
				_ = handler(&delivery{body: body})
			}
		}
	}()

	return nil
}

// Unsubscribe stops draining an address's inbox.
func (s *subscriber) Unsubscribe(address string) error {
	t := s.transport
	t.mu.Lock()
	cancel, ok := t.subs[address]
	if ok {
		delete(t.subs, address)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("no subscription for address %s", address)
	}
	cancel()
	return nil
}

// Close stops all subscriptions.
func (s *subscriber) Close() error {
	t := s.transport
	t.mu.Lock()
	for address, cancel := range t.subs {
		cancel()
		delete(t.subs, address)
	}
	t.mu.Unlock()
	return nil
}

type delivery struct {
	body []byte
}

func (d *delivery) Body() []byte {
	return d.body
}

func (d *delivery) Acknowledge() error {
	return nil
}

func (d *delivery) Reject(requeue bool) error {
	return nil
}
