package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultPoolSize = 10

// ChannelPool hands out AMQP channels for short-lived publish operations.
// Channels are cheap to create but not free; reusing them avoids a
// channel-open round trip per publish. Consumers do not use the pool, they
// hold a dedicated channel for the lifetime of the subscription.
type ChannelPool struct {
	manager *ConnectionManager
	maxIdle int

	mu     sync.Mutex
	idle   []*amqp.Channel
	closed bool
}

// PoolOption configures the ChannelPool.
type PoolOption func(*ChannelPool)

// WithMaxIdleChannels caps how many idle channels the pool retains.
func WithMaxIdleChannels(n int) PoolOption {
	return func(p *ChannelPool) {
		p.maxIdle = n
	}
}

// NewChannelPool creates a pool backed by the given connection manager.
func NewChannelPool(manager *ConnectionManager, options ...PoolOption) *ChannelPool {
	p := &ChannelPool{
		manager: manager,
		maxIdle: defaultPoolSize,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Get returns an open channel, reusing an idle one when possible.
func (p *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrChannelPoolClosed
	}
	for len(p.idle) > 0 {
		ch := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !ch.IsClosed() {
			p.mu.Unlock()
			return ch, nil
		}
	}
	p.mu.Unlock()

	conn, err := p.manager.GetConnection()
	if err != nil {
		return nil, err
	}
	return conn.Channel()
}

// Put returns a channel to the pool. Closed channels and overflow are
// discarded.
func (p *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil {
		return
	}

	p.mu.Lock()
	if p.closed || ch.IsClosed() || len(p.idle) >= p.maxIdle {
		p.mu.Unlock()
		if !ch.IsClosed() {
			_ = ch.Close()
		}
		return
	}
	p.idle = append(p.idle, ch)
	p.mu.Unlock()
}

// Size returns the number of idle channels held.
func (p *ChannelPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close discards all idle channels. Get fails afterwards.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, ch := range p.idle {
		if !ch.IsClosed() {
			_ = ch.Close()
		}
	}
	p.idle = nil
	return nil
}
