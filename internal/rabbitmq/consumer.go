package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one inbound delivery.
type DeliveryHandler func(delivery amqp.Delivery)

// ConsumeOptions configures a single subscription.
type ConsumeOptions struct {
	PrefetchCount int
	AutoAck       bool
}

// Consumer manages queue subscriptions. Each subscription holds a dedicated
// channel for its lifetime; pooled channels are for publishing only.
type Consumer struct {
	manager *ConnectionManager
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*subscription
}

type subscription struct {
	queue   string
	channel *amqp.Channel
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConsumer creates a consumer on top of the connection manager.
func NewConsumer(manager *ConnectionManager, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		manager: manager,
		logger:  logger,
		active:  make(map[string]*subscription),
	}
}

// Subscribe starts consuming from a queue. One subscription per queue.
func (c *Consumer) Subscribe(ctx context.Context, queue string, opts ConsumeOptions, handler DeliveryHandler) error {
	c.mu.Lock()
	if _, exists := c.active[queue]; exists {
		c.mu.Unlock()
		return &ConsumerError{Queue: queue, Op: "subscribe", Err: fmt.Errorf("already subscribed")}
	}
	c.mu.Unlock()

	conn, err := c.manager.GetConnection()
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "subscribe", Err: err}
	}
	channel, err := conn.Channel()
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "open channel", Err: err}
	}

	if opts.PrefetchCount > 0 {
		if err := channel.Qos(opts.PrefetchCount, 0, false); err != nil {
			channel.Close()
			return &ConsumerError{Queue: queue, Op: "set qos", Err: err}
		}
	}

	deliveries, err := channel.Consume(
		queue,
		"",           // broker-assigned consumer tag
		opts.AutoAck, // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		channel.Close()
		return &ConsumerError{Queue: queue, Op: "consume", Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		queue:   queue,
		channel: channel,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.active[queue] = sub
	c.mu.Unlock()

	go c.pump(subCtx, sub, deliveries, handler)

	c.logger.Info("subscribed to queue", "queue", queue, "prefetchCount", opts.PrefetchCount)
	return nil
}

func (c *Consumer) pump(ctx context.Context, sub *subscription, deliveries <-chan amqp.Delivery, handler DeliveryHandler) {
	defer func() {
		sub.channel.Close()
		close(sub.done)

		c.mu.Lock()
		delete(c.active, sub.queue)
		c.mu.Unlock()

		c.logger.Info("consumer stopped", "queue", sub.queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", sub.queue)
				return
			}
			handler(delivery)
		}
	}
}

// Unsubscribe stops the subscription for a queue and waits for it to drain.
func (c *Consumer) Unsubscribe(queue string) error {
	c.mu.Lock()
	sub, ok := c.active[queue]
	c.mu.Unlock()

	if !ok {
		return &ConsumerError{Queue: queue, Op: "unsubscribe", Err: fmt.Errorf("no active subscription")}
	}

	sub.cancel()
	<-sub.done
	return nil
}

// ActiveQueues lists the queues with a running subscription.
func (c *Consumer) ActiveQueues() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	queues := make([]string, 0, len(c.active))
	for queue := range c.active {
		queues = append(queues, queue)
	}
	return queues
}

// Close stops every subscription.
func (c *Consumer) Close() error {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.active))
	for _, sub := range c.active {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			s.cancel()
			<-s.done
		}(sub)
	}
	wg.Wait()
	return nil
}
