package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentwire/agentwire-go/contracts"
)

// MessageHandler processes a decoded inbound message
type MessageHandler interface {
	Handle(ctx context.Context, msg contracts.Message) error
}

// MessageHandlerFunc is a function adapter for MessageHandler
type MessageHandlerFunc func(ctx context.Context, msg contracts.Message) error

// Handle implements MessageHandler
func (f MessageHandlerFunc) Handle(ctx context.Context, msg contracts.Message) error {
	return f(ctx, msg)
}

// Middleware wraps a handler before it runs. Middleware registered on a
// dispatcher applies to every handler it dispatches to.
type Middleware func(MessageHandler) MessageHandler

// MessageDispatcher routes inbound messages to handlers by message type. One
// handler per type; registering again replaces the previous handler.
type MessageDispatcher struct {
	handlers   map[string]MessageHandler
	middleware []Middleware
	mu         sync.RWMutex
	logger     *slog.Logger
}

// DispatcherOption configures the MessageDispatcher
type DispatcherOption func(*MessageDispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *MessageDispatcher) {
		d.logger = logger
	}
}

// WithDispatcherMiddleware adds middleware around every dispatched handler.
// Middleware runs in registration order, outermost first.
func WithDispatcherMiddleware(middleware ...Middleware) DispatcherOption {
	return func(d *MessageDispatcher) {
		d.middleware = append(d.middleware, middleware...)
	}
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(options ...DispatcherOption) *MessageDispatcher {
	d := &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// RegisterHandler registers a handler for a message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) error {
	if messageType == "" {
		return fmt.Errorf("messageType cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	d.mu.Lock()
	d.handlers[messageType] = handler
	d.mu.Unlock()

	d.logger.Debug("registered message handler", "messageType", messageType)
	return nil
}

// RegisterHandlerFunc registers a function as a handler
func (d *MessageDispatcher) RegisterHandlerFunc(messageType string, handler MessageHandlerFunc) error {
	return d.RegisterHandler(messageType, handler)
}

// Dispatch routes a message to its handler. A missing handler is logged and
// dropped rather than returned as an error: an unhandled inbound message has
// no caller to report to.
func (d *MessageDispatcher) Dispatch(ctx context.Context, msg contracts.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	d.mu.RLock()
	handler, ok := d.handlers[msg.GetType()]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("no handler for message type, dropping",
			"messageType", msg.GetType(),
			"messageId", msg.GetID(),
		)
		return nil
	}

	for i := len(d.middleware) - 1; i >= 0; i-- {
		handler = d.middleware[i](handler)
	}

	if err := handler.Handle(ctx, msg); err != nil {
		d.logger.Error("handler failed",
			"messageType", msg.GetType(),
			"messageId", msg.GetID(),
			"error", err,
		)
		return fmt.Errorf("handler failed for message %s: %w", msg.GetID(), err)
	}
	return nil
}
