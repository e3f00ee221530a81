// Package interceptors provides composable middleware for inbound message
// handling. A Chain wraps the handler a dispatcher resolves, so cross-cutting
// concerns like logging, panic recovery, and metrics stay out of the handlers
// themselves.
package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/messaging"
)

// Interceptor processes a message around the next handler in the chain.
type Interceptor interface {
	Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error

	// Name identifies the interceptor in logs.
	Name() string
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error
}

// NewInterceptorFunc creates a function-based interceptor.
func NewInterceptorFunc(name string, fn func(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error {
	return i.fn(ctx, msg, next)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// Chain runs interceptors in order around a final handler.
type Chain struct {
	interceptors []Interceptor
}

// NewChain creates a chain from the given interceptors.
func NewChain(interceptors ...Interceptor) *Chain {
	return &Chain{interceptors: interceptors}
}

// Use appends an interceptor and returns the chain for fluent building.
func (c *Chain) Use(interceptor Interceptor) *Chain {
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Then composes the chain around a final handler. The first interceptor
// added runs outermost.
func (c *Chain) Then(final messaging.MessageHandler) messaging.MessageHandler {
	handler := final
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := handler
		handler = messaging.MessageHandlerFunc(func(ctx context.Context, msg contracts.Message) error {
			return interceptor.Intercept(ctx, msg, next)
		})
	}
	return handler
}

// Middleware adapts the chain for messaging.WithDispatcherMiddleware.
func (c *Chain) Middleware() messaging.Middleware {
	return func(next messaging.MessageHandler) messaging.MessageHandler {
		return c.Then(next)
	}
}

// LoggingInterceptor logs every message with its processing outcome.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a logging interceptor.
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error {
	start := time.Now()
	err := next.Handle(ctx, msg)
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("message processing failed",
			"messageId", msg.GetID(),
			"messageType", msg.GetType(),
			"duration", duration,
			"error", err,
		)
		return err
	}
	i.logger.Debug("message processed",
		"messageId", msg.GetID(),
		"messageType", msg.GetType(),
		"duration", duration,
	)
	return nil
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// RecoveryInterceptor converts handler panics into errors so one bad message
// cannot take down the consume loop.
type RecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a recovery interceptor.
func NewRecoveryInterceptor(logger *slog.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *RecoveryInterceptor) Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("handler panicked",
				"messageId", msg.GetID(),
				"messageType", msg.GetType(),
				"panic", r,
			)
			err = fmt.Errorf("handler panicked processing message %s: %v", msg.GetID(), r)
		}
	}()
	return next.Handle(ctx, msg)
}

// Name implements Interceptor
func (i *RecoveryInterceptor) Name() string {
	return "RecoveryInterceptor"
}

// TimeoutInterceptor bounds how long one message may be processed.
type TimeoutInterceptor struct {
	timeout time.Duration
}

// NewTimeoutInterceptor creates a timeout interceptor.
func NewTimeoutInterceptor(timeout time.Duration) *TimeoutInterceptor {
	return &TimeoutInterceptor{timeout: timeout}
}

// Intercept implements Interceptor
func (i *TimeoutInterceptor) Intercept(ctx context.Context, msg contracts.Message, next messaging.MessageHandler) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- next.Handle(timeoutCtx, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		return fmt.Errorf("processing timed out after %v for message %s", i.timeout, msg.GetID())
	}
}

// Name implements Interceptor
func (i *TimeoutInterceptor) Name() string {
	return "TimeoutInterceptor"
}
