package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTransportPublisher struct {
	mock.Mock
}

func (m *mockTransportPublisher) Publish(ctx context.Context, target string, envelope *contracts.Envelope) error {
	args := m.Called(ctx, target, envelope)
	return args.Error(0)
}

func (m *mockTransportPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestMessagePublisher(t *testing.T) {
	t.Run("Send stamps sender and publishes to target", func(t *testing.T) {
		tp := &mockTransportPublisher{}
		var published *contracts.Envelope
		tp.On("Publish", mock.Anything, "agent1qtarget", mock.MatchedBy(func(env *contracts.Envelope) bool {
			published = env
			return true
		})).Return(nil)

		p := NewMessagePublisher(tp, "agent1qme")
		err := p.Send(context.Background(), "agent1qtarget", contracts.NewChatMessage("hi"))

		assert.NoError(t, err)
		assert.Equal(t, "agent1qme", published.Sender)
		assert.Equal(t, "agent1qtarget", published.Target)
		tp.AssertExpectations(t)
	})

	t.Run("Send validates inputs", func(t *testing.T) {
		p := NewMessagePublisher(&mockTransportPublisher{}, "agent1qme")

		assert.Error(t, p.Send(context.Background(), "agent1qtarget", nil))
		assert.Error(t, p.Send(context.Background(), "", contracts.NewChatMessage("hi")))
	})

	t.Run("Send propagates transport errors once retries are spent", func(t *testing.T) {
		tp := &mockTransportPublisher{}
		tp.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

		p := NewMessagePublisher(tp, "agent1qme",
			WithRetryPolicy(reliability.NewFixedDelay(time.Millisecond, 2)),
		)
		err := p.Send(context.Background(), "agent1qtarget", contracts.NewChatMessage("hi"))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
		tp.AssertNumberOfCalls(t, "Publish", 3)
	})

	t.Run("defaults to an exponential backoff retry policy", func(t *testing.T) {
		p := NewMessagePublisher(&mockTransportPublisher{}, "agent1qme")

		assert.IsType(t, &reliability.ExponentialBackoff{}, p.retryPolicy)
	})

	t.Run("Send retries transient failures", func(t *testing.T) {
		tp := &mockTransportPublisher{}
		tp.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("transient")).Twice()
		tp.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		p := NewMessagePublisher(tp, "agent1qme",
			WithRetryPolicy(reliability.NewFixedDelay(time.Millisecond, 3)),
		)
		err := p.Send(context.Background(), "agent1qtarget", contracts.NewChatMessage("hi"))

		assert.NoError(t, err)
		tp.AssertNumberOfCalls(t, "Publish", 3)
	})

	t.Run("open circuit rejects sends", func(t *testing.T) {
		tp := &mockTransportPublisher{}
		tp.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("down"))

		cb := reliability.NewCircuitBreaker(
			reliability.WithFailureThreshold(1),
			reliability.WithTimeout(time.Hour),
		)
		p := NewMessagePublisher(tp, "agent1qme",
			WithCircuitBreaker(cb),
			WithRetryPolicy(reliability.NewFixedDelay(0, 0)),
		)

		assert.Error(t, p.Send(context.Background(), "agent1qtarget", contracts.NewChatMessage("a")))
		err := p.Send(context.Background(), "agent1qtarget", contracts.NewChatMessage("b"))

		var cbErr *reliability.CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
		tp.AssertNumberOfCalls(t, "Publish", 1)
	})
}
