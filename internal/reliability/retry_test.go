package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	t.Run("Retry returns nil on first success", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 3), func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retry retries until success", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Retry gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 2), func() error {
			calls++
			return errors.New("always fails")
		})

		assert.Error(t, err)
		assert.Equal(t, 3, calls) // initial attempt + 2 retries
	})

	t.Run("Retry does not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			return RetryableError{Err: errors.New("fatal"), Retryable: false}
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retry honors context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Retry(ctx, NewFixedDelay(time.Second, 5), func() error {
			return errors.New("never reached after cancel")
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("delay grows and caps at max interval", func(t *testing.T) {
		policy := NewExponentialBackoff(10*time.Millisecond, 80*time.Millisecond, 2.0, 10)
		policy.Jitter = false

		_, d0 := policy.ShouldRetry(0, errors.New("e"))
		_, d3 := policy.ShouldRetry(3, errors.New("e"))
		_, d9 := policy.ShouldRetry(9, errors.New("e"))

		assert.Equal(t, 10*time.Millisecond, d0)
		assert.Equal(t, 80*time.Millisecond, d3)
		assert.Equal(t, 80*time.Millisecond, d9)
	})

	t.Run("stops after max attempts", func(t *testing.T) {
		policy := NewExponentialBackoff(time.Millisecond, time.Second, 2.0, 3)

		retry, _ := policy.ShouldRetry(3, errors.New("e"))
		assert.False(t, retry)
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("opens after failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(2), WithTimeout(time.Hour))
		fail := func() error { return errors.New("boom") }

		assert.Error(t, cb.Execute(context.Background(), fail))
		assert.Error(t, cb.Execute(context.Background(), fail))
		assert.Equal(t, StateOpen, cb.GetState())

		err := cb.Execute(context.Background(), func() error { return nil })
		var cbErr *CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
	})

	t.Run("half-open closes after success threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithSuccessThreshold(1),
			WithTimeout(time.Millisecond),
		)

		assert.Error(t, cb.Execute(context.Background(), func() error { return errors.New("boom") }))
		assert.Equal(t, StateOpen, cb.GetState())

		time.Sleep(5 * time.Millisecond)

		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("half-open failure reopens the circuit", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithTimeout(time.Millisecond))

		assert.Error(t, cb.Execute(context.Background(), func() error { return errors.New("boom") }))
		time.Sleep(5 * time.Millisecond)
		assert.Error(t, cb.Execute(context.Background(), func() error { return errors.New("still down") }))
		assert.Equal(t, StateOpen, cb.GetState())
	})

	t.Run("Reset closes the circuit", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(1))
		assert.Error(t, cb.Execute(context.Background(), func() error { return errors.New("boom") }))
		cb.Reset()
		assert.Equal(t, StateClosed, cb.GetState())
	})
}
