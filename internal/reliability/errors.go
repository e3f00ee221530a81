package reliability

import (
	"fmt"
)

// CircuitBreakerError is returned when the circuit rejects a call
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// IsRetryable reports false: retrying immediately would hit the open circuit
func (e *CircuitBreakerError) IsRetryable() bool { return false }
