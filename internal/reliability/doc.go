// Package reliability provides retry and circuit breaker patterns used on the
// transport send path.
//
// Implementations are safe for concurrent use. Errors can opt out of retries
// by implementing IsRetryable() bool; unknown errors are retried.
package reliability
