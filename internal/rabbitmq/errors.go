package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrConnectionNotReady = errors.New("rabbitmq: connection not ready")
	ErrConnectionClosed   = errors.New("rabbitmq: connection is closed")
	ErrConnectionTimeout  = errors.New("rabbitmq: connection timeout")
	ErrMaxRetriesExceeded = errors.New("rabbitmq: maximum reconnection attempts exceeded")

	ErrChannelPoolClosed = errors.New("rabbitmq: channel pool is closed")

	ErrPublishNotConfirmed = errors.New("rabbitmq: publish not confirmed")
	ErrPublishTimeout      = errors.New("rabbitmq: publish confirmation timeout")
)

// ConnectionError wraps a failure to establish or keep a broker connection.
type ConnectionError struct {
	Op       string
	URL      string
	Err      error
	Attempts int
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("rabbitmq connection error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError wraps a failure to publish to a queue.
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("rabbitmq publish error: exchange %q routing key %q: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ConsumerError wraps a failure to consume from a queue.
type ConsumerError struct {
	Queue string
	Op    string
	Err   error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("rabbitmq consumer error: %s on queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error { return e.Err }

// SanitizeURL strips credentials from an AMQP URL so it is safe to log.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
