package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dialTimeout = 30 * time.Second

// ConnectionManager holds the broker connection and reconnects when it drops.
type ConnectionManager struct {
	url            string
	reconnectDelay time.Duration
	maxRetries     int
	logger         *slog.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	notifyClose chan *amqp.Error
	isConnected bool
	done        chan struct{}
	closeOnce   sync.Once
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithReconnectDelay sets the base delay between reconnection attempts.
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.reconnectDelay = delay
	}
}

// WithMaxRetries caps reconnection attempts. Negative means retry forever.
func WithMaxRetries(retries int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxRetries = retries
	}
}

// NewConnectionManager creates a manager for the given AMQP URL. Connect must
// be called before the connection is usable.
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		reconnectDelay: 5 * time.Second,
		maxRetries:     -1,
		logger:         slog.Default(),
		done:           make(chan struct{}),
	}
	for _, opt := range options {
		opt(cm)
	}
	return cm
}

// Connect establishes the initial connection and starts the reconnect watcher.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	conn, err := cm.dial(ctx)
	if err != nil {
		return &ConnectionError{Op: "connect", URL: SanitizeURL(cm.url), Err: err, Attempts: 1}
	}

	cm.adopt(conn)
	cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))

	go cm.watch()
	return nil
}

// GetConnection returns the live connection or an error if it is unavailable.
func (cm *ConnectionManager) GetConnection() (*amqp.Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}
	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	return cm.conn, nil
}

// IsConnected reports whether a live connection is held.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected && cm.conn != nil && !cm.conn.IsClosed()
}

// Close shuts down the connection and stops reconnecting.
func (cm *ConnectionManager) Close() error {
	cm.closeOnce.Do(func() { close(cm.done) })

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.isConnected = false
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		if err != nil && err != amqp.ErrClosed {
			cm.logger.Warn("error closing connection", "error", err)
		}
	}
	return nil
}

// dial attempts a single connection, bounded by dialTimeout and ctx.
func (cm *ConnectionManager) dial(ctx context.Context) (*amqp.Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	connCh := make(chan *amqp.Connection, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(cm.url)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case conn := <-connCh:
		return conn, nil
	case err := <-errCh:
		return nil, err
	case <-dialCtx.Done():
		return nil, ErrConnectionTimeout
	}
}

// adopt installs a fresh connection. Caller holds cm.mu.
func (cm *ConnectionManager) adopt(conn *amqp.Connection) {
	cm.conn = conn
	cm.isConnected = true
	cm.notifyClose = make(chan *amqp.Error, 1)
	conn.NotifyClose(cm.notifyClose)
}

// watch blocks until the connection drops and then reconnects, looping until
// Close is called.
func (cm *ConnectionManager) watch() {
	for {
		cm.mu.RLock()
		notify := cm.notifyClose
		cm.mu.RUnlock()

		select {
		case err := <-notify:
			if err != nil {
				cm.logger.Error("connection lost", "error", err)
			}
			cm.mu.Lock()
			cm.isConnected = false
			cm.conn = nil
			cm.mu.Unlock()

			if !cm.reconnect() {
				return
			}
		case <-cm.done:
			return
		}
	}
}

// reconnect retries until a connection is adopted or the retry budget runs
// out. Returns false when the watcher should stop.
func (cm *ConnectionManager) reconnect() bool {
	attempt := 0
	for {
		select {
		case <-cm.done:
			return false
		default:
		}

		if cm.maxRetries >= 0 && attempt >= cm.maxRetries {
			cm.logger.Error("giving up on reconnection", "attempts", attempt)
			return false
		}

		if attempt > 0 {
			select {
			case <-time.After(cm.backoff(attempt)):
			case <-cm.done:
				return false
			}
		}

		cm.logger.Info("reconnecting to RabbitMQ", "attempt", attempt+1)
		conn, err := cm.dial(context.Background())
		if err != nil {
			cm.logger.Error("reconnection attempt failed", "attempt", attempt+1, "error", err)
			attempt++
			continue
		}

		cm.mu.Lock()
		cm.adopt(conn)
		cm.mu.Unlock()
		cm.logger.Info("reconnected to RabbitMQ", "attempts", attempt+1)
		return true
	}
}

// backoff doubles the base delay per attempt, capped at five minutes.
func (cm *ConnectionManager) backoff(attempt int) time.Duration {
	base := cm.reconnectDelay
	if base <= 0 {
		base = 5 * time.Second
	}
	delay := base * time.Duration(1<<uint(attempt))
	if max := 5 * time.Minute; delay > max {
		delay = max
	}
	return delay
}
