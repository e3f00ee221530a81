package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/google/uuid"
)

// Publisher is the outbound half of the transport as the bridge sees it
type Publisher interface {
	Send(ctx context.Context, target string, msg contracts.Message) error
}

// MatchingPolicy selects how inbound replies are attached to pending requests
type MatchingPolicy int

const (
	// MatchFIFO resolves the oldest outstanding request. Valid only with a
	// single remote partner that answers strictly in request order.
	MatchFIFO MatchingPolicy = iota
	// MatchCorrelationID resolves the request named by the reply's
	// correlation identifier.
	MatchCorrelationID
)

// DefaultTimeout is used when Forward is called with a zero timeout
const DefaultTimeout = 60 * time.Second

// SyncAsyncBridge turns the one-way chat transport into a blocking
// request-response call. Each Forward suspends on its own result slot, so any
// number of callers can be in flight at once.
type SyncAsyncBridge struct {
	publisher      Publisher
	table          *correlationTable
	target         string
	policy         MatchingPolicy
	defaultTimeout time.Duration
	maxPending     int
	cleanupTicker  *time.Ticker
	done           chan struct{}
	closeOnce      sync.Once
	logger         *slog.Logger
}

// BridgeOption configures the bridge
type BridgeOption func(*SyncAsyncBridge)

// WithDefaultTimeout sets the timeout used when callers pass zero
func WithDefaultTimeout(timeout time.Duration) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.defaultTimeout = timeout
	}
}

// WithMatchingPolicy selects the reply resolution policy
func WithMatchingPolicy(policy MatchingPolicy) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.policy = policy
	}
}

// WithMaxPendingRequests bounds the number of concurrently outstanding
// requests; Forward fails fast once the limit is reached
func WithMaxPendingRequests(max int) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.maxPending = max
	}
}

// WithCleanupInterval sets how often expired entries are swept
func WithCleanupInterval(interval time.Duration) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.cleanupTicker.Reset(interval)
	}
}

// WithBridgeLogger sets the logger
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.logger = logger
	}
}

// NewSyncAsyncBridge creates a bridge that forwards to the agent at target
func NewSyncAsyncBridge(publisher Publisher, target string, opts ...BridgeOption) (*SyncAsyncBridge, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if target == "" {
		return nil, fmt.Errorf("target address cannot be empty")
	}

	b := &SyncAsyncBridge{
		publisher:      publisher,
		table:          newCorrelationTable(),
		target:         target,
		policy:         MatchFIFO,
		defaultTimeout: DefaultTimeout,
		maxPending:     1000,
		cleanupTicker:  time.NewTicker(30 * time.Second),
		done:           make(chan struct{}),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.cleanupLoop()

	return b, nil
}

// Forward sends text to the remote agent and blocks until a reply resolves
// this call or the timeout elapses. A zero timeout means the default. The
// returned error is a *TransportError when the send itself failed and a
// *TimeoutError when no reply arrived in time; both leave the bridge fully
// usable.
func (b *SyncAsyncBridge) Forward(ctx context.Context, text string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	start := time.Now()
	defer func() {
		metricForwardDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := b.register(timeout)
	if err != nil {
		return "", err
	}
	// Cleanup is idempotent: the reply handler may already have removed the
	// entry, and that is fine.
	defer func() {
		b.table.remove(req.id)
		b.syncPendingGauge()
	}()

	if err := b.dispatch(ctx, text, req.id); err != nil {
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-req.result:
		return result, nil
	case <-timer.C:
		metricTimeouts.Inc()
		b.logger.Warn("request timed out", "correlationId", req.id, "timeout", timeout)
		return "", &TimeoutError{CorrelationID: req.id, Timeout: timeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Notify sends text one-way. The correlation entry is still created and
// dispatched so a reply can be attributed, but nobody waits on it; the sweep
// reclaims it after the default timeout.
func (b *SyncAsyncBridge) Notify(ctx context.Context, text string) error {
	req, err := b.register(b.defaultTimeout)
	if err != nil {
		return err
	}

	if err := b.dispatch(ctx, text, req.id); err != nil {
		return err
	}
	return nil
}

// register creates a fresh pending entry with an id unique among outstanding
// requests. The table enforces maxPending under its own lock.
func (b *SyncAsyncBridge) register(timeout time.Duration) (*pendingRequest, error) {
	deadline := time.Now().Add(timeout)
	for {
		req, err := b.table.insert(uuid.New().String(), deadline, b.maxPending)
		if errors.Is(err, errDuplicateID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		b.syncPendingGauge()
		return req, nil
	}
}

// dispatch wraps the payload and submits it. On failure the pending entry is
// removed immediately: no suspension, no timer.
func (b *SyncAsyncBridge) dispatch(ctx context.Context, text, correlationID string) error {
	msg := contracts.NewChatMessage(text)
	msg.SetCorrelationID(correlationID)

	if err := b.publisher.Send(ctx, b.target, msg); err != nil {
		b.table.remove(correlationID)
		b.syncPendingGauge()
		metricTransportErrors.Inc()
		return &TransportError{Err: err}
	}

	b.logger.Debug("request dispatched",
		"correlationId", correlationID,
		"target", b.target,
	)
	return nil
}

// HandleReply is the transport callback for inbound chat messages. It never
// returns an error: extraction failures degrade to an empty payload, replies
// with no pending caller are dropped, and the acknowledgement goes out
// regardless. A panic here would leak every outstanding request until its
// timeout, so everything is handled in-line.
func (b *SyncAsyncBridge) HandleReply(ctx context.Context, msg contracts.Message) error {
	chat, ok := msg.(*contracts.ChatMessage)
	if !ok {
		b.logger.Warn("ignoring non-chat message on reply path", "messageType", msg.GetType())
		return nil
	}

	text := chat.Text()

	var (
		resolvedID string
		resolved   bool
	)
	switch b.policy {
	case MatchCorrelationID:
		if id := chat.GetCorrelationID(); id != "" {
			resolved = b.table.resolve(id, text)
			resolvedID = id
		}
	default:
		resolvedID, resolved = b.table.resolveOldest(text)
	}
	b.syncPendingGauge()

	if resolved {
		b.logger.Info("reply resolved pending request",
			"correlationId", resolvedID,
			"replyId", chat.GetID(),
		)
	} else {
		metricDroppedReplies.Inc()
		b.logger.Info("dropping reply with no pending caller", "replyId", chat.GetID())
	}

	b.acknowledge(ctx, chat)
	return nil
}

// HandleAck is the transport callback for inbound acknowledgements
func (b *SyncAsyncBridge) HandleAck(ctx context.Context, msg contracts.Message) error {
	ack, ok := msg.(*contracts.ChatAcknowledgement)
	if !ok {
		return nil
	}
	b.logger.Debug("acknowledgement received",
		"sender", ack.GetSender(),
		"acknowledgedMsgId", ack.AcknowledgedMsgID,
	)
	return nil
}

// acknowledge confirms receipt per the chat protocol, pending caller or not.
// Failures are logged, never surfaced: there is no caller to surface them to.
func (b *SyncAsyncBridge) acknowledge(ctx context.Context, chat *contracts.ChatMessage) {
	target := chat.GetSender()
	if target == "" {
		target = b.target
	}

	ack := contracts.NewChatAcknowledgement(chat.GetID())
	if err := b.publisher.Send(ctx, target, ack); err != nil {
		b.logger.Warn("failed to send acknowledgement",
			"target", target,
			"acknowledgedMsgId", chat.GetID(),
			"error", err,
		)
	}
}

// PendingRequests returns the number of outstanding requests
func (b *SyncAsyncBridge) PendingRequests() int {
	return b.table.len()
}

// Target returns the remote agent address this bridge forwards to
func (b *SyncAsyncBridge) Target() string {
	return b.target
}

// Close stops the sweep loop and discards all pending entries. Waiting
// callers will time out on their own timers.
func (b *SyncAsyncBridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.cleanupTicker.Stop()
		n := b.table.clear()
		b.syncPendingGauge()
		if n > 0 {
			b.logger.Info("discarded pending requests on close", "count", n)
		}
	})
	return nil
}

func (b *SyncAsyncBridge) cleanupLoop() {
	for {
		select {
		case <-b.cleanupTicker.C:
			expired := b.table.sweepExpired(time.Now())
			b.syncPendingGauge()
			for _, id := range expired {
				b.logger.Debug("swept expired pending request", "correlationId", id)
			}
		case <-b.done:
			return
		}
	}
}

func (b *SyncAsyncBridge) syncPendingGauge() {
	metricPendingRequests.Set(float64(b.table.len()))
}
