package messaging

import (
	"fmt"
	"time"

	"github.com/agentwire/agentwire-go/contracts"
)

// EnvelopeFactory creates transport envelopes with proper metadata. The
// mapping is pure: no state is kept between calls.
type EnvelopeFactory struct {
	defaultHeaders map[string]interface{}
}

// EnvelopeOption configures envelope creation
type EnvelopeOption func(*contracts.Envelope)

// WithEnvelopeHeaders merges custom headers into the envelope
func WithEnvelopeHeaders(headers map[string]interface{}) EnvelopeOption {
	return func(e *contracts.Envelope) {
		if e.Headers == nil {
			e.Headers = make(map[string]interface{})
		}
		for k, v := range headers {
			e.Headers[k] = v
		}
	}
}

// NewEnvelopeFactory creates a new envelope factory
func NewEnvelopeFactory() *EnvelopeFactory {
	return &EnvelopeFactory{defaultHeaders: make(map[string]interface{})}
}

// NewEnvelopeFactoryWithDefaults creates a factory with default headers
func NewEnvelopeFactoryWithDefaults(defaultHeaders map[string]interface{}) *EnvelopeFactory {
	return &EnvelopeFactory{defaultHeaders: defaultHeaders}
}

// CreateEnvelope wraps a message into an envelope addressed from sender to
// target. The envelope ID is the message ID, so an acknowledgement that
// references the envelope references the message.
func (f *EnvelopeFactory) CreateEnvelope(message contracts.Message, sender, target string, opts ...EnvelopeOption) (*contracts.Envelope, error) {
	if message == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}

	body, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	envelope := &contracts.Envelope{
		ID:            message.GetID(),
		Type:          message.GetType(),
		CorrelationID: message.GetCorrelationID(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Sender:        sender,
		Target:        target,
		Headers:       make(map[string]interface{}),
		Body:          body,
	}

	for k, v := range f.defaultHeaders {
		envelope.Headers[k] = v
	}
	envelope.Headers["x-message-type"] = message.GetType()
	if envelope.CorrelationID != "" {
		envelope.Headers["x-correlation-id"] = envelope.CorrelationID
	}

	for _, opt := range opts {
		opt(envelope)
	}

	return envelope, nil
}
