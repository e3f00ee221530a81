package messaging

import (
	"fmt"

	"github.com/agentwire/agentwire-go/contracts"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvelopeCodec serializes envelopes for the wire
type EnvelopeCodec struct{}

// Encode serializes an envelope to JSON
func (EnvelopeCodec) Encode(envelope *contracts.Envelope) ([]byte, error) {
	if envelope == nil {
		return nil, fmt.Errorf("envelope cannot be nil")
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// Decode deserializes JSON data to an envelope
func (EnvelopeCodec) Decode(data []byte) (*contracts.Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}
	var envelope contracts.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &envelope, nil
}

// DecodeMessage extracts the typed message from an envelope body. The
// envelope's correlation ID wins over whatever the body carries.
func DecodeMessage(envelope *contracts.Envelope) (contracts.Message, error) {
	if envelope == nil {
		return nil, fmt.Errorf("envelope cannot be nil")
	}

	var msg contracts.Message
	switch envelope.Type {
	case "ChatMessage":
		msg = &contracts.ChatMessage{}
	case "ChatAcknowledgement":
		msg = &contracts.ChatAcknowledgement{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", envelope.Type)
	}

	if err := json.Unmarshal(envelope.Body, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s body: %w", envelope.Type, err)
	}
	if envelope.CorrelationID != "" {
		msg.SetCorrelationID(envelope.CorrelationID)
	}
	return msg, nil
}
