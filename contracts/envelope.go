package contracts

import (
	"encoding/json"
)

// Envelope wraps messages for transport. Sender and Target are agent
// addresses; routing happens entirely on Target.
type Envelope struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Timestamp     string                 `json:"timestamp"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Sender        string                 `json:"sender,omitempty"`
	Target        string                 `json:"target,omitempty"`
	Headers       map[string]interface{} `json:"headers,omitempty"`
	Body          json.RawMessage        `json:"body"`
}
