package contracts

import (
	"time"
)

// Message is the base interface for all messages
type Message interface {
	GetID() string
	GetTimestamp() time.Time
	GetType() string
	GetCorrelationID() string
	SetCorrelationID(correlationID string)
}

// Addressed is implemented by messages that know their sender
type Addressed interface {
	Message
	GetSender() string
}
