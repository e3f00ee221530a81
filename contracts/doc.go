// Package contracts provides the core message types and interfaces for agentwire.
//
// This package defines the wire contracts exchanged between agents:
//   - Message: Base interface for all messages
//   - ChatMessage: A chat protocol message carrying ordered content segments
//   - ChatAcknowledgement: Receipt confirmation referencing an earlier message
//   - Envelope: The transport wrapper that carries serialized messages
//
// Content segments form a tagged variant list: a message may mix text segments
// with session markers or segments this node does not recognize. Extraction
// helpers are total and degrade to best-effort results on unknown variants.
package contracts
