// Package messaging provides the transport-facing plumbing for agentwire.
//
// It implements the seam between domain messages and the one-way transport:
//   - Transport interfaces: publisher, subscriber, and delivery abstractions
//   - EnvelopeFactory: wraps messages into transport envelopes
//   - EnvelopeCodec: JSON (de)serialization of envelopes and their bodies
//   - MessageDispatcher: routes decoded inbound messages to handlers by type
//   - MessagePublisher: publishing with retry, circuit breaker, and logging
//   - MessageSubscriber: consumption with decode, dispatch, and acknowledgment
//
// The transport is fire-and-forget: nothing in this package correlates
// requests with replies. That is the bridge package's job.
package messaging
