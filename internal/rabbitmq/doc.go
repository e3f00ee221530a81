// Package rabbitmq contains the low-level AMQP plumbing used by the RabbitMQ
// transport: a connection manager with automatic reconnection, a channel pool
// for publishing, a confirming publisher, and an inbox consumer.
//
// Nothing in this package knows about agent addresses or chat payloads; it
// moves opaque bytes between queues. The address-aware layer lives in
// transports/rabbitmq.
package rabbitmq
