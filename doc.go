// Package rabbitmq bridges backpressured message streams onto RabbitMQ.
// It is a wrapper around https://github.com/streadway/amqp.
// Key points:
// - accepts a reactive-streams style producer (see the stream subpackage)
// - keeps the demand window at exactly one undelivered message
// - publishes strictly in delivery order through a single drain goroutine
// - never uses an AMQP channel from more than one goroutine
// - closes the channel exactly once, after the queue has fully drained
package rabbitmq
