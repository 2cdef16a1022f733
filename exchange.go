package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// ExchangeKind is exchange kind
type ExchangeKind string

// Exchange kinds supported by RabbitMQ
const (
	ExchangeDirect  ExchangeKind = "direct"
	ExchangeFanout  ExchangeKind = "fanout"
	ExchangeTopic   ExchangeKind = "topic"
	ExchangeHeaders ExchangeKind = "headers"
)

// MaxNameLength is the longest exchange name or routing key accepted by the
// protocol (AMQP short strings are limited to 255 bytes).
const MaxNameLength = 255

func validateName(what, name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s too long: %d bytes (max %d)", what, len(name), MaxNameLength)
	}
	return nil
}

// ExchangeDeclare declares an exchange on the connection using a throwaway
// channel. Declaring is idempotent as long as the parameters match the
// existing exchange.
func (c *Connection) ExchangeDeclare(name string, kind ExchangeKind,
	durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if err := validateName("exchange name", name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return &AMQPError{Message: "failed to open channel", Inner: err}
	}
	defer ch.Close() //nolint: errcheck
	if err := ch.ExchangeDeclare(name, string(kind), durable, autoDelete, internal, noWait, args); err != nil {
		return &AMQPError{Message: "failed to declare exchange", Inner: err}
	}
	return nil
}
