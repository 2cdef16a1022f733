package rabbitmq

import (
	"time"

	"github.com/streadway/amqp"
	"github.com/vmihailenco/msgpack/v5"
)

// Message is one outbound publishing: wire-ready properties plus a payload.
type Message struct {
	ContentType string
	Headers     amqp.Table
	Priority    uint8
	MessageID   string
	Timestamp   time.Time
	Persistent  bool
	Body        []byte
}

// NewBytesMessage wraps a raw payload with the given content type.
func NewBytesMessage(contentType string, body []byte) *Message {
	return &Message{ContentType: contentType, Body: body, Timestamp: time.Now()}
}

// NewTextMessage wraps a plain text payload.
func NewTextMessage(text string) *Message {
	return NewBytesMessage("text/plain", []byte(text))
}

// NewMessage packs v with msgpack.
func NewMessage(v interface{}) (*Message, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewBytesMessage("application/x-msgpack", body), nil
}

// publishing translates the message into the wire representation.
func (m *Message) publishing() amqp.Publishing {
	deliveryMode := amqp.Transient
	if m.Persistent {
		deliveryMode = amqp.Persistent
	}
	return amqp.Publishing{
		Headers:      m.Headers,
		ContentType:  m.ContentType,
		DeliveryMode: deliveryMode,
		Priority:     m.Priority,
		MessageId:    m.MessageID,
		Timestamp:    m.Timestamp,
		Body:         m.Body,
	}
}
