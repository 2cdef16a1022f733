package rabbitmq

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNewMessage_PacksBody(t *testing.T) {
	type event struct {
		Name  string
		Count int
	}
	msg, err := NewMessage(event{Name: "deploy", Count: 3})
	require.NoError(t, err)
	require.Equal(t, "application/x-msgpack", msg.ContentType)

	var decoded event
	require.NoError(t, msgpack.Unmarshal(msg.Body, &decoded))
	require.Equal(t, event{Name: "deploy", Count: 3}, decoded)
}

func TestMessage_Publishing(t *testing.T) {
	msg := NewTextMessage("hello")
	msg.Priority = 7
	msg.MessageID = "id-42"
	msg.Headers = amqp.Table{"origin": "test"}

	pub := msg.publishing()
	require.Equal(t, "text/plain", pub.ContentType)
	require.Equal(t, []byte("hello"), pub.Body)
	require.Equal(t, uint8(7), pub.Priority)
	require.Equal(t, "id-42", pub.MessageId)
	require.Equal(t, amqp.Table{"origin": "test"}, pub.Headers)
	require.Equal(t, amqp.Transient, pub.DeliveryMode)

	msg.Persistent = true
	require.Equal(t, amqp.Persistent, msg.publishing().DeliveryMode)
}
