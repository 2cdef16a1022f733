package rabbitmq

import (
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Channel is the transmit side of an AMQP channel as seen by a Publisher.
// Implementations are not safe for concurrent use: at most one Publish call
// may be in flight at a time, and Close must not be called twice (closing an
// already closed channel may tear down the parent connection).
type Channel interface {
	// Publish sends one publishing to the given exchange with the given
	// routing key. It blocks until the client library has accepted the frame
	// and returns an error if the channel is no longer usable.
	Publish(exchange, routingKey string, mandatory, immediate bool, pub amqp.Publishing) error

	// IsOpen reports whether the channel is still usable for publishing.
	IsOpen() bool

	// Close releases the channel. Callers must guarantee it is invoked at
	// most once over the channel's lifetime.
	Close() error
}

// liveChannel wraps *amqp.Channel and tracks its liveness through the
// NotifyClose event so that IsOpen stays accurate after server-side closes.
type liveChannel struct {
	channel  *amqp.Channel
	invalid  atomic.Bool
	id       string
	logger   *zap.Logger
	onClosed func()
	notify   sync.Once
}

func newLiveChannel(ch *amqp.Channel, id string, logger *zap.Logger, onClosed func()) *liveChannel {
	lc := &liveChannel{channel: ch, id: id, logger: logger, onClosed: onClosed}
	closeRcv := make(chan *amqp.Error)
	ch.NotifyClose(closeRcv)
	go func() {
		for e := range closeRcv {
			if e != nil {
				lc.logger.Warn("channel closed by server", zap.Error(e))
			}
			lc.invalid.Store(true)
		}
		// graceful local close also lands here once the chan is closed
		lc.closed()
	}()
	return lc
}

func (lc *liveChannel) closed() {
	lc.invalid.Store(true)
	lc.notify.Do(lc.onClosed)
}

func (lc *liveChannel) Publish(exchange, routingKey string, mandatory, immediate bool, pub amqp.Publishing) error {
	err := lc.channel.Publish(exchange, routingKey, mandatory, immediate, pub)
	if err != nil {
		return &AMQPError{Message: "failed to publish", Inner: err, Channel: lc.id}
	}
	return nil
}

func (lc *liveChannel) IsOpen() bool {
	return !lc.invalid.Load()
}

func (lc *liveChannel) Close() error {
	lc.closed()
	if err := lc.channel.Close(); err != nil {
		return &AMQPError{Message: "failed to close channel", Inner: err, Channel: lc.id}
	}
	lc.logger.Debug("channel closed")
	return nil
}
