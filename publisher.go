package rabbitmq

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/eLama/reactive-rabbit/stream"
)

// PublisherConfig controls publisher parameters.
type PublisherConfig struct {

	// RoutingKey is set on every publishing. May be empty, which on a direct
	// or topic exchange means the publishing is only routed to bindings with
	// an empty key.
	RoutingKey string

	// Mandatory asks the server to return publishings that cannot be routed
	// to any queue instead of silently dropping them.
	Mandatory bool
}

// Publisher bridges a backpressured stream of messages onto a single AMQP
// channel. It implements stream.Subscriber[*Message]: attach it to a
// stream.Publisher and every delivered message is published to the configured
// exchange, in delivery order, by exactly one internal drain goroutine.
//
// The channel given to the publisher is owned exclusively by it from that
// point on: the drain goroutine is the only caller of Publish and the
// publisher closes the channel exactly once after the stream terminates and
// the queue has fully drained.
//
// Demand is kept at a fixed window of one: a single message is requested on
// subscription and one more after each successful publish, so a well-behaved
// upstream never has more than one undelivered message in flight. Messages
// delivered beyond granted demand are still queued and published in order.
//
// OnNext, OnError and OnComplete may be called from any goroutine.
type Publisher struct {
	exchange   string
	routingKey string
	mandatory  bool
	channel    Channel
	logger     *zap.Logger

	// mu guards pending, draining and sub. Appending to pending and reading
	// the previous draining value must be one critical section, as must
	// popping and re-deciding whether to keep draining: splitting either
	// would allow two drain goroutines or a lost wake-up.
	mu       sync.Mutex
	quiet    *sync.Cond // broadcast when draining drops to false
	pending  []*Message
	draining bool
	sub      stream.Subscription

	closeRequested atomic.Bool
}

// NewDefaultPublisher creates a publisher that publishes to exchange with an
// empty routing key. The channel must be freshly opened and not used by
// anything else. The exchange name is limited to 255 bytes.
func NewDefaultPublisher(channel Channel, exchange string, logger *zap.Logger) (*Publisher, error) {
	return NewConfiguredPublisher(channel, exchange, PublisherConfig{}, logger)
}

// NewConfiguredPublisher creates a publisher configured with cfg that
// publishes to exchange. The channel must be freshly opened and not used by
// anything else. Exchange name and routing key are limited to 255 bytes.
func NewConfiguredPublisher(channel Channel, exchange string, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	if err := validateName("exchange name", exchange); err != nil {
		return nil, err
	}
	if err := validateName("routing key", cfg.RoutingKey); err != nil {
		return nil, err
	}
	p := &Publisher{
		exchange:   exchange,
		routingKey: cfg.RoutingKey,
		mandatory:  cfg.Mandatory,
		channel:    channel,
		logger:     logger.With(zap.String("amqp_exchange", exchange)),
	}
	p.quiet = sync.NewCond(&p.mu)
	return p, nil
}

// OnSubscribe accepts the first subscription offered and requests one
// message. Any subsequent subscription is cancelled immediately; the held one
// is never replaced.
func (p *Publisher) OnSubscribe(s stream.Subscription) {
	p.mu.Lock()
	if p.sub != nil {
		p.mu.Unlock()
		p.logger.Warn("duplicate subscription offered, cancelling it")
		s.Cancel()
		return
	}
	p.sub = s
	p.mu.Unlock()
	s.Request(1)
}

// OnNext queues msg for publishing. If no drain goroutine is running one is
// started; otherwise the running one will pick the message up. A nil message
// is a contract breach by the upstream and panics.
func (p *Publisher) OnNext(msg *Message) {
	if msg == nil {
		panic("rabbitmq: nil message delivered to publisher")
	}
	p.mu.Lock()
	p.pending = append(p.pending, msg)
	spawn := !p.draining
	p.draining = true
	p.mu.Unlock()
	if spawn {
		go p.drain()
	}
}

// OnError records the upstream failure and shuts the publisher down once the
// queue has drained. It does not block.
func (p *Publisher) OnError(err error) {
	p.logger.Warn("stream failed, closing channel after drain", zap.Error(err))
	p.shutdownWhenFinished()
}

// OnComplete shuts the publisher down once the queue has drained.
// It does not block.
func (p *Publisher) OnComplete() {
	p.logger.Info("stream completed, closing channel after drain")
	p.shutdownWhenFinished()
}

// Close cancels the upstream subscription and closes the channel once
// already queued messages have drained. It is safe to call more than once
// and safe to call concurrently with the stream's own terminal signals;
// the channel is still closed exactly once. It does not block.
func (p *Publisher) Close() {
	if s := p.subscription(); s != nil {
		s.Cancel()
	}
	p.shutdownWhenFinished()
}

// drain pops and publishes queued messages one at a time. The loop decides
// whether to continue under the same lock that OnNext appends under: either
// this goroutine observes a concurrent append and keeps going, or the
// appender observes draining already reset and starts a new goroutine.
func (p *Publisher) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.draining = false
			p.quiet.Broadcast()
			p.mu.Unlock()
			return
		}
		msg := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.mu.Unlock()
		p.publish(msg)
	}
}

// publish performs one publish attempt. Success replenishes one unit of
// demand; failure cancels the subscription and initiates shutdown. The
// failing message is not retried, but messages already queued behind it are
// still attempted.
func (p *Publisher) publish(msg *Message) {
	err := p.channel.Publish(p.exchange, p.routingKey, p.mandatory, false, msg.publishing())
	s := p.subscription()
	if err != nil {
		p.logger.Warn("failed to publish, cancelling subscription", zap.Error(err))
		if s != nil {
			s.Cancel()
		}
		p.shutdownWhenFinished()
		return
	}
	if s != nil {
		s.Request(1)
	}
}

// shutdownWhenFinished closes the channel once the drain goroutine has fully
// exited. The wait suspends on a condition, it never runs on the caller's
// goroutine.
func (p *Publisher) shutdownWhenFinished() {
	go func() {
		p.mu.Lock()
		for p.draining {
			p.quiet.Wait()
		}
		p.mu.Unlock()
		p.requestClose()
	}()
}

// requestClose closes the channel at most once. Closing an AMQP channel
// twice can tear down the parent connection, hence both the one-shot flag
// and the liveness check.
func (p *Publisher) requestClose() {
	if !p.closeRequested.CompareAndSwap(false, true) {
		return
	}
	if !p.channel.IsOpen() {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("failed to close channel", zap.Error(err))
	}
}

func (p *Publisher) subscription() stream.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub
}
