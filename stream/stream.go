// Package stream defines the push-with-backpressure contracts used by this
// library. The shapes follow the reactive-streams specification: a Publisher
// delivers elements to a Subscriber only after demand has been signalled
// through the Subscription, and terminates the stream exactly once with
// either OnError or OnComplete.
package stream

// Subscription represents the one-to-one lifecycle of a Subscriber attached
// to a Publisher. It is the only way the Subscriber signals demand upstream.
type Subscription interface {
	// Request asks the Publisher for up to n more elements.
	// n must be >= 1.
	Request(n int)

	// Cancel asks the Publisher to stop delivering elements.
	// It is idempotent from the Subscriber's point of view; elements already
	// in flight may still arrive after Cancel returns.
	Cancel()
}

// Subscriber receives a Subscription once, then elements according to the
// demand it has requested, and finally exactly one terminal signal.
// OnError and OnComplete are mutually exclusive and no OnNext may follow
// either of them. A well-behaved Publisher serializes all calls.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T)
	OnError(err error)
	OnComplete()
}

// Publisher is a provider of a potentially unbounded number of sequenced
// elements, published according to the demand received from its Subscriber.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}
