// Command reactive-cli publishes lines read from stdin to a RabbitMQ
// exchange through a backpressured stream: lines are only read as fast as
// the broker accepts them.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	rabbitmq "github.com/eLama/reactive-rabbit"
	"github.com/eLama/reactive-rabbit/stream"
)

// Options is command line options.
type Options struct {
	RabbitURL  string `short:"U" long:"amqp-url" description:"RabbitMQ connection URL" required:"true"`
	Exchange   string `short:"e" long:"exchange" description:"Exchange to publish to" required:"true"`
	RoutingKey string `short:"k" long:"routing-key" description:"Routing key set on every message"`
	Declare    bool   `long:"declare" description:"Declare the exchange before publishing"`
	Kind       string `long:"kind" description:"Exchange kind used with --declare" default:"direct" choice:"direct" choice:"fanout" choice:"topic" choice:"headers"` //nolint
	LogLevel   string `short:"l" long:"log-level" description:"Logging level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error"`             //nolint
}

var opts Options

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint: errcheck
	if err := run(logger); err != nil {
		logger.Error("exiting with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func run(logger *zap.Logger) error {
	notify := make(chan rabbitmq.NotifyEvent, 16)
	conn, err := rabbitmq.DialConfigured(opts.RabbitURL, rabbitmq.ConnectionConfig{Notify: notify}, logger)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint: errcheck

	if opts.Declare {
		err = conn.ExchangeDeclare(opts.Exchange, rabbitmq.ExchangeKind(opts.Kind), true, false, false, false, nil)
		if err != nil {
			return err
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	pub, err := rabbitmq.NewConfiguredPublisher(ch, opts.Exchange,
		rabbitmq.PublisherConfig{RoutingKey: opts.RoutingKey}, logger)
	if err != nil {
		return err
	}

	source := newLineSource(os.Stdin)
	source.Subscribe(pub)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigs:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			pub.Close()
		case e := <-notify:
			if e == rabbitmq.ClosedChannel {
				return nil
			}
		case <-time.After(time.Minute):
			if !ch.IsOpen() {
				return nil
			}
		}
	}
}

// lineSource is a stream.Publisher that emits one stdin line per unit of
// requested demand.
type lineSource struct {
	scanner *bufio.Scanner
	sub     stream.Subscriber[*rabbitmq.Message]
	demand  chan int
	cancel  chan struct{}
	once    sync.Once
}

func newLineSource(f *os.File) *lineSource {
	return &lineSource{
		scanner: bufio.NewScanner(f),
		demand:  make(chan int, 64),
		cancel:  make(chan struct{}),
	}
}

func (s *lineSource) Subscribe(sub stream.Subscriber[*rabbitmq.Message]) {
	s.sub = sub
	go s.run()
	sub.OnSubscribe(s)
}

func (s *lineSource) Request(n int) {
	select {
	case s.demand <- n:
	case <-s.cancel:
	}
}

func (s *lineSource) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

func (s *lineSource) run() {
	credit := 0
	for {
		if credit == 0 {
			select {
			case n := <-s.demand:
				credit += n
			case <-s.cancel:
				return
			}
			continue
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.sub.OnError(err)
			} else {
				s.sub.OnComplete()
			}
			return
		}
		credit--
		s.sub.OnNext(rabbitmq.NewTextMessage(s.scanner.Text()))
	}
}
