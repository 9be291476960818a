package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/metrics"
)

// ExchangeKind selects how an exchange matches routing keys.
type ExchangeKind string

const (
	Direct  ExchangeKind = amqp.ExchangeDirect
	Fanout  ExchangeKind = amqp.ExchangeFanout
	Topic   ExchangeKind = amqp.ExchangeTopic
	Headers ExchangeKind = amqp.ExchangeHeaders
)

// Valid reports whether k is one of the four standard exchange kinds.
func (k ExchangeKind) Valid() bool {
	switch k {
	case Direct, Fanout, Topic, Headers:
		return true
	}
	return false
}

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

const (
	DefaultPrefetch      = 10
	DefaultRetryInterval = 500 * time.Millisecond

	// Buffer for confirmation and return notifications. The amqp091 reader
	// blocks when these are full.
	notifyBuffer = 64
)

// Client manages one connection and one channel to a RabbitMQ broker.
type Client struct {
	url           string
	prefetch      int
	confirms      bool
	durable       bool
	retries       int
	retryInterval time.Duration
	dial          Dialer
	logger        *slog.Logger
	metrics       *metrics.Collector

	// mu guards the fields below and serializes publish with its confirm wait.
	mu       sync.Mutex
	conn     Connection
	ch       Channel
	confirm  chan amqp.Confirmation
	returned chan amqp.Return
	closed   chan *amqp.Error
	lastTag  uint64
}

// Option configures a Client.
type Option func(*Client)

// WithPrefetch sets the QoS prefetch count (default 10).
func WithPrefetch(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithConfirms enables or disables publisher confirms (default enabled).
func WithConfirms(enabled bool) Option {
	return func(c *Client) {
		c.confirms = enabled
	}
}

// WithDurable declares durable exchanges and queues and publishes persistent messages.
func WithDurable(durable bool) Option {
	return func(c *Client) {
		c.durable = durable
	}
}

// WithConnectRetries retries a failed dial up to n times with exponential backoff.
func WithConnectRetries(n int, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.retries = max(n, 0)
		if initialInterval > 0 {
			c.retryInterval = initialInterval
		}
	}
}

// WithDialer replaces the broker dialer.
func WithDialer(dial Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// New creates a disconnected Client for the broker at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:           url,
		prefetch:      DefaultPrefetch,
		confirms:      true,
		retryInterval: DefaultRetryInterval,
		dial:          DialAMQP,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports whether the client holds a broker connection.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Disconnected
	}
	return Connected
}

// Connect dials the broker, opens the channel and applies the prefetch limit.
// Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := c.dialWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.conn = conn

	if err := c.openChannel(); err != nil {
		_ = conn.Close()
		c.conn = nil
		return fmt.Errorf("connect: %w", err)
	}

	c.logger.Info("amqp connected", "prefetch", c.prefetch, "confirms", c.confirms)
	return nil
}

func (c *Client) dialWithRetry(ctx context.Context) (Connection, error) {
	operation := func() (Connection, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		conn, err := c.dial(c.url)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx)

	conn, err := backoff.RetryNotifyWithData(operation, b, func(err error, wait time.Duration) {
		c.logger.Warn("amqp dial failed, retrying", "err", err, "wait", wait)
	})
	if err != nil {
		if errors.Is(err, riders.ErrConnectivity) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", riders.ErrConnectivity, err)
	}
	return conn, nil
}

// openChannel opens a channel on c.conn and registers notifications. c.mu must be held.
func (c *Client) openChannel() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w: %w", riders.ErrConnectivity, err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set qos: %w", wrapAMQP(err))
	}

	if c.confirms {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return fmt.Errorf("enable confirms: %w", wrapAMQP(err))
		}
		c.confirm = ch.NotifyPublish(make(chan amqp.Confirmation, notifyBuffer))
		c.returned = ch.NotifyReturn(make(chan amqp.Return, notifyBuffer))
		c.lastTag = 0
	}

	c.closed = ch.NotifyClose(make(chan *amqp.Error, 1))
	c.ch = ch
	return nil
}

// live returns an open channel, reopening it when the broker closed only the
// channel. c.mu must be held.
func (c *Client) live() (Channel, error) {
	if c.conn == nil {
		return nil, riders.ErrNotConnected
	}

	if c.ch != nil {
		select {
		case amqpErr := <-c.closed:
			c.logger.Warn("amqp channel closed", "err", amqpErr)
			c.ch = nil
		default:
		}
	}

	if c.ch != nil {
		return c.ch, nil
	}

	if c.conn.IsClosed() {
		return nil, fmt.Errorf("%w: connection closed", riders.ErrConnectivity)
	}
	if err := c.openChannel(); err != nil {
		return nil, err
	}
	return c.ch, nil
}

// DeclareExchange declares an exchange. Redeclaring with the same parameters is a no-op.
func (c *Client) DeclareExchange(ctx context.Context, name string, kind ExchangeKind) error {
	if name == "" {
		return fmt.Errorf("declare exchange: %w: name is required", riders.ErrInvalidInput)
	}
	if !kind.Valid() {
		return fmt.Errorf("declare exchange %s: %w: unknown kind %q", name, riders.ErrInvalidInput, kind)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.live()
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}

	if err := ch.ExchangeDeclare(name, string(kind), c.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, wrapAMQP(err))
	}
	return nil
}

// DeclareQueue declares a queue and binds it to exchange under routingKey.
// An empty exchange leaves the queue on the default exchange, where it is
// reachable by its own name.
func (c *Client) DeclareQueue(ctx context.Context, name, routingKey, exchange string) error {
	if name == "" {
		return fmt.Errorf("declare queue: %w: name is required", riders.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.live()
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	if _, err := ch.QueueDeclare(name, c.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, wrapAMQP(err))
	}

	if exchange == "" {
		return nil
	}

	if err := ch.QueueBind(name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", name, exchange, wrapAMQP(err))
	}
	return nil
}

// Publish sends body to the default exchange with routingKey.
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	return c.PublishTo(ctx, "", routingKey, body)
}

// PublishTo sends body to exchange with routingKey.
//
// With confirms enabled the call blocks until the broker acknowledges the
// message. A message no queue accepts fails with riders.ErrRouting, as does a
// publish to an exchange that does not exist.
func (c *Client) PublishTo(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.live()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	if c.confirms {
		drain(c.returned)
	}

	msg := amqp.Publishing{
		MessageId: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Body:      body,
	}
	if c.durable {
		msg.DeliveryMode = amqp.Persistent
	}

	if err := ch.PublishWithContext(ctx, exchange, routingKey, c.confirms, false, msg); err != nil {
		c.metrics.RecordError("queue", "publish")
		return fmt.Errorf("publish %s: %w", routingKey, wrapAMQP(err))
	}

	if c.confirms {
		c.lastTag++
		if err := c.awaitConfirm(ctx, c.lastTag); err != nil {
			c.metrics.RecordError("queue", "publish")
			return fmt.Errorf("publish %s: %w", routingKey, err)
		}
	}

	c.metrics.RecordPublish(exchange, routingKey)
	c.logger.Debug("message published", "exchange", exchange, "routing_key", routingKey, "bytes", len(body))
	return nil
}

// awaitConfirm waits for the confirmation of delivery tag. c.mu must be held.
func (c *Client) awaitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("await confirm: %w", ctx.Err())

		case amqpErr, ok := <-c.closed:
			c.ch = nil
			if !ok || amqpErr == nil {
				return fmt.Errorf("%w: channel closed", riders.ErrConnectivity)
			}
			return wrapAMQP(amqpErr)

		case conf, ok := <-c.confirm:
			if !ok {
				return c.channelLost()
			}
			if conf.DeliveryTag < tag {
				continue
			}

			// A return for a mandatory message precedes its confirmation.
			select {
			case ret := <-c.returned:
				return fmt.Errorf("%w: %d %s", riders.ErrRouting, ret.ReplyCode, ret.ReplyText)
			default:
			}

			if !conf.Ack {
				return fmt.Errorf("%w: broker rejected message", riders.ErrConnectivity)
			}
			return nil
		}
	}
}

// channelLost reports why the channel closed. The close reason is delivered
// before the notification channels are closed. c.mu must be held.
func (c *Client) channelLost() error {
	c.ch = nil
	select {
	case amqpErr, ok := <-c.closed:
		if ok && amqpErr != nil {
			return wrapAMQP(amqpErr)
		}
	default:
	}
	return fmt.Errorf("%w: channel closed", riders.ErrConnectivity)
}

// drain discards stale returns left by publishes whose confirm wait was abandoned.
func drain(returned <-chan amqp.Return) {
	for {
		select {
		case <-returned:
		default:
			return
		}
	}
}

// Close closes the channel and the connection. The client can be connected again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	var errs []error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}

	c.conn = nil
	c.ch = nil
	c.logger.Info("amqp disconnected")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// wrapAMQP classifies a broker error into the riders taxonomy.
func wrapAMQP(err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.NotFound, amqp.NoRoute:
			return fmt.Errorf("%w: %w", riders.ErrRouting, err)
		case amqp.PreconditionFailed, amqp.AccessRefused:
			return fmt.Errorf("%w: %w", riders.ErrInvalidInput, err)
		}
	}
	return fmt.Errorf("%w: %w", riders.ErrConnectivity, err)
}
