package queue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/riders-api/riders"
)

// Message is a delivered message. Acknowledgement is handled by the client.
type Message struct {
	Exchange    string
	RoutingKey  string
	Body        []byte
	ContentType string
	MessageID   string
	Timestamp   time.Time
	DeliveryTag uint64
	Redelivered bool
}

func newMessage(d amqp.Delivery) Message {
	return Message{
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		Body:        d.Body,
		ContentType: d.ContentType,
		MessageID:   d.MessageId,
		Timestamp:   d.Timestamp,
		DeliveryTag: d.DeliveryTag,
		Redelivered: d.Redelivered,
	}
}

// Callback processes one message. Returning an error requeues the message.
type Callback func(ctx context.Context, msg Message) error

// HandlerError reports a message whose callback failed and which was requeued.
type HandlerError struct {
	Queue   string
	Message Message
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("consume %s: message %d requeued: %v", e.Queue, e.Message.DeliveryTag, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Consume returns the endless sequence of messages delivered from queue. The
// queue is declared first if it does not exist.
//
// For each delivery callback runs before the pair is yielded. A nil callback
// error acks the delivery and yields (msg, nil); otherwise the delivery is
// nacked with requeue and (msg, *HandlerError) is yielded. Setup failures and
// a lost channel yield a single error and end the sequence.
//
// Cancelling ctx or breaking out of the loop cancels the consumer and requeues
// deliveries that were prefetched but not processed.
func (c *Client) Consume(ctx context.Context, queue string, callback Callback) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		ch, tag, deliveries, err := c.subscribe(ctx, queue)
		if err != nil {
			yield(Message{}, fmt.Errorf("consume %s: %w", queue, err))
			return
		}
		defer c.release(ch, queue, tag, deliveries)

		for {
			// Deliveries may be ready at the same time; cancellation wins.
			if ctx.Err() != nil {
				return
			}

			select {
			case <-ctx.Done():
				return

			case d, ok := <-deliveries:
				if !ok {
					yield(Message{}, fmt.Errorf("consume %s: %w: delivery channel closed", queue, riders.ErrConnectivity))
					return
				}

				msg := newMessage(d)
				c.metrics.RecordConsume(queue)

				if err := c.process(ctx, queue, d, msg, callback); err != nil {
					if !yield(msg, err) {
						return
					}
					continue
				}

				if !yield(msg, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) subscribe(ctx context.Context, queue string) (Channel, string, <-chan amqp.Delivery, error) {
	if queue == "" {
		return nil, "", nil, fmt.Errorf("%w: queue name is required", riders.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.live()
	if err != nil {
		return nil, "", nil, err
	}

	if _, err := ch.QueueDeclare(queue, c.durable, false, false, false, nil); err != nil {
		return nil, "", nil, fmt.Errorf("declare: %w", wrapAMQP(err))
	}

	tag := ConnectionName + "-" + uuid.NewString()
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("register consumer: %w", wrapAMQP(err))
	}

	c.logger.Info("consumer started", "queue", queue, "consumer", tag)
	return ch, tag, deliveries, nil
}

// process runs callback and settles the delivery exactly once.
func (c *Client) process(ctx context.Context, queue string, d amqp.Delivery, msg Message, callback Callback) error {
	var cbErr error
	if callback != nil {
		cbErr = callback(ctx, msg)
	}

	if cbErr == nil {
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("consume %s: ack: %w", queue, wrapAMQP(err))
		}
		return nil
	}

	c.metrics.RecordRequeue(queue)
	c.logger.Warn("message requeued", "queue", queue, "delivery_tag", d.DeliveryTag, "err", cbErr)

	handlerErr := &HandlerError{Queue: queue, Message: msg, Err: cbErr}
	if err := d.Nack(false, true); err != nil {
		return errors.Join(handlerErr, fmt.Errorf("consume %s: nack: %w", queue, wrapAMQP(err)))
	}
	return handlerErr
}

// release cancels the consumer and requeues deliveries already buffered for it.
// A successful Cancel closes deliveries once the client has flushed its
// buffer, so the drain blocks until then. A closed channel returns its
// unacknowledged deliveries to the queue by itself.
func (c *Client) release(ch Channel, queue, tag string, deliveries <-chan amqp.Delivery) {
	if err := ch.Cancel(tag, false); err != nil {
		if !errors.Is(err, amqp.ErrClosed) {
			c.logger.Warn("consumer cancel failed", "queue", queue, "consumer", tag, "err", err)
		}
		c.logger.Info("consumer stopped", "queue", queue, "consumer", tag)
		return
	}

	requeued := 0
	for d := range deliveries {
		if err := d.Nack(false, true); err == nil {
			requeued++
		}
	}
	c.logger.Info("consumer stopped", "queue", queue, "consumer", tag, "requeued", requeued)
}

// Producer wraps fn so that calling the result publishes fn's output to the
// default exchange with routingKey.
func Producer[A any](c *Client, routingKey string, fn func(context.Context, A) ([]byte, error)) func(context.Context, A) error {
	return func(ctx context.Context, args A) error {
		body, err := fn(ctx, args)
		if err != nil {
			return err
		}
		return c.Publish(ctx, routingKey, body)
	}
}

// Consumer returns a worker that consumes queue and runs callback and then fn
// for every message. The message is acked only when both succeed.
//
// The worker logs and skips requeued messages. It returns nil when ctx is
// cancelled, or the error that ended the consume loop.
func Consumer(c *Client, queue string, callback, fn Callback) func(context.Context) error {
	handle := func(ctx context.Context, msg Message) error {
		if callback != nil {
			if err := callback(ctx, msg); err != nil {
				return err
			}
		}
		return fn(ctx, msg)
	}

	return func(ctx context.Context) error {
		for _, err := range c.Consume(ctx, queue, handle) {
			if err == nil {
				continue
			}
			var handlerErr *HandlerError
			if errors.As(err, &handlerErr) {
				continue
			}
			return err
		}
		return nil
	}
}
