package queue_test

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/riders-api/riders/queue"
)

// fakeBroker is an in-memory broker implementing enough AMQP semantics for
// the client: default, direct and fanout routing, mandatory returns,
// confirms, and ack/nack with requeue.
type fakeBroker struct {
	mu        sync.Mutex
	exchanges map[string]string
	queues    map[string]*fakeQueue
	conns     []*fakeConnection
	dials     int
	failDials int
}

type fakeQueue struct {
	name     string
	bindings []fakeBinding
	pending  []amqp.Delivery
	consumer *fakeConsumer
	acked    [][]byte
	nacked   [][]byte
}

type fakeBinding struct {
	exchange string
	key      string
}

// fakeConsumer hands deliveries over the way amqp091 does: the broker side
// queues them on in, and a goroutine forwards them one at a time on the
// unbuffered deliveries channel. Cancel closes in and the goroutine flushes
// what is left before closing deliveries; a channel close drops the rest.
type fakeConsumer struct {
	tag        string
	channel    *fakeChannel
	in         chan amqp.Delivery
	closed     chan struct{}
	deliveries chan amqp.Delivery
}

func newFakeConsumer(tag string, ch *fakeChannel) *fakeConsumer {
	c := &fakeConsumer{
		tag:        tag,
		channel:    ch,
		in:         make(chan amqp.Delivery, 64),
		closed:     make(chan struct{}),
		deliveries: make(chan amqp.Delivery),
	}
	go c.forward()
	return c
}

func (c *fakeConsumer) forward() {
	defer close(c.deliveries)
	for d := range c.in {
		select {
		case c.deliveries <- d:
		case <-c.closed:
			return
		}
	}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: map[string]string{},
		queues:    map[string]*fakeQueue{},
	}
}

func (b *fakeBroker) Dial(string) (queue.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.dials <= b.failDials {
		return nil, errors.New("connection refused")
	}
	conn := &fakeConnection{broker: b}
	b.conns = append(b.conns, conn)
	return conn, nil
}

// DropConnections simulates the broker going away.
func (b *fakeBroker) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, conn := range b.conns {
		conn.closed = true
		for _, ch := range conn.channels {
			ch.closeLocked(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})
		}
	}
}

func (b *fakeBroker) Acked(queueName string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queueName]; ok {
		return q.acked
	}
	return nil
}

func (b *fakeBroker) Nacked(queueName string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queueName]; ok {
		return q.nacked
	}
	return nil
}

func (b *fakeBroker) Pending(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queueName]; ok {
		return len(q.pending)
	}
	return 0
}

// Unsettled counts deliveries handed to consumers that were neither acked
// nor nacked.
func (b *fakeBroker) Unsettled() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, conn := range b.conns {
		for _, ch := range conn.channels {
			n += len(ch.unacked)
		}
	}
	return n
}

func (b *fakeBroker) LastChannel() *fakeChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn := b.conns[len(b.conns)-1]
	return conn.channels[len(conn.channels)-1]
}

// dispatchLocked hands pending messages to the queue's consumer.
func (b *fakeBroker) dispatchLocked(q *fakeQueue) {
	for q.consumer != nil && len(q.pending) > 0 {
		d := q.pending[0]
		d.Acknowledger = q.consumer.channel
		d.ConsumerTag = q.consumer.tag
		q.consumer.channel.nextDeliveryTag++
		d.DeliveryTag = q.consumer.channel.nextDeliveryTag
		q.consumer.channel.unacked[d.DeliveryTag] = unacked{queue: q, delivery: d}

		select {
		case q.consumer.in <- d:
			q.pending = q.pending[1:]
		default:
			delete(q.consumer.channel.unacked, d.DeliveryTag)
			return
		}
	}
}

func (b *fakeBroker) routeLocked(exchange, key string) []*fakeQueue {
	if exchange == "" {
		if q, ok := b.queues[key]; ok {
			return []*fakeQueue{q}
		}
		return nil
	}

	kind := b.exchanges[exchange]
	var targets []*fakeQueue
	for _, q := range b.queues {
		for _, binding := range q.bindings {
			if binding.exchange != exchange {
				continue
			}
			if kind == amqp.ExchangeFanout || binding.key == key {
				targets = append(targets, q)
				break
			}
		}
	}
	return targets
}

type fakeConnection struct {
	broker   *fakeBroker
	channels []*fakeChannel
	closed   bool
}

func (c *fakeConnection) Channel() (queue.Channel, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{broker: c.broker, unacked: map[uint64]unacked{}}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocked(nil)
	}
	return nil
}

type unacked struct {
	queue    *fakeQueue
	delivery amqp.Delivery
}

type fakeChannel struct {
	broker          *fakeBroker
	prefetch        int
	confirming      bool
	publishSeq      uint64
	nextDeliveryTag uint64
	unacked         map[uint64]unacked
	consumers       []*fakeConsumer
	confirms        []chan amqp.Confirmation
	returns         []chan amqp.Return
	closes          []chan *amqp.Error
	closed          bool
}

func (ch *fakeChannel) Prefetch() int {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	return ch.prefetch
}

func (ch *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.prefetch = prefetchCount
	return nil
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if existing, ok := ch.broker.exchanges[name]; ok && existing != kind {
		err := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'type'"}
		ch.closeLocked(err)
		return err
	}
	ch.broker.exchanges[name] = kind
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	q, ok := ch.broker.queues[name]
	if !ok {
		q = &fakeQueue{name: name}
		ch.broker.queues[name] = q
	}
	return amqp.Queue{Name: name, Messages: len(q.pending)}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if _, ok := ch.broker.exchanges[exchange]; !ok {
		err := &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange '" + exchange + "'"}
		ch.closeLocked(err)
		return err
	}
	q := ch.broker.queues[name]
	q.bindings = append(q.bindings, fakeBinding{exchange: exchange, key: key})
	return nil
}

func (ch *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, _ bool, msg amqp.Publishing) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}

	if _, ok := ch.broker.exchanges[exchange]; exchange != "" && !ok {
		// The broker closes the channel asynchronously.
		ch.closeLocked(&amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange '" + exchange + "'"})
		return nil
	}

	targets := ch.broker.routeLocked(exchange, key)
	if len(targets) == 0 && mandatory {
		for _, c := range ch.returns {
			c <- amqp.Return{ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE", Exchange: exchange, RoutingKey: key, Body: msg.Body}
		}
	}

	for _, q := range targets {
		q.pending = append(q.pending, amqp.Delivery{
			Exchange:    exchange,
			RoutingKey:  key,
			Body:        msg.Body,
			ContentType: msg.ContentType,
			MessageId:   msg.MessageId,
			Timestamp:   msg.Timestamp,
		})
		ch.broker.dispatchLocked(q)
	}

	if ch.confirming {
		ch.publishSeq++
		for _, c := range ch.confirms {
			c <- amqp.Confirmation{DeliveryTag: ch.publishSeq, Ack: true}
		}
	}
	return nil
}

func (ch *fakeChannel) Consume(name, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return nil, amqp.ErrClosed
	}
	q, ok := ch.broker.queues[name]
	if !ok {
		err := &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue '" + name + "'"}
		ch.closeLocked(err)
		return nil, err
	}

	c := newFakeConsumer(consumer, ch)
	q.consumer = c
	ch.consumers = append(ch.consumers, c)
	ch.broker.dispatchLocked(q)
	return c.deliveries, nil
}

func (ch *fakeChannel) Cancel(consumer string, _ bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	for _, q := range ch.broker.queues {
		if q.consumer != nil && q.consumer.tag == consumer {
			q.consumer = nil
		}
	}
	for i, c := range ch.consumers {
		if c.tag == consumer {
			close(c.in)
			ch.consumers = append(ch.consumers[:i], ch.consumers[i+1:]...)
			break
		}
	}
	return nil
}

func (ch *fakeChannel) Confirm(bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.confirming = true
	return nil
}

func (ch *fakeChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.confirms = append(ch.confirms, c)
	return c
}

func (ch *fakeChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.returns = append(ch.returns, c)
	return c
}

func (ch *fakeChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.closes = append(ch.closes, c)
	return c
}

func (ch *fakeChannel) Close() error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.closeLocked(nil)
	return nil
}

// closeLocked closes the channel, requeueing its unacked deliveries.
func (ch *fakeChannel) closeLocked(reason *amqp.Error) {
	if ch.closed {
		return
	}
	ch.closed = true

	for _, c := range ch.consumers {
		for _, q := range ch.broker.queues {
			if q.consumer == c {
				q.consumer = nil
			}
		}
		close(c.closed)
		close(c.in)
	}
	ch.consumers = nil

	for tag, u := range ch.unacked {
		d := u.delivery
		d.Redelivered = true
		u.queue.pending = append(u.queue.pending, d)
		delete(ch.unacked, tag)
	}

	for _, c := range ch.closes {
		if reason != nil {
			c <- reason
		}
		close(c)
	}
	for _, c := range ch.confirms {
		close(c)
	}
	for _, c := range ch.returns {
		close(c)
	}
	ch.closes, ch.confirms, ch.returns = nil, nil, nil
}

func (ch *fakeChannel) Ack(tag uint64, _ bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	u, ok := ch.unacked[tag]
	if !ok {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - unknown delivery tag"}
	}
	delete(ch.unacked, tag)
	u.queue.acked = append(u.queue.acked, u.delivery.Body)
	return nil
}

func (ch *fakeChannel) Nack(tag uint64, _ bool, requeue bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	u, ok := ch.unacked[tag]
	if !ok {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - unknown delivery tag"}
	}
	delete(ch.unacked, tag)
	u.queue.nacked = append(u.queue.nacked, u.delivery.Body)

	if requeue {
		d := u.delivery
		d.Redelivered = true
		u.queue.pending = append(u.queue.pending, d)
		ch.broker.dispatchLocked(u.queue)
	}
	return nil
}

func (ch *fakeChannel) Reject(tag uint64, requeue bool) error {
	return ch.Nack(tag, false, requeue)
}
