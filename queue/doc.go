// Package queue is a RabbitMQ client for publishing and consuming messages.
//
// A Client owns exactly one AMQP connection and one channel. It moves from
// Disconnected to Connected with Connect and back with Close; every other
// operation on a disconnected client returns riders.ErrNotConnected.
// Concurrent callers share the channel and are serialized by the client.
//
// # Delivery guarantees
//
// Publisher confirms are enabled by default: Publish returns only after the
// broker has accepted the message, and unroutable messages are reported as
// riders.ErrRouting. WithConfirms(false) restores fire-and-forget publishing
// with at-most-once delivery.
//
// Consume acknowledges a delivery only after the callback returns nil. A
// callback error nacks the delivery with requeue, so the broker redelivers it.
// A message is never acknowledged twice.
//
// # Usage
//
//	client := queue.New(cfg.AMQP.URL, queue.WithLogger(logger))
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.DeclareQueue(ctx, "emails", "emails", ""); err != nil {
//	    return err
//	}
//	if err := client.Publish(ctx, "emails", []byte("hello")); err != nil {
//	    return err
//	}
//
//	for msg, err := range client.Consume(ctx, "emails", handle) {
//	    ...
//	}
//
// Producer and Consumer wrap plain functions so that calling them publishes
// their result or runs them for every delivered message.
package queue
