// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures without
// interrupting batch processing.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/bus-occupancy-pricing/internal/queue"
)

// ReportPublisher publishes BatchProcessedEvents to a durable queue.
// Each call dials its own connection; batches are infrequent enough that
// a pooled channel is not worth the reconnect bookkeeping.
type ReportPublisher struct {
	URL   string
	Queue string
	Log   *zap.Logger
}

// Publish sends event to the report queue.  The function never panics;
// any error is logged and returned so the caller can choose to ignore
// it.  Messages are marked as persistent.
func (p ReportPublisher) Publish(ctx context.Context, event q.BatchProcessedEvent) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("queue", p.Queue), zap.String("batch_id", event.BatchID))

	body, err := encodeEvent(event)
	if err != nil {
		log.Error("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Error("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so reports survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		log.Error("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		persistent(body, event.ProcessedAt),
	); err != nil {
		log.Error("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

func encodeEvent(event q.BatchProcessedEvent) ([]byte, error) {
	return json.Marshal(event)
}

func persistent(body []byte, at time.Time) amqp.Publishing {
	if at.IsZero() {
		at = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    at.UTC(),
		Body:         body,
	}
}
