package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
)

// BatchHandler processes one raw batch body.  A BatchFormatError marks
// the message as poison; any other error is treated as transient.
type BatchHandler func(ctx context.Context, body []byte) error

// Consumer reads raw batches from a durable queue.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Handle   BatchHandler
	Log      *zap.Logger
}

type verdict int

const (
	ack verdict = iota
	reject
	requeue
)

// decide maps a handler result to the delivery acknowledgement.  A
// malformed container is never retried; it is reported whole and
// dropped from the queue.
func decide(err error) verdict {
	switch {
	case err == nil:
		return ack
	case apperr.IsBatchFormat(err):
		return reject
	default:
		return requeue
	}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Broken connections are retried with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("batch-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("batch-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Warn("batch-consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			err := c.Handle(ctx, d.Body)
			switch decide(err) {
			case ack:
				_ = d.Ack(false)
			case reject:
				log.Error("batch-consumer: rejecting malformed batch", zap.Error(err))
				_ = d.Nack(false, false)
			case requeue:
				log.Warn("batch-consumer: batch failed, requeueing", zap.Error(err))
				_ = d.Nack(false, true)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
