package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const ExchangeName = "events"

// ErrMalformedMessage marks a delivery that can never succeed. Such
// messages are rejected without requeue.
var ErrMalformedMessage = errors.New("malformed message")

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Redelivery pauses after consecutive transient failures, doubling up to
// maxRetryDelay. The broker holds at most one unacked delivery per consumer.
const (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
	prefetchCount  = 1
)

type outcome int

const (
	outcomeAcked outcome = iota
	outcomeDropped
	outcomeRequeued
)

// retryDelay returns the pause after the given number of consecutive
// requeues.
func retryDelay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := baseRetryDelay
	for i := 1; i < failures && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      string
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger
}

// NewConsumer dials RabbitMQ, declares the durable topic exchange and binds
// queueName to routingKey.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	logger.Info("[MQ] consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", q.Name),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q.Name,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Consume blocks until ctx is done or the delivery channel closes. Every
// delivery is acked or nacked exactly once.
func (c *Consumer) Consume(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(c.queue, "pet-cuddles", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[MQ] consuming", zap.String("queue", c.queue))

	return c.drain(ctx, deliveries, retryDelay)
}

// drain settles deliveries until ctx ends or the channel closes, pausing
// for delay(n) after the n-th consecutive requeue.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, delay func(int) time.Duration) error {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if settle(ctx, d, c.handler, c.logger) != outcomeRequeued {
				failures = 0
				continue
			}
			failures++
			if !pause(ctx, delay(failures)) {
				return nil
			}
		}
	}
}

// pause waits for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func settle(ctx context.Context, d amqp091.Delivery, handler MessageHandler, logger *zap.Logger) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[MQ] handler panic recovered", zap.Any("panic", r))
			if err := d.Nack(false, false); err != nil {
				logger.Error("[MQ] nack failed", zap.Error(err))
			}
			result = outcomeDropped
		}
	}()

	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			logger.Error("[MQ] ack failed", zap.Error(err))
		}
		return outcomeAcked
	case errors.Is(err, ErrMalformedMessage):
		logger.Warn("[MQ] dropping malformed message", zap.Error(err), zap.Int("size", len(d.Body)))
		if err := d.Nack(false, false); err != nil {
			logger.Error("[MQ] nack failed", zap.Error(err))
		}
		return outcomeDropped
	default:
		logger.Error("[MQ] handler error, requeueing", zap.Error(err), zap.Bool("redelivered", d.Redelivered))
		if err := d.Nack(false, true); err != nil {
			logger.Error("[MQ] nack failed", zap.Error(err))
		}
		return outcomeRequeued
	}
}
