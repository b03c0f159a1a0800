package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"freelancehub/pkg/metrics"
	"freelancehub/pkg/trace"
)

// DLQExchangeName receives messages a handler gave up on, under their
// original routing key.
const DLQExchangeName = "freelancehub.events.dlq"

// dlqRetention is how long a dead letter is kept.
const dlqRetention = 14 * 24 * time.Hour

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares <routingKey>.dlq bound to the dead letter exchange.
func DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		routingKey+".dlq",
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp091.Table{"x-message-ttl": dlqRetention.Milliseconds()},
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return q, nil
}

// PublishToDLQ dead-letters payload with the failure reason and the handler
// (source) that rejected it.
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, source string) error {
	headers := amqp091.Table{
		"x-original-error": originalError,
		"x-failed-at":      source,
		"x-failed-time":    time.Now().UTC().Format(time.RFC3339),
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers[trace.HeaderName] = traceID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(
		ctx,
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", routingKey, err)
	}
	metrics.IncrementDeadLetter(routingKey, source)
	return nil
}
