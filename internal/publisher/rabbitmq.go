package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
	"nepal_jobs/internal/telemetry"
)

var tracer = telemetry.GetTracer("nepal_jobs/publisher")

// RabbitMQ publishes posting events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, apperrors.Network("connect to rabbitmq", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// Publish sends a created event for posting as a persistent message.
func (r *RabbitMQ) Publish(ctx context.Context, posting *domain.JobPosting) error {
	ctx, span := tracer.Start(ctx, "RabbitMQ.Publish")
	defer span.End()

	body, err := json.Marshal(newJobMessage(posting))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal message: %w", err)
	}

	span.SetAttributes(
		telemetry.String("messaging.destination", r.exchange),
		telemetry.Int("message.size", len(body)),
	)

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    posting.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published posting",
		"id", posting.ID,
		"source_id", posting.SourceID,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
