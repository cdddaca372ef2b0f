package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
	"nepal_jobs/internal/telemetry"
)

// FlushWithContext requires a deadline.
const flushTimeout = 5 * time.Second

type NATSConfig struct {
	URL         string
	Subject     string
	ConnTimeout time.Duration
}

// NATS publishes posting events on a core NATS subject.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATS(cfg NATSConfig, logger *slog.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("nepal-jobs-scraper"),
		nats.Timeout(cfg.ConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, apperrors.Network("connect to nats", err)
	}

	logger.Info("connected to nats", "subject", cfg.Subject)

	return &NATS{
		conn:    conn,
		subject: cfg.Subject,
		logger:  logger,
	}, nil
}

// Publish sends a created event for posting and flushes it to the server.
func (n *NATS) Publish(ctx context.Context, posting *domain.JobPosting) error {
	ctx, span := tracer.Start(ctx, "NATS.Publish")
	defer span.End()

	data, err := json.Marshal(newJobMessage(posting))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal message: %w", err)
	}

	span.SetAttributes(
		telemetry.String("messaging.destination", n.subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := n.conn.Publish(n.subject, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish message: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(flushCtx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("flush: %w", err)
	}

	n.logger.Debug("published posting",
		"id", posting.ID,
		"subject", n.subject,
	)

	return nil
}

func (n *NATS) Close() error {
	if n.conn != nil {
		return n.conn.Drain()
	}
	return nil
}
