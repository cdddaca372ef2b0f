package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"nepal_jobs/internal/domain"
	"nepal_jobs/internal/telemetry"
)

// ErrAllSourcesFailed is returned by Pipeline.Run when no source completed.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Scraper runs one source end to end.
type Scraper interface {
	Source() domain.Portal
	Sync(ctx context.Context) (*domain.ScrapeStats, error)
}

// Pipeline runs its scrapers one after another. A failing source is
// recorded and the next one still runs.
type Pipeline struct {
	scrapers []Scraper
	logger   *slog.Logger
}

func NewPipeline(logger *slog.Logger, scrapers ...Scraper) *Pipeline {
	return &Pipeline{
		scrapers: scrapers,
		logger:   logger,
	}
}

func (p *Pipeline) Run(ctx context.Context) (*domain.RunSummary, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	summary := &domain.RunSummary{StartedAt: time.Now()}
	p.logger.Info("starting pipeline run", "sources", len(p.scrapers))

	for _, scraper := range p.scrapers {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(summary.StartedAt)
			return summary, fmt.Errorf("pipeline run: %w", err)
		}

		stats, err := scraper.Sync(ctx)
		if stats != nil {
			summary.Sources = append(summary.Sources, *stats)
		}
		if err != nil {
			summary.FailedSources = append(summary.FailedSources, scraper.Source())
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	span.SetAttributes(
		telemetry.Int("stored", summary.Stored()),
		telemetry.Int("failed_sources", len(summary.FailedSources)),
	)

	p.logger.Info("pipeline run completed",
		"stored", summary.Stored(),
		"failed_sources", summary.FailedSources,
		"duration", summary.Duration,
	)

	if len(p.scrapers) > 0 && len(summary.FailedSources) == len(p.scrapers) {
		span.SetStatus(codes.Error, ErrAllSourcesFailed.Error())
		return summary, ErrAllSourcesFailed
	}

	return summary, nil
}
