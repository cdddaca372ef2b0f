package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"nepal_jobs/internal/cleaner"
	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
	"nepal_jobs/internal/telemetry"
)

var tracer = telemetry.GetTracer("nepal_jobs/service")

// ScrapeService runs scrape, clean and store for a single source.
type ScrapeService struct {
	source    Source
	jobs      JobStore
	states    SourceStateStore
	publisher Publisher
	logger    *slog.Logger
	maxPages  int
	now       func() time.Time
}

func NewScrapeService(
	source Source,
	jobs JobStore,
	states SourceStateStore,
	publisher Publisher,
	logger *slog.Logger,
	maxPages int,
) *ScrapeService {
	return &ScrapeService{
		source:    source,
		jobs:      jobs,
		states:    states,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		maxPages:  maxPages,
		now:       time.Now,
	}
}

func (s *ScrapeService) Source() domain.Portal {
	return s.source.ID()
}

// Sync fetches the source, drops malformed and already stored postings and
// inserts the rest. The returned stats are non-nil even when err is set.
func (s *ScrapeService) Sync(ctx context.Context) (*domain.ScrapeStats, error) {
	ctx, span := tracer.Start(ctx, "ScrapeService.Sync")
	defer span.End()

	startTime := s.now()
	stats := &domain.ScrapeStats{Source: s.source.ID()}
	span.SetAttributes(telemetry.String("source", string(stats.Source)))

	s.logger.Info("starting scrape",
		"source_name", s.source.Name(),
		"max_pages", s.maxPages,
	)

	err := s.scrape(ctx, stats, startTime)
	stats.Duration = s.now().Sub(startTime)

	span.SetAttributes(
		telemetry.Int("fetched", stats.Fetched),
		telemetry.Int("stored", stats.Stored),
		telemetry.Int("errors", stats.Errors),
	)

	if stateErr := s.updateSourceState(ctx, stats, startTime, err == nil); stateErr != nil {
		s.logger.Warn("failed to update source state", "error", stateErr)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("scrape failed", "error", err, "duration", stats.Duration)
		return stats, err
	}

	s.logger.Info("scrape completed",
		"fetched", stats.Fetched,
		"dropped", stats.Dropped,
		"duplicates", stats.Duplicates,
		"stored", stats.Stored,
		"errors", stats.Errors,
		"published", stats.Published,
		"pages_failed", stats.PagesFailed,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *ScrapeService) scrape(ctx context.Context, stats *domain.ScrapeStats, scrapedAt time.Time) error {
	result, err := s.source.FetchJobs(ctx, s.maxPages)
	if err != nil {
		return fmt.Errorf("fetch jobs: %w", err)
	}

	stats.Fetched = len(result.Jobs)
	stats.PagesFailed = result.PagesFailed
	s.logger.Info("fetched jobs from source",
		"count", stats.Fetched,
		"pages", result.PagesFetched,
		"record_errors", result.RecordErrors,
	)

	postings, dropped := cleaner.CleanBatch(result.Jobs, scrapedAt, s.logger)
	stats.Dropped = dropped + result.RecordErrors

	if len(postings) == 0 {
		return nil
	}

	existing, err := s.jobs.ExistingKeys(ctx, s.source.ID(), cleaner.SourceIDs(postings))
	if err != nil {
		return fmt.Errorf("existing keys: %w", err)
	}

	fresh, duplicates := cleaner.FilterNew(postings, existing)
	stats.Duplicates = duplicates
	s.logger.Debug("filtered stored postings", "new", len(fresh), "duplicates", duplicates)

	for i := range fresh {
		posting := &fresh[i]

		inserted, err := s.jobs.Insert(ctx, posting)
		if err != nil {
			stats.Errors++
			s.logger.Error("failed to insert posting", "key", posting.Key().String(), "error", err)
			continue
		}
		if !inserted {
			// Stored by someone else between ExistingKeys and Insert.
			stats.Duplicates++
			continue
		}
		stats.Stored++

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, posting); err != nil {
				stats.Errors++
				s.logger.Warn("failed to publish posting", "key", posting.Key().String(), "error", err)
			} else {
				stats.Published++
			}
		}
	}

	if stats.Stored == 0 && stats.Errors > 0 {
		return apperrors.Internal(fmt.Sprintf("all %d inserts failed", stats.Errors), nil)
	}

	return nil
}

func (s *ScrapeService) updateSourceState(ctx context.Context, stats *domain.ScrapeStats, runAt time.Time, ok bool) error {
	state, err := s.states.Get(ctx, s.source.ID())
	if err != nil {
		return err
	}

	state.Source = s.source.ID()
	state.LastRunAt = runAt
	state.TotalStored += int64(stats.Stored)
	if ok {
		state.LastSuccessAt = runAt
		state.ConsecutiveFailures = 0
	} else {
		state.ConsecutiveFailures++
	}

	return s.states.Update(ctx, state)
}
