package kumarijob

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
	"nepal_jobs/internal/fetch"
)

const SourceName = "KumariJob"

// Config holds KumariJob source configuration.
type Config struct {
	BaseURL    string
	DeepScrape bool
}

// Fetcher performs a GET and returns the decoded body.
type Fetcher interface {
	Get(ctx context.Context, url, accept string) ([]byte, error)
}

// Source implements service.Source for the KumariJob listing pages.
type Source struct {
	fetcher    Fetcher
	baseURL    string
	deepScrape bool
	logger     *slog.Logger
}

// New creates a new KumariJob source.
func New(cfg Config, fetcher Fetcher, logger *slog.Logger) *Source {
	return &Source{
		fetcher:    fetcher,
		baseURL:    cfg.BaseURL,
		deepScrape: cfg.DeepScrape,
		logger:     logger.With("source", domain.PortalKumariJob),
	}
}

// ID returns the source identifier.
func (s *Source) ID() domain.Portal {
	return domain.PortalKumariJob
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchJobs scrapes listing pages until maxPages or a page with no new
// cards. Failed pages are skipped; an error is returned only when no page
// could be fetched.
func (s *Source) FetchJobs(ctx context.Context, maxPages int) (*domain.FetchResult, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, apperrors.Config("invalid kumarijob base url", err)
	}

	result := &domain.FetchResult{}
	index := make(map[string]int)
	var lastErr error

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		listing, err := s.fetchListing(ctx, base, page)
		if err != nil {
			result.PagesFailed++
			lastErr = err
			s.logger.Warn("skipping page", "page", page, "error", err)
			continue
		}
		result.PagesFetched++
		result.RecordErrors += listing.Skipped

		added := 0
		for _, job := range listing.Jobs {
			if i, seen := index[job.SourceID]; seen {
				mergeInto(&result.Jobs[i], job)
				continue
			}
			index[job.SourceID] = len(result.Jobs)
			result.Jobs = append(result.Jobs, job)
			added++
		}

		s.logger.Debug("fetched page",
			"page", page,
			"cards", len(listing.Jobs),
			"new", added,
			"total", len(result.Jobs),
		)

		if added == 0 {
			break
		}
	}

	if result.PagesFetched == 0 && result.PagesFailed > 0 {
		return result, apperrors.Network("kumarijob: no page could be fetched", lastErr)
	}

	if s.deepScrape {
		s.enrich(ctx, result.Jobs)
	}

	return result, nil
}

func (s *Source) fetchListing(ctx context.Context, base *url.URL, page int) (*Listing, error) {
	body, err := s.fetcher.Get(ctx, pageURL(base, page), fetch.AcceptHTML)
	if err != nil {
		return nil, err
	}
	return ParseListing(body, base)
}

// enrich visits each detail page. A failure leaves that record as it was.
func (s *Source) enrich(ctx context.Context, jobs []domain.RawJob) {
	enriched := 0
	for i := range jobs {
		job := &jobs[i]
		if job.URL == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		body, err := s.fetcher.Get(ctx, job.URL, fetch.AcceptHTML)
		if err != nil {
			s.logger.Warn("detail page failed", "source_id", job.SourceID, "error", err)
			continue
		}

		detail, err := ParseDetail(body)
		if err != nil {
			s.logger.Warn("detail page unparsable", "source_id", job.SourceID, "error", err)
			continue
		}
		if detail.empty() {
			continue
		}
		detail.Apply(job)
		enriched++
	}

	s.logger.Debug("deep scrape complete", "enriched", enriched, "total", len(jobs))
}

func pageURL(base *url.URL, page int) string {
	if page <= 1 {
		return base.String()
	}
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
