package merojob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
	"nepal_jobs/internal/fetch"
)

const SourceName = "MeroJob"

// Config holds MeroJob source configuration.
type Config struct {
	BaseURL  string
	SiteURL  string
	PageSize int
}

// Fetcher performs a GET and returns the decoded body.
type Fetcher interface {
	Get(ctx context.Context, url, accept string) ([]byte, error)
}

// Source implements service.Source for the MeroJob listing API.
type Source struct {
	fetcher  Fetcher
	baseURL  string
	siteURL  string
	pageSize int
	logger   *slog.Logger
}

// New creates a new MeroJob source.
func New(cfg Config, fetcher Fetcher, logger *slog.Logger) *Source {
	return &Source{
		fetcher:  fetcher,
		baseURL:  cfg.BaseURL,
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		pageSize: cfg.PageSize,
		logger:   logger.With("source", domain.PortalMeroJob),
	}
}

// ID returns the source identifier.
func (s *Source) ID() domain.Portal {
	return domain.PortalMeroJob
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchJobs walks the listing pages 1..maxPages. A page that fails is logged
// and skipped; only when every attempted page fails is an error returned.
func (s *Source) FetchJobs(ctx context.Context, maxPages int) (*domain.FetchResult, error) {
	result := &domain.FetchResult{}
	var lastErr error

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			result.PagesFailed++
			lastErr = err
			s.logger.Warn("skipping page", "page", page, "error", err)
			continue
		}
		result.PagesFetched++

		jobs, skipped := s.transform(resp.Results)
		result.Jobs = append(result.Jobs, jobs...)
		result.RecordErrors += skipped

		s.logger.Debug("fetched page",
			"page", page,
			"jobs", len(jobs),
			"total", len(result.Jobs),
		)

		if resp.Next == nil || *resp.Next == "" || len(resp.Results) == 0 {
			break
		}
	}

	if result.PagesFetched == 0 && result.PagesFailed > 0 {
		return result, apperrors.Network("merojob: no page could be fetched", lastErr)
	}

	return result, nil
}

func (s *Source) pageURL(page int) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", apperrors.Config("invalid merojob base url", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(s.pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Source) fetchPage(ctx context.Context, page int) (*APIResponse, error) {
	pageURL, err := s.pageURL(page)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Get(ctx, pageURL, fetch.AcceptJSON)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, apperrors.Parse(fmt.Sprintf("decode page %d", page), err)
	}

	return &apiResp, nil
}

func (s *Source) transform(results []json.RawMessage) ([]domain.RawJob, int) {
	jobs := make([]domain.RawJob, 0, len(results))
	skipped := 0

	for i, record := range results {
		var j Job
		if err := json.Unmarshal(record, &j); err != nil {
			skipped++
			s.logger.Warn("skipping malformed record",
				"index", i,
				"error", apperrors.Parse("decode record", err),
			)
			continue
		}
		if j.ID == "" {
			skipped++
			s.logger.Warn("skipping record without id", "title", j.Title)
			continue
		}

		raw := domain.RawJob{
			Source:     domain.PortalMeroJob,
			SourceID:   j.ID.String(),
			Title:      j.Title.String(),
			Location:   s.location(j),
			Category:   joinTexts(j.Categories),
			JobLevel:   j.JobLevel.String(),
			Education:  j.Education.String(),
			Experience: j.Experience.String(),
			Skills:     joinTexts(j.Skills),
			Vacancies:  j.Vacancies.String(),
			PostedDate: j.PublishedDate.String(),
			Deadline:   j.Deadline.String(),
		}

		if j.Client != nil {
			raw.Company = j.Client.ClientName.String()
		}
		if j.OfferedSalary != nil {
			raw.SalaryMin = j.OfferedSalary.Minimum.String()
			raw.SalaryMax = j.OfferedSalary.Maximum.String()
			raw.Currency = j.OfferedSalary.Currency.String()
		}
		if j.AbsoluteURL != "" {
			raw.URL = s.siteURL + j.AbsoluteURL
		}

		jobs = append(jobs, raw)
	}

	return jobs, skipped
}

// location prefers the client's location and falls back to the first job location.
func (s *Source) location(j Job) string {
	if j.Client != nil {
		loc := strings.TrimSpace(j.Client.Location.String())
		if loc != "" && loc != "N/A" {
			return loc
		}
	}
	if len(j.JobLocations) > 0 {
		return j.JobLocations[0].Address.String()
	}
	return ""
}

func joinTexts(values []Text) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, v.String())
		}
	}
	return strings.Join(parts, ", ")
}
