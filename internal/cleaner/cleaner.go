// Package cleaner turns scraped records into storable postings. Everything
// here is pure: fetching and inserting stay at the edges of the pipeline.
package cleaner

import (
	"log/slog"
	"strings"
	"time"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
)

const (
	unknownLocation = "Unknown"
	unknownCompany  = "Unknown Company"
	unknownCategory = "Unknown"
	defaultCurrency = "NPR"

	// KumariJob listings carry no location and are Kathmandu based.
	kumariDefaultLocation = "Kathmandu"
)

// Normalize converts a raw record into a posting ready for storage. Records
// without a source id or title are rejected with a PARSE error.
func Normalize(raw domain.RawJob, scrapedAt time.Time) (domain.JobPosting, error) {
	if !raw.Source.Valid() {
		return domain.JobPosting{}, apperrors.Parse("unknown source "+string(raw.Source), nil)
	}

	sourceID := collapse(raw.SourceID)
	if isBlank(sourceID) {
		return domain.JobPosting{}, apperrors.Parse("missing source id", nil)
	}

	location := raw.Location
	if raw.Source == domain.PortalKumariJob && isBlank(collapse(location)) {
		location = kumariDefaultLocation
	}

	posting := domain.JobPosting{
		Source:     raw.Source,
		SourceID:   sourceID,
		Title:      raw.Title,
		Company:    raw.Company,
		Location:   location,
		Category:   raw.Category,
		JobLevel:   raw.JobLevel,
		Experience: raw.Experience,
		Education:  raw.Education,
		Skills:     raw.Skills,
		Vacancies:  parseVacancies(raw.Vacancies),
		Salary:     rawSalary(raw),
		PostedDate: parseDate(raw.PostedDate),
		Deadline:   parseDate(raw.Deadline),
		URL:        raw.URL,
		ScrapedAt:  scrapedAt,
	}

	posting = Clean(posting)
	if posting.Title == "" {
		return domain.JobPosting{}, apperrors.Parse("missing title for "+posting.Key().String(), nil)
	}

	return posting, nil
}

// Clean applies field normalization to an already typed posting. It is
// idempotent: Clean(Clean(p)) equals Clean(p).
func Clean(p domain.JobPosting) domain.JobPosting {
	p.SourceID = collapse(p.SourceID)
	p.Title = cleanTitle(p.Title)
	p.Company = orDefault(collapse(p.Company), unknownCompany)
	p.Location = cleanLocation(p.Location)
	p.Category = orDefault(collapse(p.Category), unknownCategory)
	p.JobLevel = standardizeJobLevel(p.JobLevel)
	p.Experience = orDefault(collapse(p.Experience), "")
	p.Education = orDefault(collapse(p.Education), "")
	p.Skills = cleanSkills(p.Skills)
	p.Vacancies = max(p.Vacancies, 0)
	p.Salary = cleanSalary(p.Salary)
	p.PostedDate = truncateDate(p.PostedDate)
	p.Deadline = truncateDate(p.Deadline)
	p.URL = strings.TrimSpace(p.URL)
	p.ScrapedAt = p.ScrapedAt.UTC().Truncate(time.Second)
	p.ID = domain.PostingID(p.Key())
	return p
}

// CleanBatch normalizes raws in order. Malformed records are logged and
// dropped; the number dropped is returned alongside the postings.
func CleanBatch(raws []domain.RawJob, scrapedAt time.Time, logger *slog.Logger) ([]domain.JobPosting, int) {
	postings := make([]domain.JobPosting, 0, len(raws))
	dropped := 0

	for _, raw := range raws {
		posting, err := Normalize(raw, scrapedAt)
		if err != nil {
			dropped++
			logger.Warn("dropping malformed record",
				"source_id", raw.SourceID,
				"url", raw.URL,
				"error", err,
			)
			continue
		}
		postings = append(postings, posting)
	}

	return postings, dropped
}

// FilterNew keeps postings whose key is neither in existing nor repeated
// earlier in the batch. It returns the kept postings and how many were
// discarded as duplicates.
func FilterNew(postings []domain.JobPosting, existing map[domain.Key]struct{}) ([]domain.JobPosting, int) {
	seen := make(map[domain.Key]struct{}, len(postings))
	fresh := make([]domain.JobPosting, 0, len(postings))
	duplicates := 0

	for _, p := range postings {
		key := p.Key()
		if _, ok := existing[key]; ok {
			duplicates++
			continue
		}
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, p)
	}

	return fresh, duplicates
}

// SourceIDs lists the source ids of postings, in order.
func SourceIDs(postings []domain.JobPosting) []string {
	ids := make([]string, len(postings))
	for i, p := range postings {
		ids[i] = p.SourceID
	}
	return ids
}

func rawSalary(raw domain.RawJob) *domain.Salary {
	min := parseAmount(raw.SalaryMin)
	max := parseAmount(raw.SalaryMax)
	if isBlank(collapse(raw.Salary)) && min == nil && max == nil {
		return nil
	}
	return &domain.Salary{
		Raw:      raw.Salary,
		Min:      min,
		Max:      max,
		Currency: raw.Currency,
	}
}
