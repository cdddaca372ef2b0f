package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
)

// Keeps IN lists well under SQLite's bound parameter limit.
const existingKeysChunk = 500

const postingColumns = `id, source, source_id, title, company, location, category, job_level,
	experience, education, skills, vacancies, salary_raw, salary_min, salary_max, currency,
	posted_date, deadline, url, scraped_at`

type postingRow struct {
	ID         string          `db:"id"`
	Source     string          `db:"source"`
	SourceID   string          `db:"source_id"`
	Title      string          `db:"title"`
	Company    string          `db:"company"`
	Location   string          `db:"location"`
	Category   string          `db:"category"`
	JobLevel   string          `db:"job_level"`
	Experience string          `db:"experience"`
	Education  string          `db:"education"`
	Skills     string          `db:"skills"`
	Vacancies  sql.NullInt64   `db:"vacancies"`
	SalaryRaw  sql.NullString  `db:"salary_raw"`
	SalaryMin  sql.NullFloat64 `db:"salary_min"`
	SalaryMax  sql.NullFloat64 `db:"salary_max"`
	Currency   sql.NullString  `db:"currency"`
	PostedDate sql.NullTime    `db:"posted_date"`
	Deadline   sql.NullTime    `db:"deadline"`
	URL        string          `db:"url"`
	ScrapedAt  time.Time       `db:"scraped_at"`
}

func toRow(p *domain.JobPosting) postingRow {
	row := postingRow{
		ID:         p.ID,
		Source:     string(p.Source),
		SourceID:   p.SourceID,
		Title:      p.Title,
		Company:    p.Company,
		Location:   p.Location,
		Category:   p.Category,
		JobLevel:   p.JobLevel,
		Experience: p.Experience,
		Education:  p.Education,
		Skills:     p.Skills,
		URL:        p.URL,
		ScrapedAt:  p.ScrapedAt.UTC(),
	}
	if p.Vacancies > 0 {
		row.Vacancies = sql.NullInt64{Int64: int64(p.Vacancies), Valid: true}
	}
	if p.ID == "" {
		row.ID = domain.PostingID(p.Key())
	}
	if s := p.Salary; s != nil {
		row.SalaryRaw = sql.NullString{String: s.Raw, Valid: s.Raw != ""}
		row.Currency = sql.NullString{String: s.Currency, Valid: s.Currency != ""}
		if s.Min != nil {
			row.SalaryMin = sql.NullFloat64{Float64: *s.Min, Valid: true}
		}
		if s.Max != nil {
			row.SalaryMax = sql.NullFloat64{Float64: *s.Max, Valid: true}
		}
	}
	if p.PostedDate != nil {
		row.PostedDate = sql.NullTime{Time: p.PostedDate.UTC(), Valid: true}
	}
	if p.Deadline != nil {
		row.Deadline = sql.NullTime{Time: p.Deadline.UTC(), Valid: true}
	}
	return row
}

func (r *postingRow) toDomain() domain.JobPosting {
	p := domain.JobPosting{
		ID:         r.ID,
		Source:     domain.Portal(r.Source),
		SourceID:   r.SourceID,
		Title:      r.Title,
		Company:    r.Company,
		Location:   r.Location,
		Category:   r.Category,
		JobLevel:   r.JobLevel,
		Experience: r.Experience,
		Education:  r.Education,
		Skills:     r.Skills,
		URL:        r.URL,
		ScrapedAt:  r.ScrapedAt.UTC(),
		Vacancies:  int(r.Vacancies.Int64),
	}
	if r.SalaryRaw.Valid || r.SalaryMin.Valid || r.SalaryMax.Valid {
		s := &domain.Salary{Raw: r.SalaryRaw.String, Currency: r.Currency.String}
		if r.SalaryMin.Valid {
			v := r.SalaryMin.Float64
			s.Min = &v
		}
		if r.SalaryMax.Valid {
			v := r.SalaryMax.Float64
			s.Max = &v
		}
		p.Salary = s
	}
	p.PostedDate = dateOf(r.PostedDate)
	p.Deadline = dateOf(r.Deadline)
	return p
}

func dateOf(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	y, m, d := t.Time.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}

// JobStore is the append-only writer and read surface of job_postings.
type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

// Insert writes a posting. A posting whose key is already stored is
// reported as not inserted, without error.
func (s *JobStore) Insert(ctx context.Context, posting *domain.JobPosting) (bool, error) {
	query := `
		INSERT INTO job_postings (` + postingColumns + `)
		VALUES (
			:id, :source, :source_id, :title, :company, :location, :category, :job_level,
			:experience, :education, :skills, :vacancies, :salary_raw, :salary_min, :salary_max, :currency,
			:posted_date, :deadline, :url, :scraped_at
		)`

	_, err := sqlx.NamedExecContext(ctx, executor(ctx, s.db), query, toRow(posting))
	if err != nil {
		classified := classify("insert posting "+posting.Key().String(), err)
		if classified.Type == apperrors.ErrTypeConstraint {
			return false, nil
		}
		return false, classified
	}

	return true, nil
}

// ExistingKeys returns which of ids are already stored for source.
func (s *JobStore) ExistingKeys(ctx context.Context, source domain.Portal, ids []string) (map[domain.Key]struct{}, error) {
	existing := make(map[domain.Key]struct{})

	for start := 0; start < len(ids); start += existingKeysChunk {
		end := min(start+existingKeysChunk, len(ids))

		query, args, err := sqlx.In(
			"SELECT source_id FROM job_postings WHERE source = ? AND source_id IN (?)",
			string(source), ids[start:end],
		)
		if err != nil {
			return nil, apperrors.Internal("build existing keys query", err)
		}

		var found []string
		if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
			return nil, apperrors.Internal("select existing keys", err)
		}
		for _, id := range found {
			existing[domain.Key{Source: source, SourceID: id}] = struct{}{}
		}
	}

	return existing, nil
}

// Query returns postings matching filter, newest scrape first.
func (s *JobStore) Query(ctx context.Context, filter domain.PostingFilter) ([]domain.JobPosting, error) {
	where, args := whereClause(filter)
	query := "SELECT " + postingColumns + " FROM job_postings" + where +
		" ORDER BY scraped_at DESC, source, source_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []postingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, apperrors.Internal("query postings", err)
	}

	postings := make([]domain.JobPosting, len(rows))
	for i := range rows {
		postings[i] = rows[i].toDomain()
	}
	return postings, nil
}

// Count returns the number of postings matching filter. Limit is ignored.
func (s *JobStore) Count(ctx context.Context, filter domain.PostingFilter) (int, error) {
	where, args := whereClause(filter)

	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM job_postings"+where), args...); err != nil {
		return 0, apperrors.Internal("count postings", err)
	}
	return count, nil
}

// CountBy groups postings matching filter by dim, largest group first.
func (s *JobStore) CountBy(ctx context.Context, dim domain.Dimension, filter domain.PostingFilter) ([]domain.Bucket, error) {
	if !dim.Valid() {
		return nil, apperrors.Config("unknown dimension "+string(dim), nil)
	}
	column := string(dim)

	where, args := whereClause(filter)
	query := "SELECT " + column + " AS label, COUNT(*) AS total FROM job_postings" + where +
		" GROUP BY " + column + " ORDER BY total DESC, label"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var buckets []domain.Bucket
	if err := s.db.SelectContext(ctx, &buckets, s.db.Rebind(query), args...); err != nil {
		return nil, apperrors.Internal("count postings by "+column, err)
	}
	return buckets, nil
}

func whereClause(f domain.PostingFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Source != "" {
		add("source = ?", string(f.Source))
	}
	if f.Location != "" {
		add("LOWER(location) = LOWER(?)", f.Location)
	}
	if !f.ScrapedFrom.IsZero() {
		add("scraped_at >= ?", bound(f.ScrapedFrom))
	}
	if !f.ScrapedTo.IsZero() {
		add("scraped_at < ?", bound(f.ScrapedTo))
	}
	if !f.PostedFrom.IsZero() {
		add("posted_date >= ?", bound(f.PostedFrom))
	}
	if !f.PostedTo.IsZero() {
		add("posted_date < ?", bound(f.PostedTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// bound matches the UTC second precision timestamps are written with.
func bound(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
