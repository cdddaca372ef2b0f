package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
)

type sourceStateRow struct {
	Source              string       `db:"source"`
	LastRunAt           sql.NullTime `db:"last_run_at"`
	LastSuccessAt       sql.NullTime `db:"last_success_at"`
	TotalStored         int64        `db:"total_stored"`
	ConsecutiveFailures int          `db:"consecutive_failures"`
}

func (r *sourceStateRow) toDomain() domain.SourceState {
	state := domain.SourceState{
		Source:              domain.Portal(r.Source),
		TotalStored:         r.TotalStored,
		ConsecutiveFailures: r.ConsecutiveFailures,
	}
	if r.LastRunAt.Valid {
		state.LastRunAt = r.LastRunAt.Time.UTC()
	}
	if r.LastSuccessAt.Valid {
		state.LastSuccessAt = r.LastSuccessAt.Time.UTC()
	}
	return state
}

type SourceStateStore struct {
	db *sqlx.DB
}

func NewSourceStateStore(db *sqlx.DB) *SourceStateStore {
	return &SourceStateStore{db: db}
}

func (s *SourceStateStore) Get(ctx context.Context, source domain.Portal) (*domain.SourceState, error) {
	var row sourceStateRow
	query := `
		SELECT source, last_run_at, last_success_at, total_stored, consecutive_failures
		FROM source_state
		WHERE source = ?`

	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), string(source))
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for new sources
		return &domain.SourceState{Source: source}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("get source state", err)
	}

	state := row.toDomain()
	return &state, nil
}

func (s *SourceStateStore) Update(ctx context.Context, state *domain.SourceState) error {
	query := `
		INSERT INTO source_state (source, last_run_at, last_success_at, total_stored, consecutive_failures)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_success_at = EXCLUDED.last_success_at,
			total_stored = EXCLUDED.total_stored,
			consecutive_failures = EXCLUDED.consecutive_failures`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		string(state.Source),
		nullTime(state.LastRunAt),
		nullTime(state.LastSuccessAt),
		state.TotalStored,
		state.ConsecutiveFailures,
	)
	if err != nil {
		return apperrors.Internal("update source state", err)
	}
	return nil
}

// List returns the state of every source that has run, by source name.
func (s *SourceStateStore) List(ctx context.Context) ([]domain.SourceState, error) {
	var rows []sourceStateRow
	query := `
		SELECT source, last_run_at, last_success_at, total_stored, consecutive_failures
		FROM source_state
		ORDER BY source`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperrors.Internal("list source state", err)
	}

	states := make([]domain.SourceState, len(rows))
	for i := range rows {
		states[i] = rows[i].toDomain()
	}
	return states, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: bound(t), Valid: true}
}
