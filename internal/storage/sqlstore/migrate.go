package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "nepal_jobs/internal/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations in name order. Each
// migration and its bookkeeping row commit in one transaction.
type Migrator struct {
	db     *sqlx.DB
	tx     *TransactionManager
	logger *slog.Logger
}

func NewMigrator(db *sqlx.DB, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		tx:     NewTransactionManager(db),
		logger: logger,
	}
}

// Up applies pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return 0, apperrors.Internal("create schema_migrations", err)
	}

	var applied []string
	if err := m.db.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return 0, apperrors.Internal("list applied migrations", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return 0, apperrors.Internal("list migrations", err)
	}
	sort.Strings(names)

	ran := 0
	for _, name := range names {
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
		if done[version] {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return ran, apperrors.Internal("read migration "+version, err)
		}

		err = m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			exec := executor(txCtx, m.db)
			if _, err := exec.ExecContext(txCtx, string(body)); err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			_, err := exec.ExecContext(txCtx,
				m.db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
				version, time.Now().UTC().Truncate(time.Second),
			)
			if err != nil {
				return fmt.Errorf("record version: %w", err)
			}
			return nil
		})
		if err != nil {
			return ran, apperrors.Internal("migration "+version, err)
		}

		m.logger.Info("applied migration", "version", version)
		ran++
	}

	return ran, nil
}
