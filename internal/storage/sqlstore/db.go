// Package sqlstore persists postings and per-source state in SQLite or
// PostgreSQL through sqlx. Queries are written with ? placeholders and
// rebound for the active driver.
package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"nepal_jobs/internal/config"
	apperrors "nepal_jobs/internal/errors"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	var driver string
	switch cfg.Driver {
	case config.DriverSQLite:
		driver = driverSQLite
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperrors.Config("create database directory", err)
			}
		}
	case config.DriverPostgres:
		driver = driverPostgres
	default:
		return nil, apperrors.Config("unknown database driver "+cfg.Driver, nil)
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	if err != nil {
		return nil, apperrors.Internal("connect to "+driver, err)
	}

	if driver == driverSQLite {
		// One writer; WAL lets readers such as the report run alongside.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// classify wraps a driver error as CONSTRAINT for duplicate keys and
// INTERNAL otherwise.
func classify(op string, err error) *apperrors.DomainError {
	if isUniqueViolation(err) {
		return apperrors.Constraint(op, err)
	}
	return apperrors.Internal(op, err)
}

// isUniqueViolation reports whether err is a duplicate key error from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return false
}
