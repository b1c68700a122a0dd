// Package postgres stores bridge transactions in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Config holds the connection settings of the store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements types.TransactionStore on a pooled *sql.DB.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewStore opens the connection pool, checks it and applies pending migrations.
//
// Parameters:
// - ctx: the context for managing the request.
// - cfg: the connection settings.
// - logger: the logger instance.
//
// Returns:
// - *Store: a ready store.
// - error: an error wrapping ErrDatabaseConnect if the database is unreachable.
func NewStore(ctx context.Context, cfg Config, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}

	store := &Store{db: db, logger: logger}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Migrate applies every embedded migration not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations")
	}

	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to list migrations")
	}

	for _, entry := range entries {
		version := entry.Name()

		var applied bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&applied); err != nil {
			return errors.Wrapf(err, "failed to check migration %s", version)
		}
		if applied {
			continue
		}

		script, err := migrations.ReadFile(path.Join("migrations", version))
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", version)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin migration")
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to apply migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to record migration %s", version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "failed to commit migration %s", version)
		}

		s.logger.WithField("version", version).Info("Applied database migration")
	}

	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
