package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
)

// schema holds the cache tables. Mirrors of the upstream records plus a
// sync_state row per record kind so staleness can be reported.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY,
		name_1 TEXT NOT NULL,
		name_2 TEXT NOT NULL DEFAULT '',
		mail TEXT NOT NULL DEFAULT '',
		contact_type_id INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		contact_id INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL DEFAULT 0,
		client_service_id INTEGER NOT NULL DEFAULT 0,
		contact_id INTEGER NOT NULL DEFAULT 0,
		project_id INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL DEFAULT '',
		allowable_bill INTEGER NOT NULL DEFAULT 0,
		tracking_date TEXT NOT NULL DEFAULT '',
		tracking_duration TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		kind TEXT PRIMARY KEY,
		synced_at TEXT NOT NULL
	)`,
}

// Service wraps the database connection and provides methods for database operations
type Service struct {
	db     *sql.DB
	driver DatabaseDriver
}

// NewService creates a new database service instance and applies the schema
func NewService(cfg *config.Config) (*Service, error) {
	db, driver, err := OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Info("Database service initialized",
		"driver", string(driver),
		"url", cfg.DatabaseURL)

	return &Service{
		db:     db,
		driver: driver,
	}, nil
}

// Close closes the database connection
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection
func (s *Service) DB() *sql.DB {
	return s.db
}

// Driver returns the database driver type
func (s *Service) Driver() DatabaseDriver {
	return s.driver
}

// IsPostgreSQL returns true if using PostgreSQL
func (s *Service) IsPostgreSQL() bool {
	return s.driver == PostgreSQL
}

// IsSQLite returns true if using SQLite
func (s *Service) IsSQLite() bool {
	return s.driver == SQLite
}

// WithTx executes a function within a database transaction
func (s *Service) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Wipe drops all cached rows. Used when the account is disconnected.
func (s *Service) Wipe(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"time_entries", "projects", "contacts", "sync_state"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to wipe %s: %w", table, err)
			}
		}
		return nil
	})
}
