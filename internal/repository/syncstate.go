package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
)

// markSynced records the sync time for a record kind inside the same
// transaction that replaced the rows.
func markSynced(ctx context.Context, tx *sql.Tx, driver db.DatabaseDriver, kind string) error {
	query := fmt.Sprintf(
		"INSERT INTO sync_state (kind, synced_at) VALUES (%s, %s) ON CONFLICT (kind) DO UPDATE SET synced_at = excluded.synced_at",
		db.GetPlaceholder(driver, 1), db.GetPlaceholder(driver, 2))
	if _, err := tx.ExecContext(ctx, query, kind, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	return nil
}

// lastSynced reports when a record kind was last replaced.
func lastSynced(ctx context.Context, dbService *db.Service, kind string) (time.Time, error) {
	query := fmt.Sprintf("SELECT synced_at FROM sync_state WHERE kind = %s",
		db.GetPlaceholder(dbService.Driver(), 1))

	var raw string
	err := dbService.DB().QueryRowContext(ctx, query, kind).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrNeverSynced
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync state: %w", err)
	}

	synced, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sync state timestamp: %w", err)
	}
	return synced, nil
}
