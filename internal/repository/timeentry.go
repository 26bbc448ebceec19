package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

const timeEntryKind = "time_entries"

// timeEntryRepository implements TimeEntryRepository
type timeEntryRepository struct {
	dbService *db.Service
}

// ReplaceAll swaps the cached time entry set for the given one
func (r *timeEntryRepository) ReplaceAll(ctx context.Context, entries []bexio.TimeEntry) error {
	driver := r.dbService.Driver()
	return r.dbService.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM time_entries"); err != nil {
			return fmt.Errorf("failed to clear time entries: %w", err)
		}

		insert := fmt.Sprintf(
			"INSERT INTO time_entries (id, user_id, client_service_id, contact_id, project_id, text, allowable_bill, tracking_date, tracking_duration) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)",
			db.GetPlaceholder(driver, 1), db.GetPlaceholder(driver, 2),
			db.GetPlaceholder(driver, 3), db.GetPlaceholder(driver, 4),
			db.GetPlaceholder(driver, 5), db.GetPlaceholder(driver, 6),
			db.GetPlaceholder(driver, 7), db.GetPlaceholder(driver, 8),
			db.GetPlaceholder(driver, 9))
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, insert,
				e.ID, e.UserID, e.ClientServiceID, e.ContactID, e.ProjectID,
				e.Text, e.AllowableBill, e.Tracking.Date, e.Tracking.Duration); err != nil {
				return fmt.Errorf("failed to insert time entry %d: %w", e.ID, err)
			}
		}

		return markSynced(ctx, tx, driver, timeEntryKind)
	})
}

// Get retrieves a cached time entry by id
func (r *timeEntryRepository) Get(ctx context.Context, id int) (*bexio.TimeEntry, error) {
	query := fmt.Sprintf(
		"SELECT id, user_id, client_service_id, contact_id, project_id, text, allowable_bill, tracking_date, tracking_duration FROM time_entries WHERE id = %s",
		db.GetPlaceholder(r.dbService.Driver(), 1))

	var e bexio.TimeEntry
	err := r.dbService.DB().QueryRowContext(ctx, query, id).
		Scan(&e.ID, &e.UserID, &e.ClientServiceID, &e.ContactID, &e.ProjectID,
			&e.Text, &e.AllowableBill, &e.Tracking.Date, &e.Tracking.Duration)
	if err == sql.ErrNoRows {
		return nil, ErrTimeEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time entry: %w", err)
	}
	e.Tracking.Type = "duration"
	return &e, nil
}

// List returns all cached time entries
func (r *timeEntryRepository) List(ctx context.Context) ([]bexio.TimeEntry, error) {
	return r.queryEntries(ctx,
		"SELECT id, user_id, client_service_id, contact_id, project_id, text, allowable_bill, tracking_date, tracking_duration FROM time_entries ORDER BY tracking_date, id")
}

// ListByProject returns cached time entries for a project
func (r *timeEntryRepository) ListByProject(ctx context.Context, projectID int) ([]bexio.TimeEntry, error) {
	query := fmt.Sprintf(
		"SELECT id, user_id, client_service_id, contact_id, project_id, text, allowable_bill, tracking_date, tracking_duration FROM time_entries WHERE project_id = %s ORDER BY tracking_date, id",
		db.GetPlaceholder(r.dbService.Driver(), 1))
	return r.queryEntries(ctx, query, projectID)
}

func (r *timeEntryRepository) queryEntries(ctx context.Context, query string, args ...any) ([]bexio.TimeEntry, error) {
	rows, err := r.dbService.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []bexio.TimeEntry
	for rows.Next() {
		var e bexio.TimeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ClientServiceID, &e.ContactID, &e.ProjectID,
			&e.Text, &e.AllowableBill, &e.Tracking.Date, &e.Tracking.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		e.Tracking.Type = "duration"
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastSynced reports when the time entry cache was last replaced
func (r *timeEntryRepository) LastSynced(ctx context.Context) (time.Time, error) {
	return lastSynced(ctx, r.dbService, timeEntryKind)
}
