package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

const projectKind = "projects"

// projectRepository implements ProjectRepository
type projectRepository struct {
	dbService *db.Service
}

// ReplaceAll swaps the cached project set for the given one
func (r *projectRepository) ReplaceAll(ctx context.Context, projects []bexio.Project) error {
	driver := r.dbService.Driver()
	return r.dbService.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
			return fmt.Errorf("failed to clear projects: %w", err)
		}

		insert := fmt.Sprintf(
			"INSERT INTO projects (id, name, contact_id, start_date, end_date) VALUES (%s, %s, %s, %s, %s)",
			db.GetPlaceholder(driver, 1), db.GetPlaceholder(driver, 2),
			db.GetPlaceholder(driver, 3), db.GetPlaceholder(driver, 4),
			db.GetPlaceholder(driver, 5))
		for _, p := range projects {
			if _, err := tx.ExecContext(ctx, insert, p.ID, p.Name, p.ContactID, p.StartDate, p.EndDate); err != nil {
				return fmt.Errorf("failed to insert project %d: %w", p.ID, err)
			}
		}

		return markSynced(ctx, tx, driver, projectKind)
	})
}

// Get retrieves a cached project by id
func (r *projectRepository) Get(ctx context.Context, id int) (*bexio.Project, error) {
	query := fmt.Sprintf(
		"SELECT id, name, contact_id, start_date, end_date FROM projects WHERE id = %s",
		db.GetPlaceholder(r.dbService.Driver(), 1))

	var p bexio.Project
	err := r.dbService.DB().QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.ContactID, &p.StartDate, &p.EndDate)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// List returns all cached projects
func (r *projectRepository) List(ctx context.Context) ([]bexio.Project, error) {
	return r.queryProjects(ctx,
		"SELECT id, name, contact_id, start_date, end_date FROM projects ORDER BY name, id")
}

// ListByContact returns cached projects belonging to a contact
func (r *projectRepository) ListByContact(ctx context.Context, contactID int) ([]bexio.Project, error) {
	query := fmt.Sprintf(
		"SELECT id, name, contact_id, start_date, end_date FROM projects WHERE contact_id = %s ORDER BY name, id",
		db.GetPlaceholder(r.dbService.Driver(), 1))
	return r.queryProjects(ctx, query, contactID)
}

func (r *projectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]bexio.Project, error) {
	rows, err := r.dbService.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []bexio.Project
	for rows.Next() {
		var p bexio.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ContactID, &p.StartDate, &p.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// LastSynced reports when the project cache was last replaced
func (r *projectRepository) LastSynced(ctx context.Context) (time.Time, error) {
	return lastSynced(ctx, r.dbService, projectKind)
}
