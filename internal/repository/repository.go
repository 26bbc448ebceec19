// Package repository provides the local cache of upstream records. The
// sync command fills it, the CLI reads from it, and disconnect wipes it.
package repository

import (
	"context"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

// ContactRepository provides high-level operations for cached contacts
type ContactRepository interface {
	ReplaceAll(ctx context.Context, contacts []bexio.Contact) error
	Get(ctx context.Context, id int) (*bexio.Contact, error)
	List(ctx context.Context) ([]bexio.Contact, error)
	LastSynced(ctx context.Context) (time.Time, error)
}

// ProjectRepository provides high-level operations for cached projects
type ProjectRepository interface {
	ReplaceAll(ctx context.Context, projects []bexio.Project) error
	Get(ctx context.Context, id int) (*bexio.Project, error)
	List(ctx context.Context) ([]bexio.Project, error)
	ListByContact(ctx context.Context, contactID int) ([]bexio.Project, error)
	LastSynced(ctx context.Context) (time.Time, error)
}

// TimeEntryRepository provides high-level operations for cached time entries
type TimeEntryRepository interface {
	ReplaceAll(ctx context.Context, entries []bexio.TimeEntry) error
	Get(ctx context.Context, id int) (*bexio.TimeEntry, error)
	List(ctx context.Context) ([]bexio.TimeEntry, error)
	ListByProject(ctx context.Context, projectID int) ([]bexio.TimeEntry, error)
	LastSynced(ctx context.Context) (time.Time, error)
}

// Repository aggregates all repository interfaces
type Repository interface {
	Contacts() ContactRepository
	Projects() ProjectRepository
	TimeEntries() TimeEntryRepository
	// Wipe drops every cached row. Called on disconnect.
	Wipe(ctx context.Context) error
}

// repositoryImpl implements the Repository interface using the database service
type repositoryImpl struct {
	dbService   *db.Service
	contacts    ContactRepository
	projects    ProjectRepository
	timeEntries TimeEntryRepository
}

// NewRepository creates a new repository instance
func NewRepository(dbService *db.Service) Repository {
	return &repositoryImpl{
		dbService:   dbService,
		contacts:    &contactRepository{dbService: dbService},
		projects:    &projectRepository{dbService: dbService},
		timeEntries: &timeEntryRepository{dbService: dbService},
	}
}

// Contacts returns the contact repository
func (r *repositoryImpl) Contacts() ContactRepository {
	return r.contacts
}

// Projects returns the project repository
func (r *repositoryImpl) Projects() ProjectRepository {
	return r.projects
}

// TimeEntries returns the time entry repository
func (r *repositoryImpl) TimeEntries() TimeEntryRepository {
	return r.timeEntries
}

// Wipe drops all cached rows
func (r *repositoryImpl) Wipe(ctx context.Context) error {
	return r.dbService.Wipe(ctx)
}
