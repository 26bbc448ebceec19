package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

const contactKind = "contacts"

// contactRepository implements ContactRepository
type contactRepository struct {
	dbService *db.Service
}

// ReplaceAll swaps the cached contact set for the given one in a single
// transaction, so readers never observe a half-synced cache.
func (r *contactRepository) ReplaceAll(ctx context.Context, contacts []bexio.Contact) error {
	driver := r.dbService.Driver()
	return r.dbService.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM contacts"); err != nil {
			return fmt.Errorf("failed to clear contacts: %w", err)
		}

		insert := fmt.Sprintf(
			"INSERT INTO contacts (id, name_1, name_2, mail, contact_type_id) VALUES (%s, %s, %s, %s, %s)",
			db.GetPlaceholder(driver, 1), db.GetPlaceholder(driver, 2),
			db.GetPlaceholder(driver, 3), db.GetPlaceholder(driver, 4),
			db.GetPlaceholder(driver, 5))
		for _, c := range contacts {
			if _, err := tx.ExecContext(ctx, insert, c.ID, c.Name1, c.Name2, c.Mail, c.ContactTypeID); err != nil {
				return fmt.Errorf("failed to insert contact %d: %w", c.ID, err)
			}
		}

		return markSynced(ctx, tx, driver, contactKind)
	})
}

// Get retrieves a cached contact by id
func (r *contactRepository) Get(ctx context.Context, id int) (*bexio.Contact, error) {
	query := fmt.Sprintf(
		"SELECT id, name_1, name_2, mail, contact_type_id FROM contacts WHERE id = %s",
		db.GetPlaceholder(r.dbService.Driver(), 1))

	var c bexio.Contact
	err := r.dbService.DB().QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.Name1, &c.Name2, &c.Mail, &c.ContactTypeID)
	if err == sql.ErrNoRows {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

// List returns all cached contacts
func (r *contactRepository) List(ctx context.Context) ([]bexio.Contact, error) {
	rows, err := r.dbService.DB().QueryContext(ctx,
		"SELECT id, name_1, name_2, mail, contact_type_id FROM contacts ORDER BY name_1, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []bexio.Contact
	for rows.Next() {
		var c bexio.Contact
		if err := rows.Scan(&c.ID, &c.Name1, &c.Name2, &c.Mail, &c.ContactTypeID); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// LastSynced reports when the contact cache was last replaced
func (r *contactRepository) LastSynced(ctx context.Context) (time.Time, error) {
	return lastSynced(ctx, r.dbService, contactKind)
}
