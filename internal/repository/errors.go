package repository

import "errors"

// Common repository errors that can be tested for
var (
	ErrContactNotFound   = errors.New("contact not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrTimeEntryNotFound = errors.New("time entry not found")
	ErrNeverSynced       = errors.New("cache has never been synced")
	ErrInvalidInput      = errors.New("invalid input")
)
