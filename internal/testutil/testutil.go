// Package testutil provides shared helpers for database-backed tests
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

// TestDatabase creates an in-memory SQLite database for testing
func TestDatabase(t *testing.T) *db.Service {
	t.Helper()

	cfg := &config.Config{
		DatabaseURL: ":memory:",
		AppEnv:      config.EnvTest,
	}

	dbService, err := db.NewService(cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if err := dbService.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return dbService
}

// TestServer creates a test HTTP server - mux should be set up by the test
func TestServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
	})

	return server
}

// SampleContacts returns a small deterministic contact set for seeding
func SampleContacts() []bexio.Contact {
	return []bexio.Contact{
		{ID: 1, Name1: "Acme AG", Mail: "billing@acme.example"},
		{ID: 2, Name1: "Die Werkstatt", Name2: "GmbH"},
		{ID: 3, Name1: "Nordwind Consulting"},
	}
}

// SampleProjects returns a small deterministic project set for seeding
func SampleProjects() []bexio.Project {
	return []bexio.Project{
		{ID: 10, Name: "Website Relaunch", ContactID: 1, StartDate: "2026-01-05"},
		{ID: 11, Name: "Maintenance", ContactID: 1},
		{ID: 12, Name: "Audit", ContactID: 3},
	}
}

// SampleTimeEntries returns a small deterministic time entry set for seeding
func SampleTimeEntries() []bexio.TimeEntry {
	return []bexio.TimeEntry{
		{
			ID: 100, UserID: 1, ClientServiceID: 2, ContactID: 1, ProjectID: 10,
			Text: "Kickoff", AllowableBill: true,
			Tracking: bexio.TimeTracking{Type: "duration", Date: "2026-02-02", Duration: "02:30"},
		},
		{
			ID: 101, UserID: 1, ClientServiceID: 2, ContactID: 1, ProjectID: 11,
			Text: "Patching", AllowableBill: false,
			Tracking: bexio.TimeTracking{Type: "duration", Date: "2026-02-03", Duration: "00:45"},
		},
	}
}
