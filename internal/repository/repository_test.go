package repository

import (
	"errors"
	"testing"

	"github.com/dhruv-db/tic-tac-sub000/internal/testutil"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
)

func TestContactRepository_Get_NotFound(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))

	_, err := repo.Contacts().Get(t.Context(), 999)
	if !errors.Is(err, ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}
}

func TestContactRepository_ReplaceAllAndList(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if err := repo.Contacts().ReplaceAll(ctx, testutil.SampleContacts()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	contacts, err := repo.Contacts().List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(contacts) != 3 {
		t.Fatalf("got %d contacts, want 3", len(contacts))
	}
	// Ordered by name.
	if contacts[0].Name1 != "Acme AG" {
		t.Errorf("first contact = %q", contacts[0].Name1)
	}

	got, err := repo.Contacts().Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name2 != "GmbH" {
		t.Errorf("Name2 = %q", got.Name2)
	}
}

func TestContactRepository_ReplaceAllDropsStaleRows(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if err := repo.Contacts().ReplaceAll(ctx, testutil.SampleContacts()); err != nil {
		t.Fatalf("first ReplaceAll error: %v", err)
	}
	if err := repo.Contacts().ReplaceAll(ctx, []bexio.Contact{{ID: 9, Name1: "Solo"}}); err != nil {
		t.Fatalf("second ReplaceAll error: %v", err)
	}

	contacts, err := repo.Contacts().List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != 9 {
		t.Errorf("stale rows survived: %+v", contacts)
	}
}

func TestProjectRepository_ListByContact(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if err := repo.Projects().ReplaceAll(ctx, testutil.SampleProjects()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	projects, err := repo.Projects().ListByContact(ctx, 1)
	if err != nil {
		t.Fatalf("ListByContact error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects for contact 1, want 2", len(projects))
	}
	for _, p := range projects {
		if p.ContactID != 1 {
			t.Errorf("project %d belongs to contact %d", p.ID, p.ContactID)
		}
	}
}

func TestTimeEntryRepository_RoundTrip(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if err := repo.TimeEntries().ReplaceAll(ctx, testutil.SampleTimeEntries()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	entry, err := repo.TimeEntries().Get(ctx, 100)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !entry.AllowableBill {
		t.Error("AllowableBill lost in round trip")
	}
	if entry.Tracking.Duration != "02:30" || entry.Tracking.Date != "2026-02-02" {
		t.Errorf("tracking = %+v", entry.Tracking)
	}
	if entry.Tracking.Type != "duration" {
		t.Errorf("tracking type = %q", entry.Tracking.Type)
	}

	byProject, err := repo.TimeEntries().ListByProject(ctx, 11)
	if err != nil {
		t.Fatalf("ListByProject error: %v", err)
	}
	if len(byProject) != 1 || byProject[0].ID != 101 {
		t.Errorf("byProject = %+v", byProject)
	}
}

func TestLastSynced(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if _, err := repo.Contacts().LastSynced(ctx); !errors.Is(err, ErrNeverSynced) {
		t.Errorf("expected ErrNeverSynced, got %v", err)
	}

	if err := repo.Contacts().ReplaceAll(ctx, testutil.SampleContacts()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	synced, err := repo.Contacts().LastSynced(ctx)
	if err != nil {
		t.Fatalf("LastSynced error: %v", err)
	}
	if synced.IsZero() {
		t.Error("sync time should be set")
	}

	// Other kinds are tracked independently.
	if _, err := repo.Projects().LastSynced(ctx); !errors.Is(err, ErrNeverSynced) {
		t.Errorf("projects should be unsynced, got %v", err)
	}
}

func TestWipeDestroysCache(t *testing.T) {
	repo := NewRepository(testutil.TestDatabase(t))
	ctx := t.Context()

	if err := repo.Contacts().ReplaceAll(ctx, testutil.SampleContacts()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}
	if err := repo.TimeEntries().ReplaceAll(ctx, testutil.SampleTimeEntries()); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	if err := repo.Wipe(ctx); err != nil {
		t.Fatalf("Wipe error: %v", err)
	}

	contacts, err := repo.Contacts().List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(contacts) != 0 {
		t.Errorf("contacts survived wipe: %+v", contacts)
	}
	if _, err := repo.Contacts().LastSynced(ctx); !errors.Is(err, ErrNeverSynced) {
		t.Errorf("sync state survived wipe: %v", err)
	}
}
