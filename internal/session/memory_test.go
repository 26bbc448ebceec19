package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return store
}

func pendingSession(id string) *Session {
	return &Session{
		ID:           id,
		Status:       StatusPending,
		CodeVerifier: "verifier-" + id,
		Platform:     PlatformWeb,
		RedirectURI:  "https://app/cb",
		CreatedAt:    time.Now(),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, pendingSession("s1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != StatusPending || got.CodeVerifier != "verifier-s1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestMemoryStoreDuplicateCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, pendingSession("s1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := store.Create(ctx, pendingSession("s1")); err == nil {
		t.Fatal("expected error on duplicate create")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A session created 11 minutes ago must read as absent and be removed.
	old := pendingSession("old")
	old.CreatedAt = time.Now().Add(-11 * time.Minute)
	if err := store.Create(ctx, old); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired session, got %v", err)
	}

	// The lazy delete must have removed the entry entirely.
	store.mu.RLock()
	_, still := store.data["old"]
	store.mu.RUnlock()
	if still {
		t.Fatal("expired session was not removed from storage")
	}
}

func TestMemoryStoreUpdateCompletesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, pendingSession("s1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, _ := store.Get(ctx, "s1")
	got.Status = StatusCompleted
	got.Tokens = &TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	reread, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if reread.Status != StatusCompleted || reread.Tokens == nil {
		t.Fatalf("update not visible: %+v", reread)
	}
	// The verifier is immutable across updates.
	if reread.CodeVerifier != "verifier-s1" {
		t.Fatalf("code verifier changed: %q", reread.CodeVerifier)
	}
}

func TestMemoryStoreUpdateAbsent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Update(context.Background(), pendingSession("ghost")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDeleteAbsent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete(context.Background(), "ghost"); err != nil {
		t.Fatalf("deleting absent session must not fail: %v", err)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh := pendingSession("fresh")
	stale := pendingSession("stale")
	stale.CreatedAt = time.Now().Add(-TTL - time.Minute)
	_ = store.Create(ctx, fresh)
	_ = store.Create(ctx, stale)

	if err := store.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}

	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh session removed by cleanup: %v", err)
	}
	store.mu.RLock()
	_, still := store.data["stale"]
	store.mu.RUnlock()
	if still {
		t.Fatal("stale session survived cleanup")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.Create(ctx, pendingSession("shared"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s, err := store.Get(ctx, "shared")
			if err != nil {
				return
			}
			s.Status = StatusCompleted
			_ = store.Update(ctx, s)
		}
	}()
	for i := 0; i < 200; i++ {
		_, _ = store.Get(ctx, "shared")
	}
	<-done
}
