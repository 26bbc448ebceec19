package bexio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProxy emulates the tic-tac /api/proxy endpoint. handle receives the
// decoded envelope and returns the remote status plus payload.
func fakeProxy(t *testing.T, handle func(req proxyRequest) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/proxy" {
			http.NotFound(w, r)
			return
		}
		var req proxyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, payload := handle(req)
		data, _ := json.Marshal(payload)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(proxyResponse{
			Data:       data,
			Status:     status,
			StatusText: http.StatusText(status),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}))
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	store := &stubStore{cred: &Credential{AuthType: AuthTypeAPIKey, APIKey: "key", CompanyID: "company-1"}}
	c := NewClient(srv.URL, NewTokenManager(store, &stubRefresher{}))
	// No real pauses in tests.
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	c.writes = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: IsTransient}
	return c
}

func TestDeleteTimeEntry_404IsSuccess(t *testing.T) {
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		if req.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", req.Method)
		}
		return http.StatusNotFound, map[string]string{"message": "not found"}
	})
	defer srv.Close()

	if err := testClient(t, srv).DeleteTimeEntry(context.Background(), 42); err != nil {
		t.Fatalf("404 delete must be treated as success, got %v", err)
	}
}

func TestCreateTimeEntry_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		if calls.Add(1) < 3 {
			return http.StatusServiceUnavailable, map[string]string{"message": "busy"}
		}
		return http.StatusCreated, TimeEntry{ID: 7}
	})
	defer srv.Close()

	created, err := testClient(t, srv).CreateTimeEntry(context.Background(), TimeEntry{UserID: 1})
	if err != nil {
		t.Fatalf("CreateTimeEntry error: %v", err)
	}
	if created.ID != 7 {
		t.Fatalf("expected created entry id 7, got %d", created.ID)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCreateTimeEntry_TerminalFailureNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		calls.Add(1)
		return http.StatusUnprocessableEntity, map[string]string{"message": "invalid entry"}
	})
	defer srv.Close()

	_, err := testClient(t, srv).CreateTimeEntry(context.Background(), TimeEntry{})
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 RemoteError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("terminal failure retried %d times", calls.Load())
	}
}

func TestListContacts_RateLimitedReadRetriesOnce(t *testing.T) {
	var calls atomic.Int64
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		if calls.Add(1) == 1 {
			return http.StatusTooManyRequests, map[string]string{"message": "slow down"}
		}
		return http.StatusOK, []Contact{{ID: 1, Name1: "Acme"}}
	})
	defer srv.Close()

	contacts, err := testClient(t, srv).ListContacts(context.Background())
	if err != nil {
		t.Fatalf("ListContacts error: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Name1 != "Acme" {
		t.Fatalf("unexpected contacts: %+v", contacts)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one delayed retry, got %d calls", calls.Load())
	}
}

func TestCreateTimeEntries_BatchIsolation(t *testing.T) {
	// 12 entries, batch size 5. Entry #7 always fails terminally; the other
	// 11 must still succeed and the failure must carry its error.
	var nextID atomic.Int64
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		raw, _ := json.Marshal(req.Data)
		var entry TimeEntry
		_ = json.Unmarshal(raw, &entry)
		if strings.Contains(entry.Text, "entry-7") {
			return http.StatusUnprocessableEntity, map[string]string{"message": "rejected"}
		}
		entry.ID = int(nextID.Add(1))
		return http.StatusCreated, entry
	})
	defer srv.Close()

	entries := make([]TimeEntry, 12)
	for i := range entries {
		entries[i] = TimeEntry{UserID: 1, Text: fmt.Sprintf("entry-%d", i+1)}
	}

	result, err := testClient(t, srv).CreateTimeEntries(context.Background(), entries)
	if err != nil {
		t.Fatalf("CreateTimeEntries error: %v", err)
	}
	if len(result.Succeeded) != 11 {
		t.Fatalf("expected 11 successes, got %d", len(result.Succeeded))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failed))
	}
	if result.Failed[0].Entry.Text != "entry-7" {
		t.Fatalf("wrong entry failed: %+v", result.Failed[0].Entry)
	}
	if result.Failed[0].Err == nil {
		t.Fatal("failure must carry its error")
	}
}

func TestUpdateTimeEntry_PartialUpdateSurfaced(t *testing.T) {
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		switch req.Method {
		case http.MethodDelete:
			return http.StatusOK, map[string]bool{"success": true}
		case http.MethodPost:
			return http.StatusUnprocessableEntity, map[string]string{"message": "rejected"}
		}
		return http.StatusBadRequest, nil
	})
	defer srv.Close()

	_, err := testClient(t, srv).UpdateTimeEntry(context.Background(), 5, TimeEntry{UserID: 1})
	var partial *PartialUpdateError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialUpdateError, got %v", err)
	}
	if partial.DeletedID != 5 {
		t.Fatalf("expected deleted id 5, got %d", partial.DeletedID)
	}
}

func TestUpdateTimeEntry_DeleteFailureAbortsCreate(t *testing.T) {
	var created atomic.Int64
	srv := fakeProxy(t, func(req proxyRequest) (int, any) {
		switch req.Method {
		case http.MethodDelete:
			return http.StatusForbidden, map[string]string{"message": "no"}
		case http.MethodPost:
			created.Add(1)
			return http.StatusCreated, TimeEntry{ID: 1}
		}
		return http.StatusBadRequest, nil
	})
	defer srv.Close()

	_, err := testClient(t, srv).UpdateTimeEntry(context.Background(), 5, TimeEntry{UserID: 1})
	if err == nil {
		t.Fatal("expected error when delete phase fails")
	}
	var partial *PartialUpdateError
	if errors.As(err, &partial) {
		t.Fatalf("delete failure is not a partial update: %v", err)
	}
	if created.Load() != 0 {
		t.Fatal("create must not run after a failed delete")
	}
}
