package bexio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// batchSize is the number of time entries submitted per batch.
	batchSize = 5
	// batchPause is the pause between batches to stay under provider
	// rate limits.
	batchPause = 1000 * time.Millisecond
	// readRetryDelay is the single fixed delay applied when a read path
	// is rate limited.
	readRetryDelay = 2 * time.Second

	proxyTimeout = 60 * time.Second
)

// Client performs authenticated bexio operations through the tic-tac proxy.
// Every call injects a bearer token obtained from the token manager.
type Client struct {
	baseURL    string
	manager    *TokenManager
	httpClient *http.Client
	writes     RetryPolicy

	// now and sleep are swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a proxy client. baseURL is the tic-tac server base URL
// without trailing slash.
func NewClient(baseURL string, manager *TokenManager) *Client {
	return &Client{
		baseURL:    baseURL,
		manager:    manager,
		httpClient: &http.Client{Timeout: proxyTimeout},
		writes:     DefaultWritePolicy(),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// proxyRequest is the envelope the tic-tac proxy endpoint accepts.
type proxyRequest struct {
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
	AccessToken string `json:"accessToken"`
	CompanyID   string `json:"companyId"`
	Data        any    `json:"data,omitempty"`
}

// proxyResponse wraps the remote response, preserving the remote status.
type proxyResponse struct {
	Data       json.RawMessage   `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

// Invoke forwards one call through the proxy and decodes the remote payload
// into out (when out is non-nil). Non-2xx remote statuses are returned as
// *RemoteError.
func (c *Client) Invoke(ctx context.Context, method, endpoint string, data, out any) error {
	token, err := c.manager.EnsureValidToken(ctx)
	if err != nil {
		return err
	}
	cred, err := c.manager.Credential()
	if err != nil {
		return err
	}

	body, err := json.Marshal(proxyRequest{
		Endpoint:    endpoint,
		Method:      method,
		AccessToken: token,
		CompanyID:   cred.CompanyID,
		Data:        data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/proxy", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Body: string(raw)}
	}

	var wrapped proxyResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return fmt.Errorf("bexio: decode proxy response: %w", err)
	}
	if wrapped.Status < 200 || wrapped.Status >= 300 {
		return &RemoteError{Status: wrapped.Status, Body: string(wrapped.Data)}
	}
	if out != nil && len(wrapped.Data) > 0 {
		if err := json.Unmarshal(wrapped.Data, out); err != nil {
			return fmt.Errorf("bexio: decode %s payload: %w", endpoint, err)
		}
	}
	return nil
}

// read performs a GET-style call. A 429 triggers one delayed retry, not the
// full backoff ladder.
func (c *Client) read(ctx context.Context, endpoint string, out any) error {
	err := c.Invoke(ctx, http.MethodGet, endpoint, nil, out)
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Status == 429 {
		if serr := c.sleep(ctx, readRetryDelay); serr != nil {
			return serr
		}
		return c.Invoke(ctx, http.MethodGet, endpoint, nil, out)
	}
	return err
}

// ListContacts fetches all contacts.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.read(ctx, "/contact", &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// ListProjects fetches all projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.read(ctx, "/pr_project", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListTimeEntries fetches the timesheet entries.
func (c *Client) ListTimeEntries(ctx context.Context) ([]TimeEntry, error) {
	var entries []TimeEntry
	if err := c.read(ctx, "/timesheet", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateTimeEntry creates a single time entry with the write retry policy.
func (c *Client) CreateTimeEntry(ctx context.Context, entry TimeEntry) (*TimeEntry, error) {
	var created TimeEntry
	err := c.writes.Do(ctx, func(ctx context.Context) error {
		return c.Invoke(ctx, http.MethodPost, "/timesheet", entry, &created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteTimeEntry deletes a time entry. A 404 means the entry is already
// absent and is treated as success.
func (c *Client) DeleteTimeEntry(ctx context.Context, id int) error {
	err := c.writes.Do(ctx, func(ctx context.Context) error {
		err := c.Invoke(ctx, http.MethodDelete, fmt.Sprintf("/timesheet/%d", id), nil, nil)
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
			return nil
		}
		return err
	})
	return err
}

// UpdateTimeEntry replaces an existing entry. The provider has no update
// primitive, so this is a compensating delete-then-create: the delete must
// succeed before the create is attempted, and a failed create after a
// successful delete surfaces as *PartialUpdateError.
func (c *Client) UpdateTimeEntry(ctx context.Context, id int, entry TimeEntry) (*TimeEntry, error) {
	if err := c.DeleteTimeEntry(ctx, id); err != nil {
		return nil, fmt.Errorf("bexio: update delete phase: %w", err)
	}

	created, err := c.CreateTimeEntry(ctx, entry)
	if err != nil {
		return nil, &PartialUpdateError{DeletedID: id, Cause: err}
	}
	return created, nil
}

// CreateTimeEntries creates entries in batches of five with a fixed pause
// between batches. Failures are collected per entry; one bad entry never
// aborts the rest.
func (c *Client) CreateTimeEntries(ctx context.Context, entries []TimeEntry) (*BatchResult, error) {
	result := &BatchResult{}

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}

		if start > 0 {
			if err := c.sleep(ctx, batchPause); err != nil {
				return result, err
			}
		}

		for _, entry := range entries[start:end] {
			created, err := c.CreateTimeEntry(ctx, entry)
			if err != nil {
				result.Failed = append(result.Failed, BatchFailure{Entry: entry, Err: err})
				continue
			}
			result.Succeeded = append(result.Succeeded, *created)
		}
	}

	return result, nil
}
