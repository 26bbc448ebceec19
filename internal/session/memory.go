package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-process map. Suitable for
// single-instance deployments and tests; data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Session

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a memory-backed session store and starts its
// periodic cleanup.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]*Session),
		stop: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = m.Cleanup(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Create registers a new session.
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session: id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[s.ID]; exists {
		return fmt.Errorf("session: id %s already exists", s.ID)
	}
	copy := *s
	m.data[s.ID] = &copy
	return nil
}

// Get retrieves a session, deleting it when expired.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.data[id]
	if !exists {
		return nil, ErrNotFound
	}
	if s.Expired() {
		delete(m.data, id)
		return nil, ErrNotFound
	}

	copy := *s
	return &copy, nil
}

// Update replaces the stored session state.
func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session: id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[s.ID]; !exists {
		return ErrNotFound
	}
	copy := *s
	m.data[s.ID] = &copy
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

// Cleanup removes expired sessions.
func (m *MemoryStore) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.data {
		if s.Expired() {
			delete(m.data, id)
		}
	}
	return nil
}

// Close stops the cleanup loop and drops all sessions.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*Session)
	return nil
}
