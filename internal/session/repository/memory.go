package repository

import (
	"context"
	"sync"
	"time"

	"ger/backend/internal/session/domain"
)

// MemoryStore is an in-process Store for tests and single-instance development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, id, userID, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return ErrConflict
	}
	m.sessions[id] = domain.Session{ID: id, UserID: userID, RefreshToken: refreshToken, CreatedAt: m.now().UTC()}
	return nil
}

func (m *MemoryStore) Fetch(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) ReplaceRefreshToken(_ context.Context, id, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.RefreshToken != expected {
		return ErrConflict
	}
	s.RefreshToken = next
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
