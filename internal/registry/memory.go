package registry

import (
	"context"
	"sync"

	"github.com/hyunwoo/slidecheck/internal/models"
)

// Memory is the default in-process registry: one map behind a single
// RWMutex. Contention is low and critical sections are map operations,
// so one guard is enough. Lost on process restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*models.FileSession
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*models.FileSession),
	}
}

// Put stores a new session record.
func (m *Memory) Put(ctx context.Context, session *models.FileSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

// Get returns a copy of the session so callers never share memory with
// the table.
func (m *Memory) Get(ctx context.Context, id string) (*models.FileSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// Update applies mutate under the write lock and returns a copy of the
// result.
func (m *Memory) Update(ctx context.Context, id string, mutate Mutator) (*models.FileSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	mutate(session)
	copied := *session
	return &copied, nil
}

// Delete removes the session.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns copies of all sessions in no particular order.
func (m *Memory) List(ctx context.Context) ([]*models.FileSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*models.FileSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		copied := *session
		sessions = append(sessions, &copied)
	}
	return sessions, nil
}
