package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/advisorly/reading-room/internal/domain"
)

// MemoryStore is a process-local SnapshotStore. Snapshots do not survive a
// restart, which degrades recovery to re-authentication; it serves
// single-node deployments without redis, and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	contexts map[string]domain.RoomContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		contexts: make(map[string]domain.RoomContext),
	}
}

func sessionKey(roomID, connID string) string {
	return roomID + ":" + connID
}

func (m *MemoryStore) SaveSession(_ context.Context, roomID string, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey(roomID, session.ConnID)] = session
	return nil
}

func (m *MemoryStore) LoadSession(_ context.Context, roomID, connID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionKey(roomID, connID)]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, roomID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(roomID, connID))
	return nil
}

func (m *MemoryStore) SaveContext(_ context.Context, roomID string, rc domain.RoomContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[roomID] = rc
	return nil
}

func (m *MemoryStore) LoadContext(_ context.Context, roomID string) (*domain.RoomContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.contexts[roomID]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

func (m *MemoryStore) Clear(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.sessions {
		if strings.HasPrefix(key, roomID+":") {
			delete(m.sessions, key)
		}
	}
	delete(m.contexts, roomID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
