package store

import (
	"context"
	"sync"

	"nutrimind"
)

// MemoryStore is an in-memory PreferenceProvider and SessionStore for tests and
// local runs without persistence.
type MemoryStore struct {
	mu       sync.RWMutex
	prefs    map[string]map[string]string
	sessions map[string]nutrimind.PendingClarification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs:    map[string]map[string]string{},
		sessions: map[string]nutrimind.PendingClarification{},
	}
}

func (m *MemoryStore) GetPreferences(ctx context.Context, userKey string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := map[string]string{}
	for k, v := range m.prefs[userKey] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SetPreference(ctx context.Context, userKey, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prefs[userKey] == nil {
		m.prefs[userKey] = map[string]string{}
	}
	m.prefs[userKey][key] = value
	return nil
}

func (m *MemoryStore) DeletePreference(ctx context.Context, userKey, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.prefs[userKey], key)
	return nil
}

func (m *MemoryStore) SavePending(ctx context.Context, session nutrimind.PendingClarification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.UserKey] = session
	return nil
}

func (m *MemoryStore) GetPending(ctx context.Context, userKey string) (*nutrimind.PendingClarification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[userKey]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *MemoryStore) ClearPending(ctx context.Context, userKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userKey)
	return nil
}
