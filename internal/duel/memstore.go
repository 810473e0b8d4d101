package duel

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Ephemeral and Durable implementation used when
// no Redis or database is configured, and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	raw, ok := m.sessions[strings.TrimSpace(id)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw, ok := m.sessions[s.ID]; ok {
		var stored struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.Version != s.Version {
			return ErrVersionConflict
		}
	}
	next := *s
	next.Version = s.Version + 1
	raw, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = raw
	s.Version = next.Version
	return nil
}

// Upsert stores the record without a version check; it is the durable side.
func (m *MemoryStore) Upsert(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, strings.TrimSpace(id))
	m.mu.Unlock()
	return nil
}

// IDs lists stored session ids in sorted order.
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
