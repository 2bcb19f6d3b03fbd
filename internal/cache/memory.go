package cache

import (
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// memoryStore is the per-process fallback. Expired entries are dropped
// lazily on read.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{entries: make(map[string]memEntry), now: now}
}

func (m *memoryStore) get(key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false
	}
	return e.value, true
}

func (m *memoryStore) set(key, value string, ttl time.Duration) {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memoryStore) deletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *memoryStore) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
