package stores

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for testing.
type MemoryStore struct {
	Content map[string][]byte
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Content: make(map[string][]byte)}
}

func (m *MemoryStore) Provider() string { return "memory" }

func (m *MemoryStore) Read(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var content, exists = m.Content[name]
	if !exists {
		return nil, ErrNotFound
	}
	if offset >= int64(len(content)) {
		return nil, nil
	}
	var end = offset + length
	if length < 0 || end > int64(len(content)) {
		end = int64(len(content))
	}
	var out = make([]byte, end-offset)
	copy(out, content[offset:end])
	return out, nil
}

func (m *MemoryStore) Write(ctx context.Context, name string, offset int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Content[name] = Patch(m.Content[name], offset, data)
	return nil
}

func (m *MemoryStore) Stat(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var content, exists = m.Content[name]
	if !exists {
		return 0, ErrNotFound
	}
	return int64(len(content)), nil
}

func (m *MemoryStore) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Content[name]; !exists {
		return ErrNotFound
	}
	delete(m.Content, name)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string, callback func(name string) error) error {
	m.mu.RLock()
	var names []string
	for name := range m.Content {
		if strings.HasPrefix(name, prefix) {
			names = append(names, strings.TrimPrefix(name, prefix))
		}
	}
	m.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		if err := callback(name); err != nil {
			return err
		}
	}
	return nil
}
