package content

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"homedrive/internal/drive"
)

// MemStore is an in-memory implementation of the ContentStore interface,
// useful for testing. It is safe for concurrent use.
type MemStore struct {
	content map[string][]byte
	mtimes  map[string]int64
	mu      sync.RWMutex
}

var _ drive.ContentStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		content: make(map[string][]byte),
		mtimes:  make(map[string]int64),
	}
}

func (m *MemStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[path]
	if !ok {
		return nil, fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemStore) Write(path string, content []byte) error {
	if path == "" {
		return fmt.Errorf("empty path: %w", drive.ErrContent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(content))
	copy(data, content)
	m.content[path] = data
	m.mtimes[path] = time.Now().UnixMilli()
	return nil
}

func (m *MemStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.content[path]; !ok {
		return fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
	}
	delete(m.content, path)
	delete(m.mtimes, path)
	return nil
}

func (m *MemStore) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[path]
	return ok
}

func (m *MemStore) MTime(path string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mtime, ok := m.mtimes[path]
	if !ok {
		return 0, fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
	}
	return mtime, nil
}

func (m *MemStore) SetMTime(path string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.content[path]; !ok {
		return fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
	}
	m.mtimes[path] = mtime
	return nil
}

func (m *MemStore) Size(path string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[path]
	if !ok {
		return 0, fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
	}
	return int64(len(data)), nil
}

func (m *MemStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for path := range m.content {
		if !strings.Contains(path, "/") {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemStore) ListRecursive() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.content))
	for path := range m.content {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}
