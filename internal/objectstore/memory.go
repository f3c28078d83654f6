package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	objects     map[string]memoryObject
	uploadError func(path string) error
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// FailUploads makes Upload return fn(path) when it is non-nil
func (m *MemoryStore) FailUploads(fn func(path string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadError = fn
}

// Upload stores the object
func (m *MemoryStore) Upload(ctx context.Context, p, contentType string, r io.Reader) error {
	key, err := CleanPath(p)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uploadError != nil {
		if err := m.uploadError(key); err != nil {
			return err
		}
	}
	if _, exists := m.objects[key]; exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, key)
	}

	m.objects[key] = memoryObject{contentType: contentType, data: data}
	return nil
}

// ListFolders returns the distinct folder names directly below prefix
func (m *MemoryStore) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	dir, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}
	dir += "/"

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range m.objects {
		rest, ok := strings.CutPrefix(key, dir)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "/"); i > 0 {
			seen[rest[:i]] = true
		}
	}

	folders := make([]string, 0, len(seen))
	for name := range seen {
		folders = append(folders, name)
	}
	sort.Strings(folders)
	return folders, nil
}

// Delete removes objects
func (m *MemoryStore) Delete(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range paths {
		if key, err := CleanPath(p); err == nil {
			delete(m.objects, key)
		}
	}
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Get returns a stored object
func (m *MemoryStore) Get(p string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[p]
	return obj.data, obj.contentType, ok
}

// Keys returns every stored path in order
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
