package memory

import (
	"context"
	"fmt"
	"sync"
)

// SnapshotStore keeps raw page bodies in memory for tests and local runs.
type SnapshotStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{objects: make(map[string][]byte)}
}

// Save stores body under path and returns a mem:// URI.
func (s *SnapshotStore) Save(_ context.Context, path string, _ string, body []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("snapshot path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), body...)
	return "mem://" + path, nil
}

// Get returns the stored body for path.
func (s *SnapshotStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[path]
	return body, ok
}

// Len returns the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
