// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// ScriptStore keeps scripts in memory, keyed by content fingerprint. Create
// behaves as create-if-absent by hash, which keeps concurrent jobs crawling
// overlapping content dedup-safe.
type ScriptStore struct {
	mu     sync.RWMutex
	byHash map[string]harvest.Script
	byID   map[string]harvest.Script
	seq    int
}

// NewScriptStore constructs a ScriptStore.
func NewScriptStore() *ScriptStore {
	return &ScriptStore{
		byHash: make(map[string]harvest.Script),
		byID:   make(map[string]harvest.Script),
	}
}

// FindByHash returns the id of the script with the given fingerprint.
func (s *ScriptStore) FindByHash(_ context.Context, hash string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	script, ok := s.byHash[hash]
	if !ok {
		return "", false, nil
	}
	return script.ID, true, nil
}

// Create stores the script and returns its id. If a script with the same
// fingerprint already exists, its id is returned without a new write.
func (s *ScriptStore) Create(_ context.Context, script harvest.Script) (string, error) {
	if script.Hash == "" {
		return "", errors.New("script hash is required")
	}
	if script.Code == "" {
		return "", errors.New("script code is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byHash[script.Hash]; ok {
		return existing.ID, nil
	}
	s.seq++
	script.ID = fmt.Sprintf("script-%d", s.seq)
	s.byHash[script.Hash] = script
	s.byID[script.ID] = script
	return script.ID, nil
}

// Get fetches a script by id.
func (s *ScriptStore) Get(_ context.Context, id string) (harvest.Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	script, ok := s.byID[id]
	return script, ok
}

// Len returns the number of stored scripts.
func (s *ScriptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
