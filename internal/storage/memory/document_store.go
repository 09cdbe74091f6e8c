package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// DocumentStore keeps documents in memory keyed by URL, mirroring the upsert
// semantics of the production document store.
type DocumentStore struct {
	mu    sync.RWMutex
	byURL map[string]harvest.Document
	seq   int
}

// NewDocumentStore constructs a DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{byURL: make(map[string]harvest.Document)}
}

// Upsert inserts or replaces the document for its URL. created reports
// whether the URL was previously unknown.
func (s *DocumentStore) Upsert(_ context.Context, doc harvest.Document) (string, bool, error) {
	if doc.URL == "" {
		return "", false, errors.New("document url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byURL[doc.URL]; ok {
		doc.ID = existing.ID
		s.byURL[doc.URL] = doc
		return doc.ID, false, nil
	}
	s.seq++
	doc.ID = fmt.Sprintf("doc-%d", s.seq)
	s.byURL[doc.URL] = doc
	return doc.ID, true, nil
}

// Get fetches a document by URL.
func (s *DocumentStore) Get(_ context.Context, url string) (harvest.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byURL[url]
	return doc, ok
}

// All returns a copy of every stored document.
func (s *DocumentStore) All() []harvest.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.Document, 0, len(s.byURL))
	for _, doc := range s.byURL {
		out = append(out, doc)
	}
	return out
}
