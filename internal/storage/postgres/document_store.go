package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// DocumentStore persists documents in Postgres, keyed by URL.
type DocumentStore struct {
	pool  pool
	idGen harvest.IDGenerator
}

// NewDocumentStore connects a pool and returns a DocumentStore.
func NewDocumentStore(ctx context.Context, cfg Config, idGen harvest.IDGenerator) (*DocumentStore, error) {
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{pool: p, idGen: idGen}, nil
}

// NewDocumentStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewDocumentStoreWithPool(p pool, idGen harvest.IDGenerator) (*DocumentStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &DocumentStore{pool: p, idGen: idGen}, nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertDocumentSQL = `
INSERT INTO documents (
	id,
	title,
	url,
	content,
	summary,
	source,
	category,
	tags,
	extracted_commands,
	extracted_modules,
	crawled_depth,
	ai_insights,
	code_example,
	saved_script_ids,
	crawled_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	summary = EXCLUDED.summary,
	source = EXCLUDED.source,
	category = EXCLUDED.category,
	tags = EXCLUDED.tags,
	extracted_commands = EXCLUDED.extracted_commands,
	extracted_modules = EXCLUDED.extracted_modules,
	crawled_depth = EXCLUDED.crawled_depth,
	ai_insights = EXCLUDED.ai_insights,
	code_example = EXCLUDED.code_example,
	saved_script_ids = EXCLUDED.saved_script_ids,
	crawled_at = EXCLUDED.crawled_at
RETURNING id, (xmax = 0) AS created`

// Upsert inserts or replaces the document for its URL and reports whether a
// new row was created.
func (s *DocumentStore) Upsert(ctx context.Context, doc harvest.Document) (string, bool, error) {
	if doc.URL == "" {
		return "", false, fmt.Errorf("document url is required")
	}
	id, err := s.idGen.NewID()
	if err != nil {
		return "", false, fmt.Errorf("generate document id: %w", err)
	}
	tags, err := json.Marshal(orEmpty(doc.Tags))
	if err != nil {
		return "", false, fmt.Errorf("marshal tags: %w", err)
	}
	commands, err := json.Marshal(orEmpty(doc.Commands))
	if err != nil {
		return "", false, fmt.Errorf("marshal commands: %w", err)
	}
	modules, err := json.Marshal(orEmpty(doc.Modules))
	if err != nil {
		return "", false, fmt.Errorf("marshal modules: %w", err)
	}
	insights, err := json.Marshal(orEmpty(doc.Insights))
	if err != nil {
		return "", false, fmt.Errorf("marshal insights: %w", err)
	}
	scriptIDs, err := json.Marshal(orEmpty(doc.ScriptIDs))
	if err != nil {
		return "", false, fmt.Errorf("marshal script ids: %w", err)
	}

	var created bool
	err = s.pool.QueryRow(ctx, upsertDocumentSQL,
		id,
		doc.Title,
		doc.URL,
		doc.Content,
		doc.Summary,
		doc.Source,
		doc.Category,
		tags,
		commands,
		modules,
		doc.CrawlDepth,
		insights,
		doc.CodeExample,
		scriptIDs,
		doc.CrawledAt,
	).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("upsert document: %w", err)
	}
	return id, created, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
