package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// ScriptStore persists scripts in Postgres with a unique index on the
// content fingerprint.
type ScriptStore struct {
	pool  pool
	idGen harvest.IDGenerator
}

// NewScriptStore connects a pool and returns a ScriptStore.
func NewScriptStore(ctx context.Context, cfg Config, idGen harvest.IDGenerator) (*ScriptStore, error) {
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ScriptStore{pool: p, idGen: idGen}, nil
}

// NewScriptStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewScriptStoreWithPool(p pool, idGen harvest.IDGenerator) (*ScriptStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ScriptStore{pool: p, idGen: idGen}, nil
}

// Close releases the underlying pool resources.
func (s *ScriptStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const findScriptByHashSQL = `SELECT id FROM scripts WHERE hash = $1`

// FindByHash returns the id of the script with the given fingerprint.
func (s *ScriptStore) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, findScriptByHashSQL, hash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find script by hash: %w", err)
	}
	return id, true, nil
}

const insertScriptSQL = `
INSERT INTO scripts (id, name, description, code, hash, source_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (hash) DO NOTHING
RETURNING id`

// Create inserts the script. The ON CONFLICT clause makes the insert
// create-if-absent by hash: when another writer wins the race, the existing
// id is returned instead.
func (s *ScriptStore) Create(ctx context.Context, script harvest.Script) (string, error) {
	if script.Hash == "" {
		return "", fmt.Errorf("script hash is required")
	}
	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate script id: %w", err)
	}
	err = s.pool.QueryRow(ctx, insertScriptSQL,
		id,
		script.Name,
		script.Description,
		script.Code,
		script.Hash,
		script.SourceURL,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: a concurrent writer inserted the same fingerprint first.
		existing, found, lookupErr := s.FindByHash(ctx, script.Hash)
		if lookupErr != nil {
			return "", lookupErr
		}
		if !found {
			return "", fmt.Errorf("script insert conflicted but fingerprint %s not found", script.Hash)
		}
		return existing, nil
	}
	if err != nil {
		return "", fmt.Errorf("insert script: %w", err)
	}
	return id, nil
}
