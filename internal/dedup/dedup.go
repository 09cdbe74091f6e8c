// Package dedup persists extracted scripts exactly once, keyed by content
// fingerprint.
package dedup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// Deduper wraps the script store with fingerprint-based deduplication.
type Deduper struct {
	store  harvest.ScriptStore
	hasher harvest.Hasher
	logger *zap.Logger
}

// New builds a Deduper.
func New(store harvest.ScriptStore, hasher harvest.Hasher, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{store: store, hasher: hasher, logger: logger}
}

// SaveIfNew fingerprints the script code and persists the script only if no
// record with the same fingerprint exists. It returns the id either way;
// created reports whether a new record was written.
func (d *Deduper) SaveIfNew(ctx context.Context, script harvest.Script) (id string, created bool, err error) {
	hash, err := d.hasher.Hash([]byte(script.Code))
	if err != nil {
		return "", false, fmt.Errorf("fingerprint script: %w", err)
	}
	script.Hash = hash

	existing, found, err := d.store.FindByHash(ctx, hash)
	if err != nil {
		return "", false, fmt.Errorf("lookup script by hash: %w", err)
	}
	if found {
		d.logger.Debug("script dedup hit",
			zap.String("hash", hash),
			zap.String("script_id", existing),
		)
		return existing, false, nil
	}

	newID, err := d.store.Create(ctx, script)
	if err != nil {
		return "", false, fmt.Errorf("create script: %w", err)
	}
	return newID, true, nil
}
