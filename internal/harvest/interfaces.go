package harvest

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned for unknown or already-evicted job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrCanceled is returned by the walker when it unwinds after observing a
// cancellation request.
var ErrCanceled = errors.New("job canceled")

// Fetcher fetches a URL and returns the raw page body. A timeout, network
// error, or non-2xx response is reported as an error; the walker treats all
// of these as a per-page skip rather than a job failure.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ScriptStore persists extracted scripts. FindByHash plus Create must
// together behave like create-if-absent by hash so that concurrent jobs
// crawling overlapping content stay dedup-safe.
type ScriptStore interface {
	FindByHash(ctx context.Context, hash string) (string, bool, error)
	Create(ctx context.Context, script Script) (string, error)
}

// DocumentStore persists crawled documents keyed by URL.
type DocumentStore interface {
	Upsert(ctx context.Context, doc Document) (id string, created bool, err error)
}

// SnapshotStore archives raw page bodies and returns a URI.
type SnapshotStore interface {
	Save(ctx context.Context, path string, contentType string, body []byte) (string, error)
}

// Publisher pushes job completion events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content fingerprints for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and script IDs.
type IDGenerator interface {
	NewID() (string, error)
}
