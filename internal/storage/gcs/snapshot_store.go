// Package gcs archives raw page snapshots in Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// SnapshotStore writes page bodies to a configured GCS bucket.
type SnapshotStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed snapshot store.
func New(client *storage.Client, cfg Config) (*SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &SnapshotStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Save uploads body to the configured bucket and returns a gs:// URI.
func (s *SnapshotStore) Save(ctx context.Context, path string, contentType string, body []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("snapshot path is required")
	}
	if s.prefix != "" {
		path = s.prefix + "/" + strings.TrimLeft(path, "/")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("write snapshot: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close snapshot writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
