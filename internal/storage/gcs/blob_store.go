// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appstorage "github.com/JakeFAU/homework-watcher/internal/storage"
)

// maxObjectSize caps how much of an object GetObject will read. The cached error
// text is a single notification, so anything larger is a misconfigured key.
const maxObjectSize = 1 << 20

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Endpoint points the client at an emulator such as fake-gcs-server. Requests
	// to a custom endpoint are sent without credentials.
	Endpoint string
}

// BlobStore reads and writes objects in a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	owned  bool
}

// Open dials GCS with application default credentials and returns a store that
// owns the client. Call Close to release it.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	s, err := New(client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Close releases the client when the store opened it.
func (s *BlobStore) Close() error {
	if s == nil || !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}

// GetObject downloads the object stored under key.
func (s *BlobStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("get %s: %w", s.uri(key), appstorage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", s.uri(key), err)
	}
	defer reader.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(io.LimitReader(reader, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.uri(key), err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("read %s: object exceeds %d bytes", s.uri(key), maxObjectSize)
	}
	return data, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("write %s: %w (close writer: %v)", s.uri(key), err, closeErr)
		}
		return "", fmt.Errorf("write %s: %w", s.uri(key), err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("commit %s: %w", s.uri(key), err)
	}
	return s.uri(key), nil
}

func (s *BlobStore) uri(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
