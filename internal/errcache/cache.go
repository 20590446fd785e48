// Package errcache remembers the last reported error text in object storage so the same
// failure is not reported twice across invocations.
package errcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/storage"
)

// DefaultKey is the object that holds the last error text.
const DefaultKey = "message"

const contentType = "text/plain; charset=utf-8"

// Cache reads and writes the last error text.
type Cache struct {
	store  storage.BlobStore
	key    string
	logger *zap.Logger
}

// New returns a Cache over store. An empty key selects DefaultKey.
func New(store storage.BlobStore, key string, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, key: key, logger: logger.Named("errcache")}, nil
}

// Load returns the cached error text. A missing or unreadable object yields "".
func (c *Cache) Load(ctx context.Context) string {
	data, err := c.store.GetObject(ctx, c.key)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		c.logger.Info("no cached error", zap.String("key", c.key))
		return ""
	case err != nil:
		c.logger.Warn("cached error unreadable", zap.String("key", c.key), zap.Error(err))
		return ""
	}
	return string(data)
}

// ShouldSend reports whether msg differs from the cached text.
func ShouldSend(cached, msg string) bool {
	return cached != msg
}

// Remember overwrites the cached text with msg unless it is already stored.
// It returns whether a write happened.
func (c *Cache) Remember(ctx context.Context, cached, msg string) (bool, error) {
	if !ShouldSend(cached, msg) {
		return false, nil
	}
	if _, err := c.store.PutObject(ctx, c.key, contentType, strings.NewReader(msg)); err != nil {
		return false, fmt.Errorf("write cached error: %w", err)
	}
	c.logger.Debug("cached error replaced", zap.String("key", c.key))
	return true, nil
}
