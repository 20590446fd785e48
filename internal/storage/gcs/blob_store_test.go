package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	appstorage "github.com/JakeFAU/homework-watcher/internal/storage"
)

// newTestBlobStore creates a BlobStore pointed at a test server.
func newTestBlobStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bot"})
	require.NoError(t, err)
	return store
}

func TestBlobStore_PutObject(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bot/o")
		assert.Equal(t, "message", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "Сбой в работе программы")

		fmt.Fprintln(w, `{"bucket":"test-bot","name":"message"}`)
	})

	store := newTestBlobStore(t, handler)
	uri, err := store.PutObject(context.Background(), "message", "text/plain; charset=utf-8",
		strings.NewReader("Сбой в работе программы: boom"))
	require.NoError(t, err)
	require.Equal(t, "gs://test-bot/message", uri)
}

func TestBlobStore_PutObject_Error(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestBlobStore(t, handler)
	_, err := store.PutObject(context.Background(), "message", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestBlobStore_PutObject_RequiresKey(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestBlobStore_GetObject_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.NotFoundHandler())
	_, err := store.GetObject(context.Background(), "message")
	require.ErrorIs(t, err, appstorage.ErrObjectNotFound)
}

func TestBlobStore_GetObject(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/test-bot/message"), r.URL.Path)
		fmt.Fprint(w, "Сбой в работе программы: boom")
	})

	store := newTestBlobStore(t, handler)
	data, err := store.GetObject(context.Background(), "message")
	require.NoError(t, err)
	require.Equal(t, "Сбой в работе программы: boom", string(data))
}

func TestOpen_CustomEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	store, err := Open(context.Background(), Config{Bucket: "test-bot", Endpoint: server.URL})
	require.NoError(t, err)

	_, err = store.GetObject(context.Background(), "message")
	require.ErrorIs(t, err, appstorage.ErrObjectNotFound)
	require.NoError(t, store.Close())

	_, err = Open(context.Background(), Config{Endpoint: server.URL})
	require.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	require.NoError(t, store.Close(), "borrowed clients are left open")
}
