package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	appstorage "github.com/JakeFAU/homework-watcher/internal/storage"
)

// fakeS3 emulates the two object calls the store makes, using path-style URLs.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[r.URL.Path] = string(body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok
}

func newTestBlobStore(t *testing.T) (*BlobStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := New(Config{
		Bucket:          "test-bot",
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		HTTPClient:      srv.Client(),
	})
	require.NoError(t, err)
	return store, fake
}

func TestBlobStore_PutThenGet(t *testing.T) {
	t.Parallel()

	store, fake := newTestBlobStore(t)
	ctx := context.Background()

	uri, err := store.PutObject(ctx, "message", "text/plain; charset=utf-8", strings.NewReader("Сбой в работе программы: boom"))
	require.NoError(t, err)
	require.Equal(t, "s3://test-bot/message", uri)
	require.True(t, fake.has("/test-bot/message"))

	got, err := store.GetObject(ctx, "message")
	require.NoError(t, err)
	require.Equal(t, "Сбой в работе программы: boom", string(got))
}

func TestBlobStore_GetMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestBlobStore(t)
	_, err := store.GetObject(context.Background(), "message")
	require.ErrorIs(t, err, appstorage.ErrObjectNotFound)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{AccessKeyID: "a", SecretAccessKey: "b"})
	require.Error(t, err)
	_, err = New(Config{Bucket: "b"})
	require.Error(t, err)
	_, err = NewWithClient(nil, "b")
	require.Error(t, err)
}
