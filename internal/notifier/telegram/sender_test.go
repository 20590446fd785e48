package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
	fail   bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if raw, err := io.ReadAll(r.Body); err == nil {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, body)
	fail := f.fail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		return
	}
	fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":123,"type":"private"},"text":"ok"}}`)
}

func (f *fakeBotAPI) calls() ([]string, []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]map[string]any(nil), f.bodies...)
}

func newTestSender(t *testing.T, api *fakeBotAPI) *Sender {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s, err := New(Config{Token: "tok", ChatID: "123", APIURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return s
}

func TestSend_PostsToChat(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	s := newTestSender(t, api)

	require.NoError(t, s.Send(context.Background(), "Работа взята на проверку ревьюером."))

	paths, bodies := api.calls()
	require.Equal(t, []string{"/bottok/sendMessage"}, paths)
	require.Equal(t, "123", fmt.Sprint(bodies[0]["chat_id"]))
	require.Equal(t, "Работа взята на проверку ревьюером.", bodies[0]["text"])
}

func TestSend_APIError(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{fail: true}
	s := newTestSender(t, api)

	require.Error(t, s.Send(context.Background(), "hello"))
}

func TestSend_CanceledContext(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	s := newTestSender(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, "hello"), context.Canceled)
	paths, _ := api.calls()
	require.Empty(t, paths)
}

func TestSend_ChannelUsername(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	s, err := New(Config{Token: "tok", ChatID: " @homework_news ", APIURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), "hello"))

	_, bodies := api.calls()
	require.Len(t, bodies, 1)
	require.Equal(t, "@homework_news", bodies[0]["chat_id"])
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ChatID: "1"}, nil)
	require.Error(t, err)
	_, err = New(Config{Token: "tok"}, nil)
	require.Error(t, err)
	_, err = New(Config{Token: "tok", ChatID: "my channel"}, nil)
	require.Error(t, err)
}

func TestValidChatID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"123456", "-1001234567890", "@my_channel"} {
		require.True(t, ValidChatID(id), id)
	}
	for _, id := range []string{"", "@", "channel", "@my channel", "12a"} {
		require.False(t, ValidChatID(id), id)
	}
}
