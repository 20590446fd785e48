package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "hello", limit: 10, want: "hello"},
		{in: "hello", limit: 5, want: "hello"},
		{in: "hello", limit: 3, want: "hel"},
		{in: "привет", limit: 3, want: "при"},
		{in: "abc", limit: 0, want: ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Truncate(tc.in, tc.limit), "%q/%d", tc.in, tc.limit)
	}
}

func TestDispatch_TruncatesLongMessages(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	d := New(sender, zap.NewNop(), WithRate(0, 0))

	long := strings.Repeat("ж", 300)
	require.True(t, d.Dispatch(context.Background(), long))
	require.Len(t, sender.texts, 1)
	require.Equal(t, strings.Repeat("ж", MaxRunes), sender.texts[0])
}

func TestDispatch_FailureIsLoggedAndSwallowed(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	sender := &recordingSender{err: errors.New("network down")}
	d := New(sender, zap.New(core), WithRate(0, 0))

	require.False(t, d.Dispatch(context.Background(), "hello"))
	require.Len(t, sender.texts, 1)
	entries := logs.FilterMessage("notification not delivered").All()
	require.Len(t, entries, 1)
	require.Equal(t, "send", entries[0].ContextMap()["kind"])
}

func TestDispatch_CanceledWhileThrottled(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	d := New(sender, nil, WithRate(0.001, 1))

	require.True(t, d.Dispatch(context.Background(), "first"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, d.Dispatch(ctx, "second"))
	require.Equal(t, []string{"first"}, sender.texts)
}
