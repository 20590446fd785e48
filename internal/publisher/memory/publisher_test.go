package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/homework-watcher/internal/publisher"
)

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), publisher.ChangeEvent{HomeworkName: "hw1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), publisher.ChangeEvent{HomeworkName: "hw2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	events := pub.Events()
	require.Len(t, events, 2)
	require.Equal(t, "hw1", events[0].HomeworkName)

	events[0].HomeworkName = "modified"
	require.Equal(t, "hw1", pub.Events()[0].HomeworkName, "Events() must return a copy")
}

func TestPublisherFail(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.Fail(errors.New("down"))
	_, err := pub.Publish(context.Background(), publisher.ChangeEvent{})
	require.Error(t, err)
	require.Empty(t, pub.Events())
}
