package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

func TestStatusStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStatusStore(homework.Record{ID: 1, HomeworkName: "hw1", Status: homework.StatusReviewing})

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap["hw1"] != homework.StatusReviewing {
		t.Fatalf("unexpected snapshot %v", snap)
	}

	if err := store.Upsert(ctx, homework.Record{ID: 1, HomeworkName: "hw1", Status: homework.StatusApproved}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, homework.Record{ID: 2, HomeworkName: "hw2", Status: homework.StatusRejected}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	recs := store.Records()
	if len(recs) != 2 || recs[0].Status != homework.StatusApproved || recs[1].HomeworkName != "hw2" {
		t.Fatalf("unexpected records %+v", recs)
	}
	recs[0].Status = "modified"
	if store.Records()[0].Status != homework.StatusApproved {
		t.Fatal("expected Records to return a copy")
	}
	if store.Upserts() != 2 {
		t.Fatalf("expected 2 upserts, got %d", store.Upserts())
	}
}

func TestStatusStoreFailUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStatusStore()
	boom := errors.New("boom")
	store.FailUpsert("hw2", boom)

	if err := store.Upsert(ctx, homework.Record{ID: 1, HomeworkName: "hw1"}); err != nil {
		t.Fatalf("unexpected error for other homework: %v", err)
	}
	err := store.Upsert(ctx, homework.Record{ID: 2, HomeworkName: "hw2"})
	var persistErr *homework.PersistenceError
	if !errors.As(err, &persistErr) || !errors.Is(err, boom) {
		t.Fatalf("expected PersistenceError wrapping boom, got %v", err)
	}
	if store.Upserts() != 1 {
		t.Fatalf("expected 1 upsert, got %d", store.Upserts())
	}
}

func TestStatusStoreKeysByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStatusStore()

	// Items without an API id must not share a row.
	for _, name := range []string{"hw1", "hw2"} {
		if err := store.Upsert(ctx, homework.Record{HomeworkName: name, Status: homework.StatusApproved}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", name, err)
		}
	}
	// A known name reported under a new id replaces its row.
	if err := store.Upsert(ctx, homework.Record{ID: 9, HomeworkName: "hw1", Status: homework.StatusRejected}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	recs := store.Records()
	if len(recs) != 2 || recs[0].ID != 9 || recs[0].Status != homework.StatusRejected || recs[1].HomeworkName != "hw2" {
		t.Fatalf("unexpected records %+v", recs)
	}
}
