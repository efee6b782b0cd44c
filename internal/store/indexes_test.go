package store

import (
	"context"
	"testing"
	"time"
)

func TestShouldDropIndexes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	// Empty store: any incoming volume wins the heuristic.
	should, err := s.ShouldDropIndexes(ctx, 0)
	if err != nil || !should {
		t.Fatalf("empty store: should=%v err=%v", should, err)
	}
}

func TestDropAndRestoreBulkIndexes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	count := func() int64 {
		var n int64
		if err := s.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type = 'index' AND name LIKE 'idx_%'`).Scan(&n); err != nil {
			t.Fatalf("count indexes: %v", err)
		}
		return n
	}

	before := count()
	if err := s.DropBulkIndexes(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := count(); got != before-int64(len(auxIndexes)) {
		t.Errorf("indexes after drop = %d, want %d", got, before-int64(len(auxIndexes)))
	}
	if err := s.RestoreBulkIndexes(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := count(); got != before {
		t.Errorf("indexes after restore = %d, want %d", got, before)
	}

	// The store still inserts with the indexes recreated.
	fid := testFileID(t, s)
	insertHands(t, s, fid, testHand("3001", time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)))
	if n, err := s.GetHandCount(ctx); err != nil || n != 1 {
		t.Fatalf("hand count = %d err=%v", n, err)
	}
}
