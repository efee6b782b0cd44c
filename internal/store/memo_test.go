package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoComputesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	m := newMemo(func(ctx context.Context, k string) (int64, error) {
		calls++
		return int64(len(k)), nil
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := m.Get(ctx, "alice")
		if err != nil || v != 5 {
			t.Fatalf("get: v=%d err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestMemoErrorNotCached(t *testing.T) {
	t.Parallel()

	fail := true
	m := newMemo(func(ctx context.Context, k string) (int64, error) {
		if fail {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	ctx := context.Background()

	if _, err := m.Get(ctx, "k"); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	v, err := m.Get(ctx, "k")
	if err != nil || v != 7 {
		t.Fatalf("retry: v=%d err=%v", v, err)
	}
}

func TestMemoPutAndReset(t *testing.T) {
	t.Parallel()

	calls := 0
	m := newMemo(func(ctx context.Context, k string) (int64, error) {
		calls++
		return 1, nil
	})
	m.Put("primed", 42)
	v, err := m.Get(context.Background(), "primed")
	if err != nil || v != 42 || calls != 0 {
		t.Fatalf("primed: v=%d calls=%d err=%v", v, calls, err)
	}
	m.Reset()
	if m.Len() != 0 {
		t.Errorf("len after reset = %d", m.Len())
	}
}
