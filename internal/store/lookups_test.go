package store

import (
	"context"
	"testing"
	"time"

	"handvault/internal/hand"
)

func TestShortPlayerKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"bob", "BO"},
		{"Alice", "AL"},
		{"x", "X"},
		{"9lives", "123"},
		{"a1b", "123"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortPlayerKey(tt.name); got != tt.want {
			t.Errorf("shortPlayerKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolvePlayers(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	ids, err := s.ResolvePlayers(ctx, 1, []string{"alice", "bob"}, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(ids) != 2 || ids["alice"] == 0 || ids["bob"] == 0 {
		t.Fatalf("ids: %v", ids)
	}

	again, err := s.ResolvePlayers(ctx, 1, []string{"alice", "bob"}, "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again["alice"] != ids["alice"] || again["bob"] != ids["bob"] {
		t.Errorf("ids changed: %v vs %v", ids, again)
	}

	// The hero flag was set and is never dropped.
	var hero int
	if err := s.db.QueryRow(
		`SELECT hero FROM Players WHERE id = ?`, ids["alice"]).Scan(&hero); err != nil {
		t.Fatalf("hero flag: %v", err)
	}
	if hero != 1 {
		t.Error("hero flag not set")
	}

	// The same name on a different site is a different player.
	other, err := s.GetSiteID(ctx, "OtherSite")
	if err != nil {
		t.Fatalf("other site: %v", err)
	}
	ids2, err := s.ResolvePlayers(ctx, other, []string{"alice"}, "")
	if err != nil {
		t.Fatalf("other site resolve: %v", err)
	}
	if ids2["alice"] == ids["alice"] {
		t.Error("player ids collide across sites")
	}
}

func TestResolveGametype(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	g := hand.Gametype{
		SiteID: 1, Type: "ring", Category: "holdem", LimitType: "nl",
		Currency: "USD", SmallBlind: 50, BigBlind: 100, MaxSeats: 6,
	}
	id, err := s.ResolveGametype(ctx, g)
	if err != nil || id == 0 {
		t.Fatalf("resolve: id=%d err=%v", id, err)
	}
	again, err := s.ResolveGametype(ctx, g)
	if err != nil || again != id {
		t.Fatalf("identical descriptor: id=%d err=%v", again, err)
	}

	g2 := g
	g2.BigBlind = 200
	other, err := s.ResolveGametype(ctx, g2)
	if err != nil || other == id {
		t.Fatalf("different stakes reused id %d: %v", other, err)
	}

	// The derived fixed-limit bet sizes follow the blinds.
	var smallBet, bigBet int64
	if err := s.db.QueryRow(
		`SELECT smallBet, bigBet FROM Gametypes WHERE id = ?`, id).Scan(&smallBet, &bigBet); err != nil {
		t.Fatalf("bets: %v", err)
	}
	if smallBet != 100 || bigBet != 200 {
		t.Errorf("bets = %d/%d, want 100/200", smallBet, bigBet)
	}
}

func TestStoreAndUpdateFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	id, err := s.StoreFile(ctx, "/tmp/hands.txt", "Transcript", "hh")
	if err != nil || id == 0 {
		t.Fatalf("store file: id=%d err=%v", id, err)
	}
	again, err := s.StoreFile(ctx, "/tmp/hands.txt", "Transcript", "hh")
	if err != nil || again != id {
		t.Fatalf("repeat registration: id=%d err=%v", again, err)
	}

	r := ImportResult{Hands: 10, Stored: 7, Duplicates: 2, Partial: 1, Errors: 0, Elapsed: time.Second}
	if err := s.UpdateFile(ctx, id, r, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Counts accumulate across passes.
	if err := s.UpdateFile(ctx, id, r, true); err != nil {
		t.Fatalf("second update: %v", err)
	}
	var hands, stored, finished int
	if err := s.db.QueryRow(
		`SELECT hands, storedHands, finished FROM Files WHERE id = ?`, id).Scan(&hands, &stored, &finished); err != nil {
		t.Fatalf("file row: %v", err)
	}
	if hands != 20 || stored != 14 || finished != 1 {
		t.Errorf("file counters: hands=%d stored=%d finished=%d", hands, stored, finished)
	}
}
