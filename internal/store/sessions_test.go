package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionWiden(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{SessionTimeout: 30 * time.Minute})
	fid := testFileID(t, s)
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	insertHands(t, s, fid, testHand("6001", start))
	if got := countRows(t, s, "Sessions"); got != 1 {
		t.Fatalf("sessions after first batch = %d", got)
	}

	// A later batch within the timeout widens the persisted session instead
	// of opening a new one.
	insertHands(t, s, fid, testHand("6002", start.Add(20*time.Minute)))
	if got := countRows(t, s, "Sessions"); got != 1 {
		t.Fatalf("sessions after widening batch = %d", got)
	}
	var end string
	if err := s.db.QueryRow(`SELECT sessionEnd FROM Sessions`).Scan(&end); err != nil {
		t.Fatalf("session end: %v", err)
	}
	if want := fmtTime(start.Add(20 * time.Minute)); end != want {
		t.Errorf("session end = %s, want %s", end, want)
	}

	// Past the timeout a new session opens.
	insertHands(t, s, fid, testHand("6003", start.Add(3*time.Hour)))
	if got := countRows(t, s, "Sessions"); got != 2 {
		t.Fatalf("sessions after distant batch = %d", got)
	}
}

func TestSessionBridgeMerge(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{SessionTimeout: 30 * time.Minute})
	fid := testFileID(t, s)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Two separate sessions 50 minutes apart.
	insertHands(t, s, fid, testHand("6101", start))
	insertHands(t, s, fid, testHand("6102", start.Add(50*time.Minute)))
	if got := countRows(t, s, "Sessions"); got != 2 {
		t.Fatalf("sessions before bridge = %d", got)
	}

	// A hand in the gap overlaps both and merges them into one row.
	insertHands(t, s, fid, testHand("6103", start.Add(25*time.Minute)))
	if got := countRows(t, s, "Sessions"); got != 1 {
		t.Fatalf("sessions after bridge = %d", got)
	}

	var st, en string
	if err := s.db.QueryRow(`SELECT sessionStart, sessionEnd FROM Sessions`).Scan(&st, &en); err != nil {
		t.Fatalf("merged session: %v", err)
	}
	if st != fmtTime(start) || en != fmtTime(start.Add(50*time.Minute)) {
		t.Errorf("merged bounds = %s..%s", st, en)
	}

	// Every hand points at the surviving session.
	var distinct int64
	if err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT sessionId) FROM Hands`).Scan(&distinct); err != nil {
		t.Fatalf("distinct: %v", err)
	}
	if distinct != 1 {
		t.Errorf("distinct session ids = %d, want 1", distinct)
	}

	// Both players had cache rows in each merged session; after the merge they
	// collapse to one aggregated row per player carrying all three hands.
	if got := countRows(t, s, "SessionsCache"); got != 2 {
		t.Errorf("sessions cache rows = %d, want 2", got)
	}
	var n int64
	if err := s.db.QueryRow(`
		SELECT sc.n FROM SessionsCache sc
		JOIN Players p ON p.id = sc.playerId
		WHERE p.name = 'bob'`).Scan(&n); err != nil {
		t.Fatalf("bob cache row: %v", err)
	}
	if n != 3 {
		t.Errorf("bob merged n = %d, want 3", n)
	}
}

func TestSessionCandidateMergeInMemory(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{SessionTimeout: 30 * time.Minute})
	fid := testFileID(t, s)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// All three in one batch: two candidates form, then the bridging hand
	// collapses them before anything is flushed, so one session row lands.
	insertHands(t, s, fid,
		testHand("6201", start),
		testHand("6202", start.Add(50*time.Minute)),
		testHand("6203", start.Add(25*time.Minute)))
	if got := countRows(t, s, "Sessions"); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}
}

func TestWeekMonthIDs(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	// 2024-05-01 is a Wednesday; its week starts Monday 2024-04-29.
	wid, mid, err := s.weekMonthIDs(ctx, time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("week/month ids: %v", err)
	}
	var weekStart, monthStart string
	if err := s.db.QueryRow(`SELECT weekStart FROM Weeks WHERE id = ?`, wid).Scan(&weekStart); err != nil {
		t.Fatalf("week row: %v", err)
	}
	if err := s.db.QueryRow(`SELECT monthStart FROM Months WHERE id = ?`, mid).Scan(&monthStart); err != nil {
		t.Fatalf("month row: %v", err)
	}
	if weekStart != "2024-04-29" {
		t.Errorf("week start = %s, want 2024-04-29", weekStart)
	}
	if monthStart != "2024-05-01" {
		t.Errorf("month start = %s, want 2024-05-01", monthStart)
	}

	// Repeat lookups reuse the same bucket rows.
	wid2, mid2, err := s.weekMonthIDs(ctx, time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if wid2 != wid || mid2 != mid {
		t.Errorf("bucket ids changed: week %d->%d month %d->%d", wid, wid2, mid, mid2)
	}
}

func TestWeekMonthIDsDayStartOffset(t *testing.T) {
	t.Parallel()

	// With a 3 hour offset, 01:00 UTC on June 1st still belongs to May.
	s := newTestStore(t, Options{DayStartOffset: -3 * time.Hour})
	ctx := context.Background()

	_, mid, err := s.weekMonthIDs(ctx, time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("week/month ids: %v", err)
	}
	var monthStart string
	if err := s.db.QueryRow(`SELECT monthStart FROM Months WHERE id = ?`, mid).Scan(&monthStart); err != nil {
		t.Fatalf("month row: %v", err)
	}
	if monthStart != "2024-05-01" {
		t.Errorf("month start = %s, want 2024-05-01", monthStart)
	}
}
