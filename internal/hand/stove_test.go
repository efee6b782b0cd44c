package hand

import "testing"

func TestEvaluateCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cards []string
		want  int
	}{
		{"high card", []string{"Ah", "Kd", "9c", "7s", "4h", "2d", "Js"}, RankHighCard},
		{"pair", []string{"Ah", "Ad", "9c", "7s", "4h", "2d", "Js"}, RankPair},
		{"two pair", []string{"Ah", "Ad", "9c", "9s", "4h", "2d", "Js"}, RankTwoPair},
		{"trips", []string{"Ah", "Ad", "Ac", "9s", "4h", "2d", "Js"}, RankTrips},
		{"straight", []string{"5h", "6d", "7c", "8s", "9h", "2d", "Js"}, RankStraight},
		{"wheel", []string{"Ah", "2d", "3c", "4s", "5h", "9d", "Js"}, RankStraight},
		{"flush", []string{"Ah", "9h", "7h", "4h", "2h", "Kd", "Js"}, RankFlush},
		{"full house", []string{"Ah", "Ad", "Ac", "9s", "9h", "2d", "Js"}, RankFullHouse},
		{"quads", []string{"Ah", "Ad", "Ac", "As", "9h", "2d", "Js"}, RankQuads},
		{"straight flush", []string{"5h", "6h", "7h", "8h", "9h", "2d", "Js"}, RankStraightFlush},
		{"bad card", []string{"Ah", "zz", "7h", "4h", "2h", "Kd", "Js"}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := evaluateCategory(tt.cards); got != tt.want {
				t.Errorf("evaluateCategory(%v) = %d, want %d", tt.cards, got, tt.want)
			}
		})
	}
}

func TestStoveRows(t *testing.T) {
	t.Parallel()

	h := threeWayHand()
	h.DBIDHands = 7
	h.PlayerByName("bob").ID = 3

	rows := h.stoveRows()
	if len(rows) != 1 {
		t.Fatalf("stove rows = %d, want 1 (only bob shows cards)", len(rows))
	}
	r := rows[0]
	if r.HandID != 7 || r.PlayerID != 3 || r.BoardNo != 1 {
		t.Errorf("row ids: %+v", r)
	}
	// Bob holds AhKd on 2h 7d 9c 4s Kc: a pair of kings.
	if r.Rank != RankPair || r.RankName != "pair" {
		t.Errorf("rank = %d %q, want pair", r.Rank, r.RankName)
	}
}

func TestStoveRowsIncompleteBoard(t *testing.T) {
	t.Parallel()

	h := threeWayHand()
	h.Boards = []Board{{BoardNo: 1, Cards: []string{"2h", "7d", "9c"}}}
	if rows := h.stoveRows(); len(rows) != 0 {
		t.Fatalf("incomplete board produced %d rows", len(rows))
	}
}
