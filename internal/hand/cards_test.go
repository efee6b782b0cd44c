package hand

import "testing"

func TestEncodeDecodeCard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		card string
		want int
	}{
		{"2h", 1},
		{"Ah", 13},
		{"2d", 14},
		{"As", 52},
		{"Td", 22},
		{"", 0},
		{"Xx", 0},
		{"A", 0},
	}
	for _, tt := range tests {
		if got := EncodeCard(tt.card); got != tt.want {
			t.Errorf("EncodeCard(%q) = %d, want %d", tt.card, got, tt.want)
		}
	}

	for v := 1; v <= 52; v++ {
		card := DecodeCard(v)
		if card == "" {
			t.Fatalf("DecodeCard(%d) empty", v)
		}
		if back := EncodeCard(card); back != v {
			t.Errorf("roundtrip %d -> %q -> %d", v, card, back)
		}
	}
	if DecodeCard(0) != "" || DecodeCard(53) != "" {
		t.Error("out-of-range decode should be empty")
	}
}

func TestStartCardsIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cards []string
		want  int
	}{
		{"AKs", []string{"Ah", "Kh"}, 12*13 + 11},
		{"AKo", []string{"Ah", "Kd"}, 11*13 + 12},
		{"KAs reversed order", []string{"Kh", "Ah"}, 12*13 + 11},
		{"pair of eights", []string{"8h", "8d"}, 6*13 + 6},
		{"pocket aces", []string{"Ah", "Ad"}, 12*13 + 12},
		{"deuces", []string{"2c", "2s"}, 0},
		{"one card", []string{"Ah"}, 170},
		{"no cards", nil, 170},
		{"bad card", []string{"Ah", "zz"}, 170},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StartCardsIndex(tt.cards); got != tt.want {
				t.Errorf("StartCardsIndex(%v) = %d, want %d", tt.cards, got, tt.want)
			}
		})
	}
}
