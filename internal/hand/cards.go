package hand

import "strings"

var rankOrder = "23456789TJQKA"
var suitOrder = "hdcs"

// EncodeCard maps a two-character card ("Ah", "Td") to 1..52. Unknown input
// encodes to 0.
func EncodeCard(card string) int {
	if len(card) != 2 {
		return 0
	}
	r := strings.IndexByte(rankOrder, card[0])
	s := strings.IndexByte(suitOrder, card[1])
	if r < 0 || s < 0 {
		return 0
	}
	return s*13 + r + 1
}

// DecodeCard is the inverse of EncodeCard; 0 decodes to "".
func DecodeCard(v int) string {
	if v < 1 || v > 52 {
		return ""
	}
	v--
	return string(rankOrder[v%13]) + string(suitOrder[v/13])
}

// StartCardsIndex maps a two-card holdem starting hand to the conventional
// 169-cell grid: pairs on the diagonal, suited combos above it, offsuit
// below. Hands that are not exactly two known cards map to 170 ("unknown"),
// keeping them distinct from real combos in CardsCache keys.
func StartCardsIndex(cards []string) int {
	const unknown = 170
	if len(cards) != 2 {
		return unknown
	}
	r1 := strings.IndexByte(rankOrder, cards[0][0])
	r2 := strings.IndexByte(rankOrder, cards[1][0])
	if r1 < 0 || r2 < 0 || len(cards[0]) != 2 || len(cards[1]) != 2 {
		return unknown
	}
	suited := cards[0][1] == cards[1][1]
	hi, lo := r1, r2
	if lo > hi {
		hi, lo = lo, hi
	}
	if suited {
		return hi*13 + lo
	}
	return lo*13 + hi
}
