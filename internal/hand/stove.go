package hand

import "strings"

// Made-hand categories, weakest first.
const (
	RankHighCard = iota + 1
	RankPair
	RankTwoPair
	RankTrips
	RankStraight
	RankFlush
	RankFullHouse
	RankQuads
	RankStraightFlush
)

var rankNames = map[int]string{
	RankHighCard:      "high card",
	RankPair:          "pair",
	RankTwoPair:       "two pair",
	RankTrips:         "three of a kind",
	RankStraight:      "straight",
	RankFlush:         "flush",
	RankFullHouse:     "full house",
	RankQuads:         "four of a kind",
	RankStraightFlush: "straight flush",
}

// stoveRows evaluates each player with known hole cards against every
// complete board. Hands without a five-card board produce nothing.
func (h *Hand) stoveRows() []StoveRow {
	var rows []StoveRow
	for _, b := range h.Boards {
		if len(b.Cards) < 5 {
			continue
		}
		for _, p := range h.Players {
			if len(p.Cards) == 0 {
				continue
			}
			cards := append(append([]string{}, p.Cards...), b.Cards...)
			r := evaluateCategory(cards)
			if r == 0 {
				continue
			}
			rows = append(rows, StoveRow{
				HandID:   h.DBIDHands,
				PlayerID: p.ID,
				BoardNo:  b.BoardNo,
				Rank:     r,
				RankName: rankNames[r],
			})
		}
	}
	return rows
}

// evaluateCategory returns the best five-card category available in the
// given cards, or 0 when any card fails to decode.
func evaluateCategory(cards []string) int {
	counts := make(map[int]int)
	suits := make(map[byte][]int)
	for _, c := range cards {
		if len(c) != 2 {
			return 0
		}
		r := strings.IndexByte(rankOrder, c[0])
		if r < 0 || strings.IndexByte(suitOrder, c[1]) < 0 {
			return 0
		}
		counts[r]++
		suits[c[1]] = append(suits[c[1]], r)
	}

	var flushRanks []int
	for _, rs := range suits {
		if len(rs) >= 5 {
			flushRanks = rs
		}
	}
	if flushRanks != nil && hasStraight(flushRanks) {
		return RankStraightFlush
	}

	pairs, trips, quads := 0, 0, 0
	for _, n := range counts {
		switch {
		case n >= 4:
			quads++
		case n == 3:
			trips++
		case n == 2:
			pairs++
		}
	}

	switch {
	case quads > 0:
		return RankQuads
	case trips > 0 && (pairs > 0 || trips > 1):
		return RankFullHouse
	case flushRanks != nil:
		return RankFlush
	}

	all := make([]int, 0, len(counts))
	for r := range counts {
		all = append(all, r)
	}
	if hasStraight(all) {
		return RankStraight
	}

	switch {
	case trips > 0:
		return RankTrips
	case pairs > 1:
		return RankTwoPair
	case pairs == 1:
		return RankPair
	}
	return RankHighCard
}

func hasStraight(ranks []int) bool {
	var present [14]bool
	for _, r := range ranks {
		present[r] = true
		if r == 12 { // ace also plays low
			present[13] = true
		}
	}
	run := 0
	// walk A-low (index 13 stands in below the deuce) up through the ace
	for _, r := range []int{13, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} {
		if present[r] {
			run++
			if run >= 5 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
