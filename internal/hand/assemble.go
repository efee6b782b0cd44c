package hand

import (
	"fmt"
	"strconv"
)

// Assemble performs final structural assembly: seat positions relative to the
// button, per-player invested amounts and profit, and the per-player derived
// statistic lines. It must run after PrepInsert for the whole batch and
// before any insert hook.
func (h *Hand) Assemble() error {
	if len(h.Players) == 0 {
		return fmt.Errorf("hand %s: no players", h.SiteHandNo)
	}
	h.assignPositions()

	invested := make(map[string]int64, len(h.Players))
	for _, a := range h.Actions {
		invested[a.Player] += a.Amount
	}

	folded := h.foldedPlayers()
	sawStreet := h.streetsSeen(folded)
	showdown := h.showdownPlayers(folded)

	var totalWon int64
	for _, p := range h.Players {
		totalWon += p.Winnings
	}
	pot := int64(0)
	for _, v := range invested {
		pot += v
	}
	rake := pot - totalWon
	if rake < 0 {
		rake = 0
	}

	for _, p := range h.Players {
		p.StartCards = StartCardsIndex(p.Cards)
		p.TotalProfit = p.Winnings - invested[p.Name]
		if totalWon > 0 && p.Winnings > 0 {
			p.Rake = rake * p.Winnings / totalWon
		}
		p.Stats = h.playerStats(p, folded, sawStreet, showdown)
	}
	h.assembled = true
	return nil
}

// assignPositions labels blinds "S" and "B" and everyone else by distance
// from the button counting backwards, button itself "0".
func (h *Hand) assignPositions() {
	blinds := make(map[string]ActionType)
	for _, a := range h.Actions {
		if a.Street != StreetPreflop {
			break
		}
		if a.Type == ActionSmallBlind || a.Type == ActionBigBlind {
			if _, ok := blinds[a.Player]; !ok {
				blinds[a.Player] = a.Type
			}
		}
	}

	max := h.MaxSeats
	if max <= 0 {
		max = 10
	}
	next := 0
	// Walk seats clockwise starting at the button so non-blind positions
	// come out 0 (button), 1 (cutoff), and so on.
	for off := 0; off < max; off++ {
		seat := h.ButtonSeat - off
		for seat < 1 {
			seat += max
		}
		for _, p := range h.Players {
			if p.Seat != seat {
				continue
			}
			switch blinds[p.Name] {
			case ActionSmallBlind:
				p.Position = "S"
			case ActionBigBlind:
				p.Position = "B"
			default:
				p.Position = strconv.Itoa(next)
				next++
			}
		}
	}
}

// MaxPosition is the highest numeric position assigned in this hand, used as
// a PositionsCache dimension. Returns -1 before Assemble.
func (h *Hand) MaxPosition() int {
	max := -1
	for _, p := range h.Players {
		if n, err := strconv.Atoi(p.Position); err == nil && n > max {
			max = n
		}
	}
	return max
}

func (h *Hand) foldedPlayers() map[string]Street {
	folded := make(map[string]Street)
	for _, a := range h.Actions {
		if a.Type == ActionFold {
			if _, ok := folded[a.Player]; !ok {
				folded[a.Player] = a.Street
			}
		}
	}
	return folded
}

// streetsSeen reports, per street past preflop, whether the hand reached it.
func (h *Hand) streetsSeen(folded map[string]Street) [5]bool {
	var seen [5]bool
	seen[StreetPreflop] = true
	for _, b := range h.Boards {
		switch {
		case len(b.Cards) >= 3:
			seen[StreetFlop] = true
		}
		if len(b.Cards) >= 4 {
			seen[StreetTurn] = true
		}
		if len(b.Cards) >= 5 {
			seen[StreetRiver] = true
		}
	}
	for _, a := range h.Actions {
		if a.Street > StreetPreflop && a.Street < StreetShowdown {
			seen[a.Street] = true
		}
	}
	return seen
}

// showdownPlayers returns the set of players still live after the last
// street when at least two remain.
func (h *Hand) showdownPlayers(folded map[string]Street) map[string]bool {
	live := make(map[string]bool)
	for _, p := range h.Players {
		if _, out := folded[p.Name]; !out {
			live[p.Name] = true
		}
	}
	if len(live) < 2 {
		return map[string]bool{}
	}
	return live
}

func (h *Hand) playerStats(p *Player, folded map[string]Street, sawStreet [5]bool, showdown map[string]bool) StatLine {
	var line StatLine
	line[StatHands] = 1

	foldedAt, didFold := folded[p.Name]

	// Preflop walk: voluntary entry, aggression, first-in and 3-bet spots.
	raises := 0
	callers := 0
	for _, a := range h.Actions {
		if a.Street != StreetPreflop {
			break
		}
		mine := a.Player == p.Name
		switch a.Type {
		case ActionCall:
			if mine {
				line[StatStreet0VPI] = 1
			}
			if !mine {
				callers++
			}
		case ActionBet, ActionRaise:
			if mine {
				line[StatStreet0VPI] = 1
				line[StatStreet0Aggr] = 1
				if raises == 0 && callers == 0 && p.Position != "S" && p.Position != "B" {
					line[StatRaisedFirstIn] = 1
				}
				if raises == 1 {
					line[StatStreet03BDone] = 1
				}
			}
			if !mine {
				raises++
			}
		}
		// A player's first chance to act open or 3-bet is the state of the
		// street when their first non-blind action arrives.
		if mine && a.Type != ActionSmallBlind && a.Type != ActionBigBlind && a.Type != ActionAnte {
			if line[StatRaiseFirstInChance] == 0 && raises == 0 && callers == 0 && p.Position != "S" && p.Position != "B" {
				line[StatRaiseFirstInChance] = 1
			}
			if line[StatStreet03BChance] == 0 && raises == 1 {
				line[StatStreet03BChance] = 1
			}
		}
	}

	// Postflop streets seen and aggression.
	streetStats := [...]struct{ seen, aggr Stat }{
		{StatStreet1Seen, StatStreet1Aggr},
		{StatStreet2Seen, StatStreet2Aggr},
		{StatStreet3Seen, StatStreet3Aggr},
		{StatStreet4Seen, StatStreet4Aggr},
	}
	for i, ss := range streetStats {
		st := Street(i + 1)
		if st > StreetRiver {
			break
		}
		if sawStreet[st] && (!didFold || foldedAt >= st) {
			line[ss.seen] = 1
		}
	}
	for _, a := range h.Actions {
		if a.Player != p.Name || !a.Type.Aggressive() {
			continue
		}
		if a.Street >= StreetFlop && a.Street <= StreetRiver {
			line[streetStats[int(a.Street)-1].aggr] = 1
		}
	}

	if showdown[p.Name] {
		line[StatSawShowdown] = 1
	}
	if p.Winnings > 0 {
		if line[StatStreet1Seen] == 1 {
			line[StatWonWhenSeenStreet1] = 1
		}
		if line[StatSawShowdown] == 1 {
			line[StatWonAtSD] = 1
		}
	}
	line[StatTotalProfit] = p.TotalProfit
	line[StatRake] = p.Rake
	return line
}
