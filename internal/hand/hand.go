// Package hand defines the structured representation of one dealt poker hand
// and the insert contract the import pipeline drives against the persistence
// boundary.
package hand

import "time"

// Street identifies a betting round.
type Street int

const (
	StreetPreflop Street = iota
	StreetFlop
	StreetTurn
	StreetRiver
	StreetShowdown
)

func (s Street) String() string {
	switch s {
	case StreetPreflop:
		return "preflop"
	case StreetFlop:
		return "flop"
	case StreetTurn:
		return "turn"
	case StreetRiver:
		return "river"
	case StreetShowdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// ActionType identifies what a player did.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionSmallBlind
	ActionBigBlind
	ActionAnte
	ActionFold
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
)

func (a ActionType) String() string {
	switch a {
	case ActionSmallBlind:
		return "small blind"
	case ActionBigBlind:
		return "big blind"
	case ActionAnte:
		return "ante"
	case ActionFold:
		return "fold"
	case ActionCheck:
		return "check"
	case ActionCall:
		return "call"
	case ActionBet:
		return "bet"
	case ActionRaise:
		return "raise"
	default:
		return "unknown"
	}
}

// Aggressive reports whether the action counts as aggression for stats.
func (a ActionType) Aggressive() bool {
	return a == ActionBet || a == ActionRaise
}

// Gametype describes the game a hand was dealt in. Identical descriptors must
// resolve to the same persisted gametype id.
type Gametype struct {
	SiteID     int64
	Type       string // "ring" or "tour"
	Category   string // "holdem", "omahahi", ...
	LimitType  string // "nl", "pl", "fl"
	Currency   string
	Mix        string
	SmallBlind int64 // cents
	BigBlind   int64
	SmallBet   int64
	BigBet     int64
	MaxSeats   int
	Ante       int64
}

// Player is one seat's parsed state plus the per-hand derived statistics
// assembled before insert.
type Player struct {
	Name       string
	Seat       int
	StartStack int64
	Cards      []string
	IsHero     bool

	// Assigned by PrepInsert.
	ID int64

	// Assigned by Assemble.
	Position    string // "B", "S", "0".."7" from the button backwards
	StartCards  int
	Winnings    int64
	TotalProfit int64
	Rake        int64
	Stats       StatLine
}

// Action is one parsed player action in yield order.
type Action struct {
	Street Street
	Player string
	Type   ActionType
	Amount int64
}

// Board is one run-out of community cards. RunItTimes > 1 produces several.
type Board struct {
	BoardNo int
	Cards   []string
}

// Tourney carries the tournament linkage of a tour-type hand.
type Tourney struct {
	SiteTourneyNo string
	BuyIn         int64
	Fee           int64
	Currency      string
	MaxSeats      int
	Speed         string
	KOBounty      int64
	IsKO          bool
	IsRebuy       bool
	IsAddon       bool

	// Per-player results when the hand text carries them.
	Ranks     map[string]int
	Winnings  map[string]int64
	Knockouts map[string]int

	// Assigned by PrepInsert.
	TypeID int64
	ID     int64
	// PlayerIDs maps player name to the TourneysPlayers row id.
	PlayerIDs map[string]int64
}

// Hand is the atomic unit of import. A parser produces it; the import
// pipeline owns it until persisted. Identity is (siteId, siteHandNo[,
// heroSeat]).
type Hand struct {
	SiteHandNo string
	SiteID     int64
	Gametype   Gametype
	StartTime  time.Time
	TableName  string
	MaxSeats   int
	ButtonSeat int
	HeroSeat   int
	Players    []*Player
	Actions    []Action
	Boards     []Board
	Tourney    *Tourney
	RunItTimes int

	// Text is the raw hand text, kept for error snippets.
	Text string

	// Assigned during the insert protocol.
	DBIDHands  int64
	GametypeID int64
	HeroID     int64

	assembled bool
}

// PlayerByName returns the seat entry for name, or nil.
func (h *Hand) PlayerByName(name string) *Player {
	for _, p := range h.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Hero returns the hero seat entry, or nil.
func (h *Hand) Hero() *Player {
	for _, p := range h.Players {
		if p.IsHero {
			return p
		}
	}
	return nil
}

// Snippet returns a truncated copy of the raw hand text for log lines.
func (h *Hand) Snippet() string {
	const max = 200
	if len(h.Text) <= max {
		return h.Text
	}
	return h.Text[:max] + "..."
}
