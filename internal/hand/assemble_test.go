package hand

import (
	"testing"
	"time"
)

// threeWayHand builds a raked three-handed hand: bob opens on the button,
// alice folds her small blind, carol defends her big blind and check-calls
// the flop, then it checks down to showdown where bob wins.
func threeWayHand() *Hand {
	h := &Hand{
		SiteHandNo: "1001",
		SiteID:     1,
		Gametype:   Gametype{SiteID: 1, Type: "ring", Category: "holdem", LimitType: "nl", SmallBlind: 50, BigBlind: 100},
		StartTime:  time.Date(2024, 5, 1, 20, 15, 0, 0, time.UTC),
		MaxSeats:   6,
		ButtonSeat: 3,
		Players: []*Player{
			{Name: "alice", Seat: 1, StartStack: 10000, IsHero: true},
			{Name: "carol", Seat: 2, StartStack: 9800},
			{Name: "bob", Seat: 3, StartStack: 9500, Cards: []string{"Ah", "Kd"}},
		},
		Actions: []Action{
			{Street: StreetPreflop, Player: "alice", Type: ActionSmallBlind, Amount: 50},
			{Street: StreetPreflop, Player: "carol", Type: ActionBigBlind, Amount: 100},
			{Street: StreetPreflop, Player: "bob", Type: ActionRaise, Amount: 300},
			{Street: StreetPreflop, Player: "alice", Type: ActionFold},
			{Street: StreetPreflop, Player: "carol", Type: ActionCall, Amount: 200},
			{Street: StreetFlop, Player: "carol", Type: ActionCheck},
			{Street: StreetFlop, Player: "bob", Type: ActionBet, Amount: 200},
			{Street: StreetFlop, Player: "carol", Type: ActionCall, Amount: 200},
			{Street: StreetTurn, Player: "carol", Type: ActionCheck},
			{Street: StreetTurn, Player: "bob", Type: ActionCheck},
			{Street: StreetRiver, Player: "carol", Type: ActionCheck},
			{Street: StreetRiver, Player: "bob", Type: ActionCheck},
		},
		Boards:     []Board{{BoardNo: 1, Cards: []string{"2h", "7d", "9c", "4s", "Kc"}}},
		RunItTimes: 1,
	}
	h.PlayerByName("bob").Winnings = 1000
	return h
}

func TestAssemblePositions(t *testing.T) {
	t.Parallel()

	h := threeWayHand()
	if err := h.Assemble(); err != nil {
		t.Fatalf("assemble: %v", err)
	}

	want := map[string]string{"bob": "0", "carol": "B", "alice": "S"}
	for name, pos := range want {
		if got := h.PlayerByName(name).Position; got != pos {
			t.Errorf("%s position = %q, want %q", name, got, pos)
		}
	}
	if got := h.MaxPosition(); got != 0 {
		t.Errorf("MaxPosition = %d, want 0", got)
	}
}

func TestAssembleProfitAndRake(t *testing.T) {
	t.Parallel()

	h := threeWayHand()
	if err := h.Assemble(); err != nil {
		t.Fatalf("assemble: %v", err)
	}

	// Pot is 1050, bob wins 1000, so 50 of rake lands on the only winner.
	bob := h.PlayerByName("bob")
	if bob.TotalProfit != 500 {
		t.Errorf("bob profit = %d, want 500", bob.TotalProfit)
	}
	if bob.Rake != 50 {
		t.Errorf("bob rake = %d, want 50", bob.Rake)
	}
	if got := h.PlayerByName("carol").TotalProfit; got != -500 {
		t.Errorf("carol profit = %d, want -500", got)
	}
	if got := h.PlayerByName("alice").TotalProfit; got != -50 {
		t.Errorf("alice profit = %d, want -50", got)
	}
}

func TestAssembleStatLines(t *testing.T) {
	t.Parallel()

	h := threeWayHand()
	if err := h.Assemble(); err != nil {
		t.Fatalf("assemble: %v", err)
	}

	check := func(name string, stat Stat, want int64) {
		t.Helper()
		if got := h.PlayerByName(name).Stats[stat]; got != want {
			t.Errorf("%s %s = %d, want %d", name, StatColumns[stat], got, want)
		}
	}

	check("bob", StatHands, 1)
	check("bob", StatStreet0VPI, 1)
	check("bob", StatStreet0Aggr, 1)
	check("bob", StatRaiseFirstInChance, 1)
	check("bob", StatRaisedFirstIn, 1)
	check("bob", StatStreet03BChance, 0)
	check("bob", StatStreet1Seen, 1)
	check("bob", StatStreet3Seen, 1)
	check("bob", StatStreet1Aggr, 1)
	check("bob", StatSawShowdown, 1)
	check("bob", StatWonWhenSeenStreet1, 1)
	check("bob", StatWonAtSD, 1)
	check("bob", StatTotalProfit, 500)
	check("bob", StatRake, 50)

	// Carol defended her blind against an open: a 3-bet chance, no
	// first-in chance.
	check("carol", StatStreet0VPI, 1)
	check("carol", StatStreet0Aggr, 0)
	check("carol", StatStreet03BChance, 1)
	check("carol", StatStreet03BDone, 0)
	check("carol", StatRaiseFirstInChance, 0)
	check("carol", StatSawShowdown, 1)
	check("carol", StatWonAtSD, 0)

	// Alice folded her small blind preflop.
	check("alice", StatHands, 1)
	check("alice", StatStreet0VPI, 0)
	check("alice", StatStreet1Seen, 0)
	check("alice", StatSawShowdown, 0)
	check("alice", StatTotalProfit, -50)
}

func TestAssembleNoPlayers(t *testing.T) {
	t.Parallel()

	h := &Hand{SiteHandNo: "42"}
	if err := h.Assemble(); err == nil {
		t.Fatal("assemble of empty hand should fail")
	}
}

func TestStatLineAdd(t *testing.T) {
	t.Parallel()

	var a, b StatLine
	a[StatHands] = 1
	a[StatTotalProfit] = 500
	b[StatHands] = 2
	b[StatTotalProfit] = -300
	a.Add(b)
	if a[StatHands] != 3 || a[StatTotalProfit] != 200 {
		t.Errorf("after Add: n=%d profit=%d", a[StatHands], a[StatTotalProfit])
	}
}
