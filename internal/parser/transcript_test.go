package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"handvault/internal/hand"
)

const goodHand = `HAND 1001 time=2024-05-01T20:15:00Z table=Rio max=6 btn=3 sb=50 bb=100
SEAT 1 alice 10000 hero
SEAT 2 carol 9800
SEAT 3 bob 9500
DEAL bob Ah Kd
BLIND alice small 50
BLIND carol big 100
ACTION preflop bob raise 300
ACTION preflop alice fold
ACTION preflop carol call 200
BOARD 1 2h 7d 9c 4s Kc
WIN bob 1000
END
`

func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hands.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func parseTranscript(t *testing.T, path string, offset int64) *TranscriptParser {
	t.Helper()
	p := NewTranscriptParser(Options{Path: path, SiteID: 1, StartOffset: offset}).(*TranscriptParser)
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return p
}

func TestTranscriptSingleHand(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t, goodHand)
	p := parseTranscript(t, path, 0)

	if p.NumHands() != 1 || p.NumErrors() != 0 || p.NumPartial() != 0 || p.NumSkipped() != 0 {
		t.Fatalf("counters: hands=%d errors=%d partial=%d skipped=%d",
			p.NumHands(), p.NumErrors(), p.NumPartial(), p.NumSkipped())
	}
	hands := p.ProcessedHands()
	if len(hands) != 1 {
		t.Fatalf("processed hands = %d", len(hands))
	}
	h := hands[0]
	if h.SiteHandNo != "1001" || h.TableName != "Rio" || h.MaxSeats != 6 || h.ButtonSeat != 3 {
		t.Errorf("header: %+v", h)
	}
	if h.Gametype.SmallBlind != 50 || h.Gametype.BigBlind != 100 || h.Gametype.Type != "ring" {
		t.Errorf("gametype: %+v", h.Gametype)
	}
	if len(h.Players) != 3 || h.HeroSeat != 1 {
		t.Errorf("players=%d heroSeat=%d", len(h.Players), h.HeroSeat)
	}
	bob := h.PlayerByName("bob")
	if bob == nil || bob.Winnings != 1000 || len(bob.Cards) != 2 {
		t.Errorf("bob: %+v", bob)
	}
	if len(h.Actions) != 5 {
		t.Errorf("actions = %d, want 5", len(h.Actions))
	}
	if h.Actions[2].Type != hand.ActionRaise || h.Actions[2].Amount != 300 {
		t.Errorf("third action: %+v", h.Actions[2])
	}
	if len(h.Boards) != 1 || len(h.Boards[0].Cards) != 5 {
		t.Errorf("boards: %+v", h.Boards)
	}
	if got := p.LastCharacterRead(); got != int64(len(goodHand)) {
		t.Errorf("offset = %d, want %d", got, len(goodHand))
	}
}

func TestTranscriptCounters(t *testing.T) {
	t.Parallel()

	content := goodHand +
		// Bad directive inside a hand: the hand errors out.
		"HAND 1002 time=2024-05-01T20:20:00Z btn=1\nSEAT 1 alice 5000\nGARBAGE xyz\nEND\n" +
		// No seats: skipped.
		"HAND 1003 time=2024-05-01T20:25:00Z btn=1\nEND\n" +
		// Trailing hand with no END: partial, offset must not advance past it.
		"HAND 1004 time=2024-05-01T20:30:00Z btn=1\nSEAT 1 alice 5000\n"
	path := writeTranscript(t, content)
	p := parseTranscript(t, path, 0)

	if p.NumHands() != 4 {
		t.Errorf("hands = %d, want 4", p.NumHands())
	}
	if p.NumErrors() != 1 {
		t.Errorf("errors = %d, want 1", p.NumErrors())
	}
	if p.NumSkipped() != 1 {
		t.Errorf("skipped = %d, want 1", p.NumSkipped())
	}
	if p.NumPartial() != 1 {
		t.Errorf("partial = %d, want 1", p.NumPartial())
	}
	if len(p.ProcessedHands()) != 1 {
		t.Errorf("processed = %d, want 1", len(p.ProcessedHands()))
	}

	wantOff := int64(strings.LastIndex(content, "END\n") + len("END\n"))
	if got := p.LastCharacterRead(); got != wantOff {
		t.Errorf("offset = %d, want %d", got, wantOff)
	}
}

func TestTranscriptResumeFromOffset(t *testing.T) {
	t.Parallel()

	truncated := goodHand + "HAND 1002 time=2024-05-01T20:20:00Z btn=1\nSEAT 1 alice 5000\n"
	path := writeTranscript(t, truncated)
	p := parseTranscript(t, path, 0)
	if p.NumPartial() != 1 || len(p.ProcessedHands()) != 1 {
		t.Fatalf("first pass: partial=%d processed=%d", p.NumPartial(), len(p.ProcessedHands()))
	}
	offset := p.LastCharacterRead()

	// The writer finishes the hand; a second pass from the checkpoint picks
	// up the whole previously-truncated hand and nothing else.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("WIN alice 0\nEND\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	p2 := parseTranscript(t, path, offset)
	if p2.NumHands() != 1 || p2.NumPartial() != 0 {
		t.Fatalf("second pass: hands=%d partial=%d", p2.NumHands(), p2.NumPartial())
	}
	hands := p2.ProcessedHands()
	if len(hands) != 1 || hands[0].SiteHandNo != "1002" {
		t.Fatalf("second pass processed: %+v", hands)
	}
}

func TestTranscriptTourneyHand(t *testing.T) {
	t.Parallel()

	content := "HAND 2001 time=2024-05-01T21:00:00Z btn=2 max=9\n" +
		"TOURNEY no=888 buyin=1000 fee=100 ko=250 speed=turbo\n" +
		"SEAT 1 alice 3000 hero\nSEAT 2 bob 3000\n" +
		"BLIND alice small 10\nBLIND bob big 20\n" +
		"ACTION preflop alice call 10\nACTION preflop bob check\n" +
		"WIN bob 40\n" +
		"RESULT alice rank=2 win=0\nRESULT bob rank=1 win=1800 ko=1\n" +
		"END\n"
	path := writeTranscript(t, content)
	p := parseTranscript(t, path, 0)

	hands := p.ProcessedHands()
	if len(hands) != 1 {
		t.Fatalf("processed = %d", len(hands))
	}
	h := hands[0]
	if h.Tourney == nil {
		t.Fatal("tourney not parsed")
	}
	if h.Gametype.Type != "tour" {
		t.Errorf("gametype type = %q, want tour", h.Gametype.Type)
	}
	tn := h.Tourney
	if tn.SiteTourneyNo != "888" || tn.BuyIn != 1000 || tn.Fee != 100 || tn.KOBounty != 250 || !tn.IsKO {
		t.Errorf("tourney: %+v", tn)
	}
	if tn.Ranks["bob"] != 1 || tn.Winnings["bob"] != 1800 || tn.Knockouts["bob"] != 1 {
		t.Errorf("results: ranks=%v winnings=%v kos=%v", tn.Ranks, tn.Winnings, tn.Knockouts)
	}
}

func TestTranscriptUnterminatedBeforeNextHand(t *testing.T) {
	t.Parallel()

	content := "HAND 3001 time=2024-05-01T20:00:00Z btn=1\nSEAT 1 alice 1000\n" + goodHand
	path := writeTranscript(t, content)
	p := parseTranscript(t, path, 0)

	// The unterminated first hand errors; the complete one still imports.
	if p.NumHands() != 2 || p.NumErrors() != 1 {
		t.Fatalf("hands=%d errors=%d", p.NumHands(), p.NumErrors())
	}
	if len(p.ProcessedHands()) != 1 || p.ProcessedHands()[0].SiteHandNo != "1001" {
		t.Fatalf("processed: %+v", p.ProcessedHands())
	}
}

func TestRegistryIdentify(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	path := writeTranscript(t, goodHand)
	site, err := r.Identify(path)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if site.Name != "Transcript" || site.ID != 1 {
		t.Errorf("site: %+v", site)
	}

	other := writeTranscript(t, "not a hand history at all\n")
	if _, err := r.Identify(other); err == nil {
		t.Error("identify of junk should fail")
	}

	if _, err := r.Lookup("Transcript"); err != nil {
		t.Errorf("lookup: %v", err)
	}
	if _, err := r.Lookup("nope"); err == nil {
		t.Error("lookup of unknown site should fail")
	}
}
