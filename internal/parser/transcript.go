package parser

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"handvault/internal/hand"
)

// TranscriptParser reads the flat transcript format: one directive per line,
// hands opened by "HAND <siteHandNo> k=v..." and closed by "END". Amounts
// are integer cents and always incremental.
//
//	HAND 1001 type=ring cat=holdem limit=nl sb=50 bb=100 cur=USD time=2024-05-01T20:15:00Z table=Rio max=6 btn=3
//	SEAT 3 bob 9500
//	SEAT 1 alice 10000 hero
//	DEAL alice Ah Kd
//	BLIND alice small 50
//	BLIND bob big 100
//	ACTION preflop bob raise 300
//	BOARD 1 2h 7d 9c
//	WIN bob 700
//	END
//
// Tour hands add "TOURNEY no=888 buyin=1000 fee=100 ..." after the header
// and may carry "RESULT <player> rank=1 win=5000 ko=2" lines.
type TranscriptParser struct {
	opts Options

	hands   []*hand.Hand
	numHand int
	errs    int
	partial int
	skipped int
	lastOff int64
}

// NewTranscriptParser builds a parser for one file; call Start to run it.
func NewTranscriptParser(o Options) Parser {
	return &TranscriptParser{opts: o}
}

func (p *TranscriptParser) NumHands() int                { return p.numHand }
func (p *TranscriptParser) NumErrors() int               { return p.errs }
func (p *TranscriptParser) NumPartial() int              { return p.partial }
func (p *TranscriptParser) NumSkipped() int              { return p.skipped }
func (p *TranscriptParser) ProcessedHands() []*hand.Hand { return p.hands }
func (p *TranscriptParser) LastCharacterRead() int64     { return p.lastOff }

// Start reads the file from the configured offset and parses every
// terminated hand. A trailing unterminated hand counts as partial and is not
// included in the processed offset, so a later pass re-reads it once the
// rest has been appended.
func (p *TranscriptParser) Start() error {
	f, err := os.Open(p.opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	pos := p.opts.StartOffset
	if pos > 0 {
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return err
		}
	}
	p.lastOff = pos

	r := bufio.NewReaderSize(f, 1<<20)
	var cur *hand.Hand
	var curText strings.Builder
	var curErr error
	lineNo := 0

	finish := func(endPos int64) {
		if cur == nil {
			return
		}
		cur.Text = curText.String()
		p.numHand++
		switch {
		case curErr != nil:
			p.errs++
			slog.Warn("hand parse failed", "path", p.opts.Path, "err", curErr, "snippet", cur.Snippet())
		case len(cur.Players) == 0:
			p.skipped++
		default:
			p.hands = append(p.hands, cur)
		}
		p.lastOff = endPos
		cur = nil
		curErr = nil
		curText.Reset()
	}

	for {
		line, rerr := r.ReadString('\n')
		if line != "" {
			lineNo++
			pos += int64(len(line))
			trimmed := strings.TrimSpace(line)
			if cur != nil {
				curText.WriteString(line)
			}
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, "HAND "):
				if cur != nil {
					// Unterminated previous hand.
					curErr = &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: "hand not terminated"}
					finish(pos - int64(len(line)))
				}
				h, err := p.parseHeader(trimmed, lineNo)
				if err != nil {
					cur = &hand.Hand{SiteID: p.opts.SiteID}
					curErr = err
				} else {
					cur = h
				}
				curText.Reset()
				curText.WriteString(line)
			case trimmed == "END":
				finish(pos)
			case cur == nil:
				// Directives outside a hand are noise; skip them.
			case curErr != nil:
				// Already failed; consume until END.
			default:
				if err := p.parseDirective(cur, trimmed, lineNo); err != nil {
					curErr = err
				}
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				return rerr
			}
			break
		}
	}

	if cur != nil {
		// Truncated trailing hand.
		p.numHand++
		p.partial++
		slog.Debug("partial hand at end of file", "path", p.opts.Path)
	}
	return nil
}

func (p *TranscriptParser) parseHeader(line string, lineNo int) (*hand.Hand, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: "HAND needs a hand number"}
	}
	h := &hand.Hand{
		SiteHandNo: fields[1],
		SiteID:     p.opts.SiteID,
		RunItTimes: 1,
		Gametype: hand.Gametype{
			SiteID:   p.opts.SiteID,
			Type:     "ring",
			Currency: "USD",
		},
	}
	for _, kv := range fields[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: "bad header field " + kv}
		}
		switch k {
		case "type":
			h.Gametype.Type = v
		case "cat":
			h.Gametype.Category = v
		case "limit":
			h.Gametype.LimitType = v
		case "cur":
			h.Gametype.Currency = v
		case "mix":
			h.Gametype.Mix = v
		case "sb":
			h.Gametype.SmallBlind = parseAmount(v)
		case "bb":
			h.Gametype.BigBlind = parseAmount(v)
		case "ante":
			h.Gametype.Ante = parseAmount(v)
		case "time":
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: "bad time " + v}
			}
			h.StartTime = t
		case "table":
			h.TableName = v
		case "max":
			h.MaxSeats, _ = strconv.Atoi(v)
			h.Gametype.MaxSeats = h.MaxSeats
		case "btn":
			h.ButtonSeat, _ = strconv.Atoi(v)
		}
	}
	if h.StartTime.IsZero() {
		return nil, &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: "header missing time"}
	}
	return h, nil
}

func (p *TranscriptParser) parseDirective(h *hand.Hand, line string, lineNo int) error {
	bad := func(msg string) error {
		return &hand.ParseError{Path: p.opts.Path, Line: lineNo, Msg: msg, Snippet: line}
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "TOURNEY":
		t := &hand.Tourney{
			Currency:  "USD",
			Ranks:     make(map[string]int),
			Winnings:  make(map[string]int64),
			Knockouts: make(map[string]int),
		}
		for _, kv := range fields[1:] {
			k, v, _ := strings.Cut(kv, "=")
			switch k {
			case "no":
				t.SiteTourneyNo = v
			case "buyin":
				t.BuyIn = parseAmount(v)
			case "fee":
				t.Fee = parseAmount(v)
			case "cur":
				t.Currency = v
			case "max":
				t.MaxSeats, _ = strconv.Atoi(v)
			case "speed":
				t.Speed = v
			case "ko":
				t.KOBounty = parseAmount(v)
				t.IsKO = t.KOBounty > 0
			case "rebuy":
				t.IsRebuy = true
			case "addon":
				t.IsAddon = true
			}
		}
		if t.SiteTourneyNo == "" {
			return bad("TOURNEY needs no=")
		}
		h.Tourney = t
		h.Gametype.Type = "tour"
	case "SEAT":
		if len(fields) < 4 {
			return bad("SEAT needs seat, name, stack")
		}
		seat, err := strconv.Atoi(fields[1])
		if err != nil {
			return bad("bad seat " + fields[1])
		}
		pl := &hand.Player{
			Name:       fields[2],
			Seat:       seat,
			StartStack: parseAmount(fields[3]),
		}
		if len(fields) > 4 && fields[4] == "hero" || pl.Name == p.opts.HeroName {
			pl.IsHero = true
			h.HeroSeat = seat
		}
		h.Players = append(h.Players, pl)
	case "DEAL":
		if len(fields) < 3 {
			return bad("DEAL needs player and cards")
		}
		pl := h.PlayerByName(fields[1])
		if pl == nil {
			return bad("DEAL for unseated player " + fields[1])
		}
		pl.Cards = fields[2:]
	case "BLIND":
		if len(fields) != 4 {
			return bad("BLIND needs player, kind, amount")
		}
		at := hand.ActionSmallBlind
		if fields[2] == "big" {
			at = hand.ActionBigBlind
		}
		h.Actions = append(h.Actions, hand.Action{
			Street: hand.StreetPreflop, Player: fields[1], Type: at, Amount: parseAmount(fields[3]),
		})
	case "ANTE":
		if len(fields) != 3 {
			return bad("ANTE needs player and amount")
		}
		h.Actions = append(h.Actions, hand.Action{
			Street: hand.StreetPreflop, Player: fields[1], Type: hand.ActionAnte, Amount: parseAmount(fields[2]),
		})
	case "ACTION":
		if len(fields) < 4 {
			return bad("ACTION needs street, player, verb")
		}
		st, ok := streetByName(fields[1])
		if !ok {
			return bad("bad street " + fields[1])
		}
		at, ok := actionByName(fields[3])
		if !ok {
			return bad("bad action " + fields[3])
		}
		a := hand.Action{Street: st, Player: fields[2], Type: at}
		if len(fields) > 4 {
			a.Amount = parseAmount(fields[4])
		}
		h.Actions = append(h.Actions, a)
	case "BOARD":
		if len(fields) < 3 {
			return bad("BOARD needs board number and cards")
		}
		no, err := strconv.Atoi(fields[1])
		if err != nil {
			return bad("bad board number " + fields[1])
		}
		for i := range h.Boards {
			if h.Boards[i].BoardNo == no {
				h.Boards[i].Cards = append(h.Boards[i].Cards, fields[2:]...)
				return nil
			}
		}
		h.Boards = append(h.Boards, hand.Board{BoardNo: no, Cards: fields[2:]})
		if no > h.RunItTimes {
			h.RunItTimes = no
		}
	case "WIN":
		if len(fields) < 3 {
			return bad("WIN needs player and amount")
		}
		pl := h.PlayerByName(fields[1])
		if pl == nil {
			return bad("WIN for unseated player " + fields[1])
		}
		pl.Winnings += parseAmount(fields[2])
	case "RESULT":
		if h.Tourney == nil {
			return bad("RESULT outside a tourney hand")
		}
		if len(fields) < 3 {
			return bad("RESULT needs player and fields")
		}
		name := fields[1]
		for _, kv := range fields[2:] {
			k, v, _ := strings.Cut(kv, "=")
			switch k {
			case "rank":
				h.Tourney.Ranks[name], _ = strconv.Atoi(v)
			case "win":
				h.Tourney.Winnings[name] = parseAmount(v)
			case "ko":
				h.Tourney.Knockouts[name], _ = strconv.Atoi(v)
			}
		}
	default:
		return bad("unknown directive " + fields[0])
	}
	return nil
}

func parseAmount(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func streetByName(s string) (hand.Street, bool) {
	switch s {
	case "preflop":
		return hand.StreetPreflop, true
	case "flop":
		return hand.StreetFlop, true
	case "turn":
		return hand.StreetTurn, true
	case "river":
		return hand.StreetRiver, true
	}
	return 0, false
}

func actionByName(s string) (hand.ActionType, bool) {
	switch s {
	case "fold":
		return hand.ActionFold, true
	case "check":
		return hand.ActionCheck, true
	case "call":
		return hand.ActionCall, true
	case "bet":
		return hand.ActionBet, true
	case "raise":
		return hand.ActionRaise, true
	}
	return hand.ActionUnknown, false
}
