package hand

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Row and contribution types buffered by the persistence boundary. Every one
// carries the owning hand id so a batch can discard a hand's pending work as
// a unit.

type HandRow struct {
	ID          int64
	FileID      int64
	SiteHandNo  string
	SiteID      int64
	GametypeID  int64
	TourneyID   int64
	SessionID   int64 // patched in at flush from the session engine
	StartTime   time.Time
	ImportTime  time.Time
	TableName   string
	Seats       int
	MaxSeats    int
	ButtonSeat  int
	HeroSeat    int
	MaxPosition int
	BoardCards  string
	RunItTimes  int
}

type BoardRow struct {
	HandID  int64
	BoardNo int
	Cards   string
}

type HandsPlayerRow struct {
	HandID           int64
	PlayerID         int64
	TourneysPlayerID int64
	Seat             int
	StartStack       int64
	Position         string
	StartCards       int
	Cards            string
	Winnings         int64
	Rake             int64
	TotalProfit      int64
	Stats            StatLine
}

type HandsActionRow struct {
	HandID   int64
	PlayerID int64
	Street   Street
	ActionNo int
	Action   string
	Amount   int64
}

type StoveRow struct {
	HandID   int64
	PlayerID int64
	BoardNo  int
	Rank     int
	RankName string
}

type PotRow struct {
	HandID int64
	PotNo  int
	Amount int64
}

// SessionUpdate is one hand's contribution to the session merge engine plus
// its SessionsCache/TourneysCache stat lines.
type SessionUpdate struct {
	HandID     int64
	TourneyID  int64
	GametypeID int64
	Type       string // gametype type: "ring" or "tour"
	StartTime  time.Time
	Players    []SessionPlayerContrib
}

type SessionPlayerContrib struct {
	PlayerID int64
	Line     StatLine
}

type HudContrib struct {
	HandID        int64
	GametypeID    int64
	TourneyTypeID int64
	PlayerID      int64
	Seats         int
	Position      string
	StartTime     time.Time
	Line          StatLine
}

type CardsContrib struct {
	HandID        int64
	GametypeID    int64
	TourneyTypeID int64
	PlayerID      int64
	StartCards    int
	Line          StatLine
}

type PositionsContrib struct {
	HandID        int64
	GametypeID    int64
	TourneyTypeID int64
	PlayerID      int64
	Seats         int
	MaxPosition   int
	Position      string
	Line          StatLine
}

// Persister is the slice of the persistence boundary the insert contract
// drives. The sqlite store implements it; tests substitute doubles.
type Persister interface {
	ResolvePlayers(ctx context.Context, siteID int64, names []string, hero string) (map[string]int64, error)
	ResolveGametype(ctx context.Context, g Gametype) (int64, error)
	ResolveTourney(ctx context.Context, t *Tourney, siteID int64, start time.Time, playerIDs map[string]int64) error

	CheckDuplicate(ctx context.Context, siteID int64, siteHandNo string, heroSeat int) error
	NextHandID(ctx context.Context) (int64, error)

	UpdateSessionsCache(ctx context.Context, u *SessionUpdate, doInsert bool) error
	StoreHand(ctx context.Context, row *HandRow, boards []BoardRow, doInsert bool) error
	UpdateCardsCache(ctx context.Context, cs []CardsContrib, doInsert bool) error
	UpdatePositionsCache(ctx context.Context, cs []PositionsContrib, doInsert bool) error
	UpdateHudCache(ctx context.Context, cs []HudContrib, doInsert bool) error
	UpdateTourneyResults(ctx context.Context, t *Tourney) error

	StoreHandsPlayers(ctx context.Context, rows []HandsPlayerRow, doInsert bool) error
	StoreHandsActions(ctx context.Context, rows []HandsActionRow, doInsert bool) error
	StoreHandsStove(ctx context.Context, rows []StoveRow, doInsert bool) error
	StoreHandsPots(ctx context.Context, rows []PotRow, doInsert bool) error
}

// PrepInsert resolves every database id a hand needs before its own id is
// known: players, gametype, and tournament linkage.
func (h *Hand) PrepInsert(ctx context.Context, p Persister) error {
	names := make([]string, 0, len(h.Players))
	hero := ""
	for _, pl := range h.Players {
		names = append(names, pl.Name)
		if pl.IsHero {
			hero = pl.Name
		}
	}
	ids, err := p.ResolvePlayers(ctx, h.SiteID, names, hero)
	if err != nil {
		return fmt.Errorf("resolve players: %w", err)
	}
	for _, pl := range h.Players {
		pl.ID = ids[pl.Name]
		if pl.IsHero {
			h.HeroID = pl.ID
		}
	}

	h.GametypeID, err = p.ResolveGametype(ctx, h.Gametype)
	if err != nil {
		return fmt.Errorf("resolve gametype: %w", err)
	}

	if h.Tourney != nil {
		if err := p.ResolveTourney(ctx, h.Tourney, h.SiteID, h.StartTime, ids); err != nil {
			return fmt.Errorf("resolve tourney: %w", err)
		}
	}
	return nil
}

// GetHandID raises the duplicate signal before any buffering happens, then
// claims the next hand id in batch order.
func (h *Hand) GetHandID(ctx context.Context, p Persister) error {
	if err := p.CheckDuplicate(ctx, h.SiteID, h.SiteHandNo, h.HeroSeat); err != nil {
		return err
	}
	id, err := p.NextHandID(ctx)
	if err != nil {
		return err
	}
	h.DBIDHands = id
	return nil
}

// UpdateSessionsCache feeds the hand to the session merge engine.
func (h *Hand) UpdateSessionsCache(ctx context.Context, p Persister, doInsert bool) error {
	u := &SessionUpdate{
		HandID:     h.DBIDHands,
		GametypeID: h.GametypeID,
		Type:       h.Gametype.Type,
		StartTime:  h.StartTime,
	}
	if h.Tourney != nil {
		u.TourneyID = h.Tourney.ID
	}
	for _, pl := range h.Players {
		u.Players = append(u.Players, SessionPlayerContrib{PlayerID: pl.ID, Line: pl.Stats})
	}
	return p.UpdateSessionsCache(ctx, u, doInsert)
}

// InsertHands buffers the Hands row and board rows; the flush patches in the
// session id assigned by the session engine.
func (h *Hand) InsertHands(ctx context.Context, p Persister, fileID int64, doInsert bool) error {
	row := &HandRow{
		ID:          h.DBIDHands,
		FileID:      fileID,
		SiteHandNo:  h.SiteHandNo,
		SiteID:      h.SiteID,
		GametypeID:  h.GametypeID,
		StartTime:   h.StartTime,
		ImportTime:  time.Now(),
		TableName:   h.TableName,
		Seats:       len(h.Players),
		MaxSeats:    h.MaxSeats,
		ButtonSeat:  h.ButtonSeat,
		HeroSeat:    h.HeroSeat,
		MaxPosition: h.MaxPosition(),
		RunItTimes:  h.RunItTimes,
	}
	if h.Tourney != nil {
		row.TourneyID = h.Tourney.ID
	}
	var boards []BoardRow
	for _, b := range h.Boards {
		cards := strings.Join(b.Cards, " ")
		if row.BoardCards == "" {
			row.BoardCards = cards
		}
		boards = append(boards, BoardRow{HandID: h.DBIDHands, BoardNo: b.BoardNo, Cards: cards})
	}
	return p.StoreHand(ctx, row, boards, doInsert)
}

func (h *Hand) tourneyTypeID() int64 {
	if h.Tourney != nil {
		return h.Tourney.TypeID
	}
	return 0
}

// UpdateCardsCache buffers per-player starting-hand stat lines.
func (h *Hand) UpdateCardsCache(ctx context.Context, p Persister, doInsert bool) error {
	var cs []CardsContrib
	for _, pl := range h.Players {
		cs = append(cs, CardsContrib{
			HandID:        h.DBIDHands,
			GametypeID:    h.GametypeID,
			TourneyTypeID: h.tourneyTypeID(),
			PlayerID:      pl.ID,
			StartCards:    pl.StartCards,
			Line:          pl.Stats,
		})
	}
	return p.UpdateCardsCache(ctx, cs, doInsert)
}

// UpdatePositionsCache buffers per-player positional stat lines.
func (h *Hand) UpdatePositionsCache(ctx context.Context, p Persister, doInsert bool) error {
	maxPos := h.MaxPosition()
	var cs []PositionsContrib
	for _, pl := range h.Players {
		cs = append(cs, PositionsContrib{
			HandID:        h.DBIDHands,
			GametypeID:    h.GametypeID,
			TourneyTypeID: h.tourneyTypeID(),
			PlayerID:      pl.ID,
			Seats:         len(h.Players),
			MaxPosition:   maxPos,
			Position:      pl.Position,
			Line:          pl.Stats,
		})
	}
	return p.UpdatePositionsCache(ctx, cs, doInsert)
}

// UpdateHudCache buffers per-player HUD stat lines bucketed by day.
func (h *Hand) UpdateHudCache(ctx context.Context, p Persister, doInsert bool) error {
	var cs []HudContrib
	for _, pl := range h.Players {
		cs = append(cs, HudContrib{
			HandID:        h.DBIDHands,
			GametypeID:    h.GametypeID,
			TourneyTypeID: h.tourneyTypeID(),
			PlayerID:      pl.ID,
			Seats:         len(h.Players),
			Position:      pl.Position,
			StartTime:     h.StartTime,
			Line:          pl.Stats,
		})
	}
	return p.UpdateHudCache(ctx, cs, doInsert)
}

// UpdateTourneyResults pushes rank/winnings/knockout updates for tour hands.
func (h *Hand) UpdateTourneyResults(ctx context.Context, p Persister) error {
	if h.Tourney == nil {
		return nil
	}
	return p.UpdateTourneyResults(ctx, h.Tourney)
}

// InsertHandsPlayers buffers the per-seat rows.
func (h *Hand) InsertHandsPlayers(ctx context.Context, p Persister, doInsert bool) error {
	var rows []HandsPlayerRow
	for _, pl := range h.Players {
		r := HandsPlayerRow{
			HandID:      h.DBIDHands,
			PlayerID:    pl.ID,
			Seat:        pl.Seat,
			StartStack:  pl.StartStack,
			Position:    pl.Position,
			StartCards:  pl.StartCards,
			Cards:       strings.Join(pl.Cards, " "),
			Winnings:    pl.Winnings,
			Rake:        pl.Rake,
			TotalProfit: pl.TotalProfit,
			Stats:       pl.Stats,
		}
		if h.Tourney != nil {
			r.TourneysPlayerID = h.Tourney.PlayerIDs[pl.Name]
		}
		rows = append(rows, r)
	}
	return p.StoreHandsPlayers(ctx, rows, doInsert)
}

// InsertHandsActions buffers the action rows in yield order.
func (h *Hand) InsertHandsActions(ctx context.Context, p Persister, doInsert bool) error {
	byName := make(map[string]int64, len(h.Players))
	for _, pl := range h.Players {
		byName[pl.Name] = pl.ID
	}
	var rows []HandsActionRow
	for i, a := range h.Actions {
		rows = append(rows, HandsActionRow{
			HandID:   h.DBIDHands,
			PlayerID: byName[a.Player],
			Street:   a.Street,
			ActionNo: i,
			Action:   a.Type.String(),
			Amount:   a.Amount,
		})
	}
	return p.StoreHandsActions(ctx, rows, doInsert)
}

// InsertHandsStove buffers showdown hand-strength rows for players whose
// cards are known against a complete board.
func (h *Hand) InsertHandsStove(ctx context.Context, p Persister, doInsert bool) error {
	rows := h.stoveRows()
	return p.StoreHandsStove(ctx, rows, doInsert)
}

// InsertHandsPots buffers one pot row per collection, in seat order: the main
// pot first, side pots after it.
func (h *Hand) InsertHandsPots(ctx context.Context, p Persister, doInsert bool) error {
	var rows []PotRow
	for _, pl := range h.Players {
		if pl.Winnings == 0 {
			continue
		}
		rows = append(rows, PotRow{HandID: h.DBIDHands, PotNo: len(rows), Amount: pl.Winnings})
	}
	return p.StoreHandsPots(ctx, rows, doInsert)
}
