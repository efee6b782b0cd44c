package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"handvault/internal/hand"
)

// batch is the per-parser-batch transaction log. Every pending row and every
// additive cache contribution is tagged with its owning hand id so Discard
// can remove one hand's work as a unit, making the backtrack procedure a
// first-class operation.
type batch struct {
	hands   []*hand.HandRow
	boards  []hand.BoardRow
	players []hand.HandsPlayerRow
	actions []hand.HandsActionRow
	stove   []hand.StoveRow
	pots    []hand.PotRow

	hud       []hand.HudContrib
	cards     []hand.CardsContrib
	positions []hand.PositionsContrib
}

func newBatch() *batch {
	return &batch{}
}

// Discard removes every pending entry owned by handID across all buffers.
func (b *batch) Discard(handID int64) {
	b.hands = filterSlice(b.hands, func(r *hand.HandRow) bool { return r.ID != handID })
	b.boards = filterSlice(b.boards, func(r hand.BoardRow) bool { return r.HandID != handID })
	b.players = filterSlice(b.players, func(r hand.HandsPlayerRow) bool { return r.HandID != handID })
	b.actions = filterSlice(b.actions, func(r hand.HandsActionRow) bool { return r.HandID != handID })
	b.stove = filterSlice(b.stove, func(r hand.StoveRow) bool { return r.HandID != handID })
	b.pots = filterSlice(b.pots, func(r hand.PotRow) bool { return r.HandID != handID })
	b.hud = filterSlice(b.hud, func(c hand.HudContrib) bool { return c.HandID != handID })
	b.cards = filterSlice(b.cards, func(c hand.CardsContrib) bool { return c.HandID != handID })
	b.positions = filterSlice(b.positions, func(c hand.PositionsContrib) bool { return c.HandID != handID })
}

// PendingFor counts pending entries owned by handID across all buffers.
func (b *batch) PendingFor(handID int64) int {
	n := 0
	for _, r := range b.hands {
		if r.ID == handID {
			n++
		}
	}
	for _, r := range b.boards {
		if r.HandID == handID {
			n++
		}
	}
	for _, r := range b.players {
		if r.HandID == handID {
			n++
		}
	}
	for _, r := range b.actions {
		if r.HandID == handID {
			n++
		}
	}
	for _, r := range b.stove {
		if r.HandID == handID {
			n++
		}
	}
	for _, r := range b.pots {
		if r.HandID == handID {
			n++
		}
	}
	for _, c := range b.hud {
		if c.HandID == handID {
			n++
		}
	}
	for _, c := range b.cards {
		if c.HandID == handID {
			n++
		}
	}
	for _, c := range b.positions {
		if c.HandID == handID {
			n++
		}
	}
	return n
}

func filterSlice[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	// Zero the tail so discarded entries do not linger.
	var zero T
	for i := len(out); i < len(in); i++ {
		in[i] = zero
	}
	return out
}

// Discard removes a hand's pending contributions from every bulk buffer,
// including the session engine's.
func (s *Store) Discard(handID int64) {
	s.batch.Discard(handID)
	s.sess.discard(handID)
}

// StoreHand buffers the Hands row and board rows; on doInsert the whole
// buffer is flushed with session ids patched in.
func (s *Store) StoreHand(ctx context.Context, row *hand.HandRow, boards []hand.BoardRow, doInsert bool) error {
	s.batch.hands = append(s.batch.hands, row)
	s.batch.boards = append(s.batch.boards, boards...)
	if !doInsert {
		return nil
	}
	return s.flushHands(ctx)
}

func (s *Store) flushHands(ctx context.Context) error {
	s.appendHandsSessionIDs()
	rows := s.batch.hands
	boards := s.batch.boards
	if len(rows) == 0 && len(boards) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO Hands
					(id, siteHandNo, siteId, fileId, gametypeId, sessionId, tourneyId,
					 startTime, importTime, tableName, seats, maxSeats, buttonSeat,
					 heroSeat, maxPosition, boardCards, runItTimes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.SiteHandNo, r.SiteID, r.FileID, r.GametypeID,
				nullIfZero(r.SessionID), nullIfZero(r.TourneyID),
				fmtTime(r.StartTime), fmtTime(r.ImportTime), r.TableName,
				r.Seats, r.MaxSeats, r.ButtonSeat, r.HeroSeat, r.MaxPosition,
				r.BoardCards, r.RunItTimes); err != nil {
				return fmt.Errorf("insert hand %d: %w", r.ID, err)
			}
		}
		for _, b := range boards {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO Boards (handId, boardId, cards) VALUES (?, ?, ?)`,
				b.HandID, b.BoardNo, b.Cards); err != nil {
				return fmt.Errorf("insert board for hand %d: %w", b.HandID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("flushed hands", "hands", len(rows), "boards", len(boards))
	s.batch.hands = nil
	s.batch.boards = nil
	return nil
}

// appendHandsSessionIDs patches the session id assigned by the session
// engine into each buffered Hands row before the flush.
func (s *Store) appendHandsSessionIDs() {
	for _, r := range s.batch.hands {
		if ids, ok := s.sess.handSess[r.ID]; ok {
			r.SessionID = ids.SessionID
		}
	}
}

// StoreHandsPlayers buffers per-seat rows; doInsert flushes the buffer.
func (s *Store) StoreHandsPlayers(ctx context.Context, rows []hand.HandsPlayerRow, doInsert bool) error {
	s.batch.players = append(s.batch.players, rows...)
	if !doInsert {
		return nil
	}
	return s.flushHandsPlayers(ctx)
}

func (s *Store) flushHandsPlayers(ctx context.Context) error {
	rows := s.batch.players
	if len(rows) == 0 {
		return nil
	}
	// Per-hand stat columns, minus the aggregate-only count column.
	cols := hand.StatColumns[1:]
	colList := strings.Join(cols[:len(cols)-2], ", ") // stats without totalProfit/rake
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt := fmt.Sprintf(`
			INSERT INTO HandsPlayers
				(handId, playerId, tourneysPlayersId, seatNo, startStack, position,
				 startCards, cards, winnings, rake, totalProfit, %s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?%s)`,
			colList, strings.Repeat(", ?", len(cols)-2))
		for _, r := range rows {
			args := []any{
				r.HandID, r.PlayerID, nullIfZero(r.TourneysPlayerID), r.Seat,
				r.StartStack, r.Position, r.StartCards, r.Cards,
				r.Winnings, r.Rake, r.TotalProfit,
			}
			// Stats between n and totalProfit, in column order.
			for i := 1; i < int(hand.NumStats)-2; i++ {
				args = append(args, r.Stats[i])
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("insert hands player for hand %d: %w", r.HandID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("flushed hands players", "rows", len(rows))
	s.batch.players = nil
	return nil
}

// StoreHandsActions buffers action rows; doInsert flushes the buffer.
func (s *Store) StoreHandsActions(ctx context.Context, rows []hand.HandsActionRow, doInsert bool) error {
	s.batch.actions = append(s.batch.actions, rows...)
	if !doInsert {
		return nil
	}
	return s.flushHandsActions(ctx)
}

func (s *Store) flushHandsActions(ctx context.Context) error {
	rows := s.batch.actions
	if len(rows) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO HandsActions (handId, playerId, street, actionNo, action, amount)
				VALUES (?, ?, ?, ?, ?, ?)`,
				r.HandID, r.PlayerID, int(r.Street), r.ActionNo, r.Action, r.Amount); err != nil {
				return fmt.Errorf("insert action for hand %d: %w", r.HandID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.batch.actions = nil
	return nil
}

// StoreHandsStove buffers showdown strength rows; doInsert flushes.
func (s *Store) StoreHandsStove(ctx context.Context, rows []hand.StoveRow, doInsert bool) error {
	s.batch.stove = append(s.batch.stove, rows...)
	if !doInsert {
		return nil
	}
	return s.flushHandsStove(ctx)
}

func (s *Store) flushHandsStove(ctx context.Context) error {
	rows := s.batch.stove
	if len(rows) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO HandsStove (handId, playerId, boardId, rankId, rankName)
				VALUES (?, ?, ?, ?, ?)`,
				r.HandID, r.PlayerID, r.BoardNo, r.Rank, r.RankName); err != nil {
				return fmt.Errorf("insert stove for hand %d: %w", r.HandID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.batch.stove = nil
	return nil
}

// StoreHandsPots buffers pot collection rows; doInsert flushes.
func (s *Store) StoreHandsPots(ctx context.Context, rows []hand.PotRow, doInsert bool) error {
	s.batch.pots = append(s.batch.pots, rows...)
	if !doInsert {
		return nil
	}
	return s.flushHandsPots(ctx)
}

func (s *Store) flushHandsPots(ctx context.Context) error {
	rows := s.batch.pots
	if len(rows) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO HandsPots (handId, potId, amount)
				VALUES (?, ?, ?)`,
				r.HandID, r.PotNo, r.Amount); err != nil {
				return fmt.Errorf("insert pot for hand %d: %w", r.HandID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.batch.pots = nil
	return nil
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
