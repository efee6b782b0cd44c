package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"handvault/internal/hand"
)

// Additive cache flush: buffered contributions are merged by natural key,
// then each key is looked up against the persisted row — increment when it
// exists, batch-insert otherwise. Contributions keyed by a superseded
// tourney type or week/month bucket are dropped when bulk optimization is
// on; the cleanup passes rebuild those rows from the raw tables.

type hudKey struct {
	GametypeID    int64
	PlayerID      int64
	Seats         int
	Position      string
	TourneyTypeID int64
	StyleKey      string
}

type cardsKey struct {
	WeekID        int64
	MonthID       int64
	GametypeID    int64
	TourneyTypeID int64
	PlayerID      int64
	StartCards    int
}

type positionsKey struct {
	WeekID        int64
	MonthID       int64
	GametypeID    int64
	TourneyTypeID int64
	PlayerID      int64
	Seats         int
	MaxPosition   int
	Position      string
}

// styleKey buckets a hand start into the HudCache day partition, shifted by
// the configured day-start offset.
func (s *Store) styleKey(t time.Time) string {
	return "d" + t.UTC().Add(s.o.DayStartOffset).Format("060102")
}

func (s *Store) suppressTT(ttID int64) bool {
	if !s.o.BulkOptimized || ttID == 0 {
		return false
	}
	if _, ok := s.ttOld[ttID]; ok {
		return true
	}
	_, ok := s.ttNew[ttID]
	return ok
}

func (s *Store) suppressWM(wm weekMonth) bool {
	if !s.o.BulkOptimized {
		return false
	}
	if _, ok := s.wmOld[wm]; ok {
		return true
	}
	_, ok := s.wmNew[wm]
	return ok
}

// UpdateHudCache buffers HUD contributions; doInsert flushes the cache.
func (s *Store) UpdateHudCache(ctx context.Context, cs []hand.HudContrib, doInsert bool) error {
	s.batch.hud = append(s.batch.hud, cs...)
	if !doInsert {
		return nil
	}
	return s.flushHudCache(ctx)
}

func (s *Store) flushHudCache(ctx context.Context) error {
	merged := make(map[hudKey]*hand.StatLine)
	order := make([]hudKey, 0, len(s.batch.hud))
	for _, c := range s.batch.hud {
		if s.suppressTT(c.TourneyTypeID) {
			continue
		}
		k := hudKey{
			GametypeID:    c.GametypeID,
			PlayerID:      c.PlayerID,
			Seats:         c.Seats,
			Position:      c.Position,
			TourneyTypeID: c.TourneyTypeID,
			StyleKey:      s.styleKey(c.StartTime),
		}
		if line, ok := merged[k]; ok {
			line.Add(c.Line)
		} else {
			l := c.Line
			merged[k] = &l
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		s.batch.hud = nil
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insertStmt := fmt.Sprintf(`
			INSERT INTO HudCache (gametypeId, playerId, seats, position, tourneyTypeId, styleKey, %s)
			VALUES (?, ?, ?, ?, ?, ?%s)`,
			statCols(""), placeholders(int(hand.NumStats)))
		updateStmt := fmt.Sprintf(`
			UPDATE HudCache SET %s
			WHERE gametypeId = ? AND playerId = ? AND seats = ? AND position = ?
			  AND tourneyTypeId = ? AND styleKey = ?`, statSetClause())

		for _, k := range order {
			line := merged[k]
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM HudCache
				WHERE gametypeId = ? AND playerId = ? AND seats = ? AND position = ?
				  AND tourneyTypeId = ? AND styleKey = ?`,
				k.GametypeID, k.PlayerID, k.Seats, k.Position, k.TourneyTypeID, k.StyleKey).Scan(&id)
			switch {
			case err == nil:
				args := append(int64Args(line.Values()),
					k.GametypeID, k.PlayerID, k.Seats, k.Position, k.TourneyTypeID, k.StyleKey)
				if _, err := tx.ExecContext(ctx, updateStmt, args...); err != nil {
					return fmt.Errorf("update hud cache: %w", err)
				}
			case errors.Is(err, sql.ErrNoRows):
				args := append([]any{k.GametypeID, k.PlayerID, k.Seats, k.Position, k.TourneyTypeID, k.StyleKey},
					int64Args(line.Values())...)
				if _, err := tx.ExecContext(ctx, insertStmt, args...); err != nil {
					return fmt.Errorf("insert hud cache: %w", err)
				}
			default:
				return fmt.Errorf("lookup hud cache: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("flushed hud cache", "keys", len(order))
	s.batch.hud = nil
	return nil
}

// UpdateCardsCache buffers starting-hand contributions; doInsert flushes.
func (s *Store) UpdateCardsCache(ctx context.Context, cs []hand.CardsContrib, doInsert bool) error {
	s.batch.cards = append(s.batch.cards, cs...)
	if !doInsert {
		return nil
	}
	return s.flushCardsCache(ctx)
}

func (s *Store) flushCardsCache(ctx context.Context) error {
	merged := make(map[cardsKey]*hand.StatLine)
	order := make([]cardsKey, 0, len(s.batch.cards))
	for _, c := range s.batch.cards {
		ids, ok := s.sess.handSess[c.HandID]
		if !ok {
			slog.Warn("cards cache contribution without session mapping", "handId", c.HandID)
			continue
		}
		wm := weekMonth{WeekID: ids.WeekID, MonthID: ids.MonthID}
		if s.suppressTT(c.TourneyTypeID) || s.suppressWM(wm) {
			continue
		}
		k := cardsKey{
			WeekID:        ids.WeekID,
			MonthID:       ids.MonthID,
			GametypeID:    c.GametypeID,
			TourneyTypeID: c.TourneyTypeID,
			PlayerID:      c.PlayerID,
			StartCards:    c.StartCards,
		}
		if line, ok := merged[k]; ok {
			line.Add(c.Line)
		} else {
			l := c.Line
			merged[k] = &l
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		s.batch.cards = nil
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insertStmt := fmt.Sprintf(`
			INSERT INTO CardsCache (weekId, monthId, gametypeId, tourneyTypeId, playerId, startCards, %s)
			VALUES (?, ?, ?, ?, ?, ?%s)`,
			statCols(""), placeholders(int(hand.NumStats)))
		updateStmt := fmt.Sprintf(`
			UPDATE CardsCache SET %s
			WHERE weekId = ? AND monthId = ? AND gametypeId = ? AND tourneyTypeId = ?
			  AND playerId = ? AND startCards = ?`, statSetClause())

		for _, k := range order {
			line := merged[k]
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM CardsCache
				WHERE weekId = ? AND monthId = ? AND gametypeId = ? AND tourneyTypeId = ?
				  AND playerId = ? AND startCards = ?`,
				k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID, k.StartCards).Scan(&id)
			switch {
			case err == nil:
				args := append(int64Args(line.Values()),
					k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID, k.StartCards)
				if _, err := tx.ExecContext(ctx, updateStmt, args...); err != nil {
					return fmt.Errorf("update cards cache: %w", err)
				}
			case errors.Is(err, sql.ErrNoRows):
				args := append([]any{k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID, k.StartCards},
					int64Args(line.Values())...)
				if _, err := tx.ExecContext(ctx, insertStmt, args...); err != nil {
					return fmt.Errorf("insert cards cache: %w", err)
				}
			default:
				return fmt.Errorf("lookup cards cache: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.batch.cards = nil
	return nil
}

// UpdatePositionsCache buffers positional contributions; doInsert flushes.
func (s *Store) UpdatePositionsCache(ctx context.Context, cs []hand.PositionsContrib, doInsert bool) error {
	s.batch.positions = append(s.batch.positions, cs...)
	if !doInsert {
		return nil
	}
	return s.flushPositionsCache(ctx)
}

func (s *Store) flushPositionsCache(ctx context.Context) error {
	merged := make(map[positionsKey]*hand.StatLine)
	order := make([]positionsKey, 0, len(s.batch.positions))
	for _, c := range s.batch.positions {
		ids, ok := s.sess.handSess[c.HandID]
		if !ok {
			slog.Warn("positions cache contribution without session mapping", "handId", c.HandID)
			continue
		}
		wm := weekMonth{WeekID: ids.WeekID, MonthID: ids.MonthID}
		if s.suppressTT(c.TourneyTypeID) || s.suppressWM(wm) {
			continue
		}
		k := positionsKey{
			WeekID:        ids.WeekID,
			MonthID:       ids.MonthID,
			GametypeID:    c.GametypeID,
			TourneyTypeID: c.TourneyTypeID,
			PlayerID:      c.PlayerID,
			Seats:         c.Seats,
			MaxPosition:   c.MaxPosition,
			Position:      c.Position,
		}
		if line, ok := merged[k]; ok {
			line.Add(c.Line)
		} else {
			l := c.Line
			merged[k] = &l
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		s.batch.positions = nil
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insertStmt := fmt.Sprintf(`
			INSERT INTO PositionsCache
				(weekId, monthId, gametypeId, tourneyTypeId, playerId, seats, maxPosition, position, %s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?%s)`,
			statCols(""), placeholders(int(hand.NumStats)))
		updateStmt := fmt.Sprintf(`
			UPDATE PositionsCache SET %s
			WHERE weekId = ? AND monthId = ? AND gametypeId = ? AND tourneyTypeId = ?
			  AND playerId = ? AND seats = ? AND maxPosition = ? AND position = ?`, statSetClause())

		for _, k := range order {
			line := merged[k]
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM PositionsCache
				WHERE weekId = ? AND monthId = ? AND gametypeId = ? AND tourneyTypeId = ?
				  AND playerId = ? AND seats = ? AND maxPosition = ? AND position = ?`,
				k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID,
				k.Seats, k.MaxPosition, k.Position).Scan(&id)
			switch {
			case err == nil:
				args := append(int64Args(line.Values()),
					k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID,
					k.Seats, k.MaxPosition, k.Position)
				if _, err := tx.ExecContext(ctx, updateStmt, args...); err != nil {
					return fmt.Errorf("update positions cache: %w", err)
				}
			case errors.Is(err, sql.ErrNoRows):
				args := append([]any{k.WeekID, k.MonthID, k.GametypeID, k.TourneyTypeID, k.PlayerID,
					k.Seats, k.MaxPosition, k.Position}, int64Args(line.Values())...)
				if _, err := tx.ExecContext(ctx, insertStmt, args...); err != nil {
					return fmt.Errorf("insert positions cache: %w", err)
				}
			default:
				return fmt.Errorf("lookup positions cache: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.batch.positions = nil
	return nil
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func int64Args(vals []int64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
