package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"handvault/internal/hand"
)

// Post-import cleanup. Cache rows keyed by superseded tourney type ids or
// week/month buckets were either suppressed at flush time or written before
// the supersession happened; these passes delete them and rebuild the
// affected aggregates from the raw Hands/HandsPlayers tables, then drop
// orphaned id rows.

// rebuildStatSelect builds the aggregate select list matching StatColumns:
// COUNT(*) for n, SUM over the per-hand columns for the rest.
func rebuildStatSelect() string {
	cols := make([]string, len(hand.StatColumns))
	cols[0] = "COUNT(*)"
	for i, c := range hand.StatColumns[1:] {
		cols[i+1] = fmt.Sprintf("SUM(hp.%s)", c)
	}
	return strings.Join(cols, ", ")
}

// styleKeyExpr is the sqlite expression matching Store.styleKey, with the
// day-start offset applied as a seconds modifier.
func (s *Store) styleKeyExpr() string {
	return fmt.Sprintf("'d' || strftime('%%y%%m%%d', h.startTime, '%+d seconds')",
		int64(s.o.DayStartOffset.Seconds()))
}

// CleanUpTourneyTypes deletes cache rows keyed by superseded tourney type
// ids, rebuilds aggregates for ids still in use, and drops types no tourney
// references anymore.
func (s *Store) CleanUpTourneyTypes(ctx context.Context) error {
	union := make(map[int64]struct{}, len(s.ttOld)+len(s.ttNew))
	for id := range s.ttOld {
		union[id] = struct{}{}
	}
	for id := range s.ttNew {
		union[id] = struct{}{}
	}
	for id := range union {
		for _, table := range []string{"HudCache", "CardsCache", "PositionsCache"} {
			stmt := fmt.Sprintf(`DELETE FROM %s WHERE tourneyTypeId = ?`, table)
			if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("clear %s for tourney type %d: %w", table, id, err)
			}
		}
	}
	for id := range union {
		if err := s.rebuildTourneyTypeCaches(ctx, id); err != nil {
			return err
		}
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM TourneyTypes
		WHERE id NOT IN (SELECT DISTINCT tourneyTypeId FROM Tourneys)`)
	if err != nil {
		return fmt.Errorf("delete orphan tourney types: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("deleted orphan tourney types", "count", n)
		s.tourneyTypes.Reset()
	}
	return nil
}

func (s *Store) rebuildTourneyTypeCaches(ctx context.Context, ttID int64) error {
	stats := rebuildStatSelect()

	hud := fmt.Sprintf(`
		INSERT INTO HudCache (gametypeId, playerId, seats, position, tourneyTypeId, styleKey, %s)
		SELECT h.gametypeId, hp.playerId, h.seats, hp.position, t.tourneyTypeId, %s, %s
		FROM HandsPlayers hp
		JOIN Hands h ON h.id = hp.handId
		JOIN Tourneys t ON t.id = h.tourneyId
		WHERE t.tourneyTypeId = ?
		GROUP BY h.gametypeId, hp.playerId, h.seats, hp.position, t.tourneyTypeId, %s`,
		statCols(""), s.styleKeyExpr(), stats, s.styleKeyExpr())
	if _, err := s.db.ExecContext(ctx, hud, ttID); err != nil {
		return fmt.Errorf("rebuild hud cache for tourney type %d: %w", ttID, err)
	}

	cards := fmt.Sprintf(`
		INSERT INTO CardsCache (weekId, monthId, gametypeId, tourneyTypeId, playerId, startCards, %s)
		SELECT s2.weekId, s2.monthId, h.gametypeId, t.tourneyTypeId, hp.playerId, hp.startCards, %s
		FROM HandsPlayers hp
		JOIN Hands h ON h.id = hp.handId
		JOIN Sessions s2 ON s2.id = h.sessionId
		JOIN Tourneys t ON t.id = h.tourneyId
		WHERE t.tourneyTypeId = ?
		GROUP BY s2.weekId, s2.monthId, h.gametypeId, t.tourneyTypeId, hp.playerId, hp.startCards`,
		statCols(""), stats)
	if _, err := s.db.ExecContext(ctx, cards, ttID); err != nil {
		return fmt.Errorf("rebuild cards cache for tourney type %d: %w", ttID, err)
	}

	positions := fmt.Sprintf(`
		INSERT INTO PositionsCache
			(weekId, monthId, gametypeId, tourneyTypeId, playerId, seats, maxPosition, position, %s)
		SELECT s2.weekId, s2.monthId, h.gametypeId, t.tourneyTypeId, hp.playerId, h.seats, h.maxPosition, hp.position, %s
		FROM HandsPlayers hp
		JOIN Hands h ON h.id = hp.handId
		JOIN Sessions s2 ON s2.id = h.sessionId
		JOIN Tourneys t ON t.id = h.tourneyId
		WHERE t.tourneyTypeId = ?
		GROUP BY s2.weekId, s2.monthId, h.gametypeId, t.tourneyTypeId, hp.playerId, h.seats, h.maxPosition, hp.position`,
		statCols(""), stats)
	if _, err := s.db.ExecContext(ctx, positions, ttID); err != nil {
		return fmt.Errorf("rebuild positions cache for tourney type %d: %w", ttID, err)
	}
	return nil
}

// CleanUpWeeksMonths deletes week/month-scoped cache rows for rebucketed
// sessions, rebuilds them, and drops calendar buckets nothing references.
func (s *Store) CleanUpWeeksMonths(ctx context.Context) error {
	union := make(map[weekMonth]struct{}, len(s.wmOld)+len(s.wmNew))
	for wm := range s.wmOld {
		union[wm] = struct{}{}
	}
	for wm := range s.wmNew {
		union[wm] = struct{}{}
	}
	for wm := range union {
		for _, table := range []string{"CardsCache", "PositionsCache"} {
			stmt := fmt.Sprintf(`DELETE FROM %s WHERE weekId = ? AND monthId = ?`, table)
			if _, err := s.db.ExecContext(ctx, stmt, wm.WeekID, wm.MonthID); err != nil {
				return fmt.Errorf("clear %s for bucket: %w", table, err)
			}
		}
	}
	for wm := range union {
		if err := s.rebuildWeekMonthCaches(ctx, wm); err != nil {
			return err
		}
	}

	for _, q := range []string{
		`DELETE FROM Weeks WHERE id NOT IN (SELECT DISTINCT weekId FROM Sessions)`,
		`DELETE FROM Months WHERE id NOT IN (SELECT DISTINCT monthId FROM Sessions)`,
	} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("delete orphan buckets: %w", err)
		}
	}
	return nil
}

func (s *Store) rebuildWeekMonthCaches(ctx context.Context, wm weekMonth) error {
	stats := rebuildStatSelect()

	cards := fmt.Sprintf(`
		INSERT INTO CardsCache (weekId, monthId, gametypeId, tourneyTypeId, playerId, startCards, %s)
		SELECT s2.weekId, s2.monthId, h.gametypeId, COALESCE(t.tourneyTypeId, 0), hp.playerId, hp.startCards, %s
		FROM HandsPlayers hp
		JOIN Hands h ON h.id = hp.handId
		JOIN Sessions s2 ON s2.id = h.sessionId
		LEFT JOIN Tourneys t ON t.id = h.tourneyId
		WHERE s2.weekId = ? AND s2.monthId = ?
		GROUP BY s2.weekId, s2.monthId, h.gametypeId, COALESCE(t.tourneyTypeId, 0), hp.playerId, hp.startCards`,
		statCols(""), stats)
	if _, err := s.db.ExecContext(ctx, cards, wm.WeekID, wm.MonthID); err != nil {
		return fmt.Errorf("rebuild cards cache for bucket: %w", err)
	}

	positions := fmt.Sprintf(`
		INSERT INTO PositionsCache
			(weekId, monthId, gametypeId, tourneyTypeId, playerId, seats, maxPosition, position, %s)
		SELECT s2.weekId, s2.monthId, h.gametypeId, COALESCE(t.tourneyTypeId, 0), hp.playerId, h.seats, h.maxPosition, hp.position, %s
		FROM HandsPlayers hp
		JOIN Hands h ON h.id = hp.handId
		JOIN Sessions s2 ON s2.id = h.sessionId
		LEFT JOIN Tourneys t ON t.id = h.tourneyId
		WHERE s2.weekId = ? AND s2.monthId = ?
		GROUP BY s2.weekId, s2.monthId, h.gametypeId, COALESCE(t.tourneyTypeId, 0), hp.playerId, h.seats, h.maxPosition, hp.position`,
		statCols(""), stats)
	if _, err := s.db.ExecContext(ctx, positions, wm.WeekID, wm.MonthID); err != nil {
		return fmt.Errorf("rebuild positions cache for bucket: %w", err)
	}
	return nil
}

// ResetClean clears the superseded-id tracking after the cleanup passes.
func (s *Store) ResetClean() {
	s.ttOld = make(map[int64]struct{})
	s.ttNew = make(map[int64]struct{})
	s.wmOld = make(map[weekMonth]struct{})
	s.wmNew = make(map[weekMonth]struct{})
}

// HasCleanupWork reports whether any superseded ids are pending cleanup.
func (s *Store) HasCleanupWork() bool {
	return len(s.ttOld)+len(s.ttNew)+len(s.wmOld)+len(s.wmNew) > 0
}
