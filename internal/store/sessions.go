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

// The session merge engine clusters hands into contiguous play windows
// bounded by the configured inactivity timeout. Candidates live in memory
// until the flush reconciles them against persisted Sessions rows with the
// same three-way logic used in memory: no match inserts, one match widens
// (never narrows), several matches merge into one row and delete the rest.

type sessHand struct {
	ID    int64
	Start time.Time
}

type sessionCandidate struct {
	start    time.Time
	end      time.Time
	hands    []sessHand
	tourneys []int64
}

type sessionIDs struct {
	SessionID int64
	WeekID    int64
	MonthID   int64
}

type scContrib struct {
	HandID     int64
	GametypeID int64
	PlayerID   int64
	Line       hand.StatLine
}

type tcContrib struct {
	HandID    int64
	TourneyID int64
	PlayerID  int64
	Line      hand.StatLine
}

type sessionState struct {
	candidates []*sessionCandidate
	sc         []scContrib
	tc         []tcContrib
	// handSess maps each flushed hand to its persisted session and calendar
	// buckets, consumed by the Hands flush and the week/month-scoped caches.
	handSess map[int64]sessionIDs
	// tourneySess records tourneyId -> sessionId assignments made at flush.
	tourneySess map[int64]int64
}

func newSessionState() *sessionState {
	return &sessionState{
		handSess:    make(map[int64]sessionIDs),
		tourneySess: make(map[int64]int64),
	}
}

func (st *sessionState) discard(handID int64) {
	for i := 0; i < len(st.candidates); i++ {
		c := st.candidates[i]
		c.hands = filterSlice(c.hands, func(h sessHand) bool { return h.ID != handID })
		if len(c.hands) == 0 && len(c.tourneys) == 0 {
			st.candidates = append(st.candidates[:i], st.candidates[i+1:]...)
			i--
			continue
		}
		c.recomputeBounds()
	}
	st.sc = filterSlice(st.sc, func(c scContrib) bool { return c.HandID != handID })
	st.tc = filterSlice(st.tc, func(c tcContrib) bool { return c.HandID != handID })
	delete(st.handSess, handID)
}

func (c *sessionCandidate) recomputeBounds() {
	if len(c.hands) == 0 {
		return
	}
	c.start, c.end = c.hands[0].Start, c.hands[0].Start
	for _, h := range c.hands[1:] {
		if h.Start.Before(c.start) {
			c.start = h.Start
		}
		if h.Start.After(c.end) {
			c.end = h.Start
		}
	}
}

func (c *sessionCandidate) overlaps(t time.Time, timeout time.Duration) bool {
	return !t.Before(c.start.Add(-timeout)) && !t.After(c.end.Add(timeout))
}

func (c *sessionCandidate) absorb(o *sessionCandidate) {
	c.hands = append(c.hands, o.hands...)
	c.tourneys = append(c.tourneys, o.tourneys...)
	if o.start.Before(c.start) {
		c.start = o.start
	}
	if o.end.After(c.end) {
		c.end = o.end
	}
}

// UpdateSessionsCache feeds one hand into the merge engine and buffers its
// SessionsCache or TourneysCache stat lines; doInsert reconciles everything
// against the persisted store.
func (s *Store) UpdateSessionsCache(ctx context.Context, u *hand.SessionUpdate, doInsert bool) error {
	timeout := s.o.SessionTimeout
	var matched []*sessionCandidate
	for _, c := range s.sess.candidates {
		if c.overlaps(u.StartTime, timeout) {
			matched = append(matched, c)
		}
	}

	var target *sessionCandidate
	switch len(matched) {
	case 0:
		target = &sessionCandidate{start: u.StartTime, end: u.StartTime}
		s.sess.candidates = append(s.sess.candidates, target)
	case 1:
		target = matched[0]
		if u.StartTime.Before(target.start) {
			target.start = u.StartTime
		}
		if u.StartTime.After(target.end) {
			target.end = u.StartTime
		}
	default:
		// The hand bridges several candidates; merge them into the first.
		target = matched[0]
		drop := make(map[*sessionCandidate]bool)
		for _, o := range matched[1:] {
			target.absorb(o)
			drop[o] = true
		}
		kept := s.sess.candidates[:0]
		for _, c := range s.sess.candidates {
			if !drop[c] {
				kept = append(kept, c)
			}
		}
		s.sess.candidates = kept
		if u.StartTime.Before(target.start) {
			target.start = u.StartTime
		}
		if u.StartTime.After(target.end) {
			target.end = u.StartTime
		}
	}
	target.hands = append(target.hands, sessHand{ID: u.HandID, Start: u.StartTime})
	if u.TourneyID != 0 && !containsInt64(target.tourneys, u.TourneyID) {
		target.tourneys = append(target.tourneys, u.TourneyID)
	}

	for _, pc := range u.Players {
		if u.Type == "tour" && u.TourneyID != 0 {
			s.sess.tc = append(s.sess.tc, tcContrib{
				HandID: u.HandID, TourneyID: u.TourneyID, PlayerID: pc.PlayerID, Line: pc.Line,
			})
		} else {
			s.sess.sc = append(s.sess.sc, scContrib{
				HandID: u.HandID, GametypeID: u.GametypeID, PlayerID: pc.PlayerID, Line: pc.Line,
			})
		}
	}

	if !doInsert {
		return nil
	}
	return s.flushSessions(ctx)
}

func (s *Store) flushSessions(ctx context.Context) error {
	for _, c := range s.sess.candidates {
		if err := s.reconcileCandidate(ctx, c); err != nil {
			return err
		}
	}
	s.sess.candidates = nil

	if err := s.flushSessionsCache(ctx); err != nil {
		return err
	}
	if err := s.flushTourneysCache(ctx); err != nil {
		return err
	}

	// Point tourneys at their sessions.
	for tid, sid := range s.sess.tourneySess {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE Tourneys SET sessionId = ? WHERE id = ?`, sid, tid); err != nil {
			return fmt.Errorf("link tourney %d to session: %w", tid, err)
		}
	}
	s.sess.tourneySess = make(map[int64]int64)
	return nil
}

// reconcileCandidate applies the in-memory three-way logic against the
// persisted Sessions table and maps every member hand to the result.
func (s *Store) reconcileCandidate(ctx context.Context, c *sessionCandidate) error {
	timeout := s.o.SessionTimeout
	lo := fmtTime(c.start.Add(-timeout))
	hi := fmtTime(c.end.Add(timeout))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, weekId, monthId, sessionStart, sessionEnd
		FROM Sessions WHERE sessionEnd >= ? AND sessionStart <= ?
		ORDER BY sessionStart`, lo, hi)
	if err != nil {
		return fmt.Errorf("query overlapping sessions: %w", err)
	}
	type dbSess struct {
		id, weekID, monthID int64
		start, end          time.Time
	}
	var found []dbSess
	for rows.Next() {
		var d dbSess
		var st, en string
		if err := rows.Scan(&d.id, &d.weekID, &d.monthID, &st, &en); err != nil {
			rows.Close()
			return err
		}
		d.start, d.end = parseTime(st), parseTime(en)
		found = append(found, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var ids sessionIDs
	switch len(found) {
	case 0:
		wid, mid, err := s.weekMonthIDs(ctx, c.start)
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO Sessions (weekId, monthId, sessionStart, sessionEnd)
			VALUES (?, ?, ?, ?)`, wid, mid, fmtTime(c.start), fmtTime(c.end))
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		sid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ids = sessionIDs{SessionID: sid, WeekID: wid, MonthID: mid}

	case 1:
		d := found[0]
		ids = sessionIDs{SessionID: d.id, WeekID: d.weekID, MonthID: d.monthID}
		newStart, newEnd := d.start, d.end
		if c.start.Before(newStart) {
			newStart = c.start
		}
		if c.end.After(newEnd) {
			newEnd = c.end
		}
		if !newStart.Equal(d.start) || !newEnd.Equal(d.end) {
			wid, mid, err := s.weekMonthIDs(ctx, newStart)
			if err != nil {
				return err
			}
			if wid != d.weekID || mid != d.monthID {
				// Start moved backward across a bucket boundary; dependent
				// cache rows keyed by either bucket are stale.
				s.wmOld[weekMonth{WeekID: d.weekID, MonthID: d.monthID}] = struct{}{}
				s.wmNew[weekMonth{WeekID: wid, MonthID: mid}] = struct{}{}
				ids.WeekID, ids.MonthID = wid, mid
			}
			if _, err := s.db.ExecContext(ctx, `
				UPDATE Sessions SET weekId = ?, monthId = ?, sessionStart = ?, sessionEnd = ?
				WHERE id = ?`, ids.WeekID, ids.MonthID, fmtTime(newStart), fmtTime(newEnd), d.id); err != nil {
				return fmt.Errorf("widen session %d: %w", d.id, err)
			}
		}

	default:
		// The candidate bridges several persisted sessions: insert the
		// union, repoint every referencing row, delete the merged ones.
		start, end := c.start, c.end
		oldIDs := make([]int64, 0, len(found))
		for _, d := range found {
			if d.start.Before(start) {
				start = d.start
			}
			if d.end.After(end) {
				end = d.end
			}
			oldIDs = append(oldIDs, d.id)
		}
		wid, mid, err := s.weekMonthIDs(ctx, start)
		if err != nil {
			return err
		}
		err = s.withTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO Sessions (weekId, monthId, sessionStart, sessionEnd)
				VALUES (?, ?, ?, ?)`, wid, mid, fmtTime(start), fmtTime(end))
			if err != nil {
				return fmt.Errorf("insert merged session: %w", err)
			}
			sid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			in := inClause(len(oldIDs))
			args := append([]any{sid}, int64Args(oldIDs)...)
			for _, table := range []string{"Hands", "Tourneys"} {
				stmt := fmt.Sprintf(`UPDATE %s SET sessionId = ? WHERE sessionId IN (%s)`, table, in)
				if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
					return fmt.Errorf("repoint %s: %w", table, err)
				}
			}
			// Cache rows carry a UNIQUE key per session, so a player seen in
			// more than one merged session cannot be repointed row by row:
			// collapse the old sessions' rows into one aggregated row per key
			// under the new id, then drop the originals.
			for _, cache := range []struct{ table, key string }{
				{"SessionsCache", "gametypeId"},
				{"TourneysCache", "tourneyId"},
			} {
				agg := fmt.Sprintf(`
					INSERT INTO %s (sessionId, %s, playerId, %s)
					SELECT ?, %s, playerId, %s
					FROM %s WHERE sessionId IN (%s)
					GROUP BY %s, playerId`,
					cache.table, cache.key, statCols(""), cache.key, statSumCols(),
					cache.table, in, cache.key)
				if _, err := tx.ExecContext(ctx, agg, args...); err != nil {
					return fmt.Errorf("aggregate %s: %w", cache.table, err)
				}
				del := fmt.Sprintf(`DELETE FROM %s WHERE sessionId IN (%s)`, cache.table, in)
				if _, err := tx.ExecContext(ctx, del, int64Args(oldIDs)...); err != nil {
					return fmt.Errorf("drop merged %s rows: %w", cache.table, err)
				}
			}
			delStmt := fmt.Sprintf(`DELETE FROM Sessions WHERE id IN (%s)`, in)
			if _, err := tx.ExecContext(ctx, delStmt, int64Args(oldIDs)...); err != nil {
				return fmt.Errorf("delete merged sessions: %w", err)
			}
			ids = sessionIDs{SessionID: sid, WeekID: wid, MonthID: mid}
			for _, d := range found {
				s.wmOld[weekMonth{WeekID: d.weekID, MonthID: d.monthID}] = struct{}{}
			}
			s.wmNew[weekMonth{WeekID: wid, MonthID: mid}] = struct{}{}
			return nil
		})
		if err != nil {
			return err
		}
		slog.Debug("merged sessions", "old", oldIDs, "new", ids.SessionID)
	}

	for _, h := range c.hands {
		s.sess.handSess[h.ID] = ids
	}
	for _, tid := range c.tourneys {
		s.sess.tourneySess[tid] = ids.SessionID
	}
	return nil
}

// weekMonthIDs looks up or inserts the calendar bucket rows for t. Weeks
// start on Monday, months on the first, both in the configured day-start
// offset.
func (s *Store) weekMonthIDs(ctx context.Context, t time.Time) (int64, int64, error) {
	local := t.UTC().Add(s.o.DayStartOffset)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	weekday := (int(day.Weekday()) + 6) % 7 // Monday = 0
	weekStart := day.AddDate(0, 0, -weekday).Format(dateFmt)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).Format(dateFmt)

	wid, err := s.bucketID(ctx, "Weeks", "weekStart", weekStart)
	if err != nil {
		return 0, 0, err
	}
	mid, err := s.bucketID(ctx, "Months", "monthStart", monthStart)
	if err != nil {
		return 0, 0, err
	}
	return wid, mid, nil
}

func (s *Store) bucketID(ctx context.Context, table, col, val string) (int64, error) {
	var id int64
	q := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, table, col)
	err := s.db.QueryRowContext(ctx, q, val).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}
	ins := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`, table, col)
	res, err := s.db.ExecContext(ctx, ins, val)
	if err != nil {
		return 0, fmt.Errorf("insert %s %s: %w", table, val, err)
	}
	return res.LastInsertId()
}

func (s *Store) flushSessionsCache(ctx context.Context) error {
	type key struct {
		SessionID  int64
		GametypeID int64
		PlayerID   int64
	}
	merged := make(map[key]*hand.StatLine)
	var order []key
	for _, c := range s.sess.sc {
		ids, ok := s.sess.handSess[c.HandID]
		if !ok {
			continue
		}
		if s.suppressWM(weekMonth{WeekID: ids.WeekID, MonthID: ids.MonthID}) {
			continue
		}
		k := key{SessionID: ids.SessionID, GametypeID: c.GametypeID, PlayerID: c.PlayerID}
		if line, ok := merged[k]; ok {
			line.Add(c.Line)
		} else {
			l := c.Line
			merged[k] = &l
			order = append(order, k)
		}
	}
	s.sess.sc = nil
	if len(order) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		insertStmt := fmt.Sprintf(`
			INSERT INTO SessionsCache (sessionId, gametypeId, playerId, %s)
			VALUES (?, ?, ?%s)`, statCols(""), placeholders(int(hand.NumStats)))
		updateStmt := fmt.Sprintf(`
			UPDATE SessionsCache SET %s
			WHERE sessionId = ? AND gametypeId = ? AND playerId = ?`, statSetClause())
		for _, k := range order {
			line := merged[k]
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM SessionsCache
				WHERE sessionId = ? AND gametypeId = ? AND playerId = ?`,
				k.SessionID, k.GametypeID, k.PlayerID).Scan(&id)
			switch {
			case err == nil:
				args := append(int64Args(line.Values()), k.SessionID, k.GametypeID, k.PlayerID)
				if _, err := tx.ExecContext(ctx, updateStmt, args...); err != nil {
					return fmt.Errorf("update sessions cache: %w", err)
				}
			case errors.Is(err, sql.ErrNoRows):
				args := append([]any{k.SessionID, k.GametypeID, k.PlayerID}, int64Args(line.Values())...)
				if _, err := tx.ExecContext(ctx, insertStmt, args...); err != nil {
					return fmt.Errorf("insert sessions cache: %w", err)
				}
			default:
				return fmt.Errorf("lookup sessions cache: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) flushTourneysCache(ctx context.Context) error {
	type key struct {
		SessionID int64
		TourneyID int64
		PlayerID  int64
	}
	merged := make(map[key]*hand.StatLine)
	var order []key
	for _, c := range s.sess.tc {
		ids, ok := s.sess.handSess[c.HandID]
		if !ok {
			continue
		}
		if s.suppressWM(weekMonth{WeekID: ids.WeekID, MonthID: ids.MonthID}) {
			continue
		}
		k := key{SessionID: ids.SessionID, TourneyID: c.TourneyID, PlayerID: c.PlayerID}
		if line, ok := merged[k]; ok {
			line.Add(c.Line)
		} else {
			l := c.Line
			merged[k] = &l
			order = append(order, k)
		}
	}
	s.sess.tc = nil
	if len(order) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		insertStmt := fmt.Sprintf(`
			INSERT INTO TourneysCache (sessionId, tourneyId, playerId, %s)
			VALUES (?, ?, ?%s)`, statCols(""), placeholders(int(hand.NumStats)))
		updateStmt := fmt.Sprintf(`
			UPDATE TourneysCache SET %s
			WHERE sessionId = ? AND tourneyId = ? AND playerId = ?`, statSetClause())
		for _, k := range order {
			line := merged[k]
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM TourneysCache
				WHERE sessionId = ? AND tourneyId = ? AND playerId = ?`,
				k.SessionID, k.TourneyID, k.PlayerID).Scan(&id)
			switch {
			case err == nil:
				args := append(int64Args(line.Values()), k.SessionID, k.TourneyID, k.PlayerID)
				if _, err := tx.ExecContext(ctx, updateStmt, args...); err != nil {
					return fmt.Errorf("update tourneys cache: %w", err)
				}
			case errors.Is(err, sql.ErrNoRows):
				args := append([]any{k.SessionID, k.TourneyID, k.PlayerID}, int64Args(line.Values())...)
				if _, err := tx.ExecContext(ctx, insertStmt, args...); err != nil {
					return fmt.Errorf("insert tourneys cache: %w", err)
				}
			default:
				return fmt.Errorf("lookup tourneys cache: %w", err)
			}
		}
		return nil
	})
}

func containsInt64(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
