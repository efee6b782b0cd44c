package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"handvault/internal/hand"
)

type dupKey struct {
	SiteID     int64
	SiteHandNo string
	HeroSeat   int
}

func (s *Store) dupKeyFor(siteID int64, siteHandNo string, heroSeat int) dupKey {
	k := dupKey{SiteID: siteID, SiteHandNo: siteHandNo}
	if s.o.PublicDB {
		k.HeroSeat = heroSeat
	}
	return k
}

// CheckDuplicate returns hand.ErrDuplicate when the identity tuple is
// already known, either from this run's seen-set or the persisted store.
// It is a pure read-check: store errors degrade to "not duplicate".
func (s *Store) CheckDuplicate(ctx context.Context, siteID int64, siteHandNo string, heroSeat int) error {
	k := s.dupKeyFor(siteID, siteHandNo, heroSeat)
	if _, ok := s.seen[k]; ok {
		return hand.ErrDuplicate
	}
	s.seen[k] = struct{}{}

	var id int64
	var err error
	if s.o.PublicDB {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM Hands WHERE siteHandNo = ? AND siteId = ? AND heroSeat = ?`,
			siteHandNo, siteID, heroSeat).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM Hands WHERE siteHandNo = ? AND siteId = ?`,
			siteHandNo, siteID).Scan(&id)
	}
	switch {
	case err == nil:
		return hand.ErrDuplicate
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		slog.Warn("duplicate check failed, treating as new", "siteHandNo", siteHandNo, "err", err)
		return nil
	}
}

// NextHandID claims the next hand id in batch order. Ids increment
// deterministically per hand from the current table maximum.
func (s *Store) NextHandID(ctx context.Context) (int64, error) {
	if s.lastHandID == 0 {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM Hands`).Scan(&max); err != nil {
			return 0, err
		}
		s.lastHandID = max.Int64
	}
	s.lastHandID += s.o.HandInc
	return s.lastHandID, nil
}
