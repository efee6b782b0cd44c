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

type tourneyTypeKey struct {
	SiteID   int64
	Currency string
	BuyIn    int64
	Fee      int64
	MaxSeats int
	Knockout bool
	KOBounty int64
	Rebuy    bool
	AddOn    bool
	Speed    string
}

func tourneyTypeKeyFor(t *hand.Tourney, siteID int64) tourneyTypeKey {
	return tourneyTypeKey{
		SiteID:   siteID,
		Currency: t.Currency,
		BuyIn:    t.BuyIn,
		Fee:      t.Fee,
		MaxSeats: t.MaxSeats,
		Knockout: t.IsKO,
		KOBounty: t.KOBounty,
		Rebuy:    t.IsRebuy,
		AddOn:    t.IsAddon,
		Speed:    t.Speed,
	}
}

func (s *Store) computeTourneyTypeID(ctx context.Context, k tourneyTypeKey) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM TourneyTypes
		WHERE siteId = ? AND currency = ? AND buyIn = ? AND fee = ? AND maxSeats = ?
		  AND knockout = ? AND koBounty = ? AND rebuy = ? AND addOn = ? AND speed = ?`,
		k.SiteID, k.Currency, k.BuyIn, k.Fee, k.MaxSeats,
		boolToInt(k.Knockout), k.KOBounty, boolToInt(k.Rebuy), boolToInt(k.AddOn), k.Speed).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup tourney type: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO TourneyTypes
			(siteId, currency, buyIn, fee, maxSeats, knockout, koBounty, rebuy, addOn, speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.SiteID, k.Currency, k.BuyIn, k.Fee, k.MaxSeats,
		boolToInt(k.Knockout), k.KOBounty, boolToInt(k.Rebuy), boolToInt(k.AddOn), k.Speed)
	if err != nil {
		return 0, fmt.Errorf("insert tourney type: %w", err)
	}
	return res.LastInsertId()
}

// ResolveTourney fills the tournament linkage ids on t: its tourney type
// (reconciling parsed fields against any persisted type, migrating the id
// when known values conflict), the Tourneys row (widening its time window),
// and one TourneysPlayers row per seated player.
func (s *Store) ResolveTourney(ctx context.Context, t *hand.Tourney, siteID int64, start time.Time, playerIDs map[string]int64) error {
	var tid, typeID int64
	var startStr, endStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tourneyTypeId, startTime, endTime FROM Tourneys
		WHERE siteId = ? AND siteTourneyNo = ?`,
		siteID, t.SiteTourneyNo).Scan(&tid, &typeID, &startStr, &endStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		typeID, err = s.tourneyTypes.Get(ctx, tourneyTypeKeyFor(t, siteID))
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO Tourneys (tourneyTypeId, siteId, siteTourneyNo, startTime, endTime)
			VALUES (?, ?, ?, ?, ?)`,
			typeID, siteID, t.SiteTourneyNo, fmtTime(start), fmtTime(start))
		if err != nil {
			return fmt.Errorf("insert tourney %s: %w", t.SiteTourneyNo, err)
		}
		tid, err = res.LastInsertId()
		if err != nil {
			return err
		}

	case err != nil:
		return fmt.Errorf("lookup tourney %s: %w", t.SiteTourneyNo, err)

	default:
		newTypeID, err := s.reconcileTourneyType(ctx, t, siteID, typeID)
		if err != nil {
			return err
		}
		if newTypeID != typeID {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE Tourneys SET tourneyTypeId = ? WHERE id = ?`, newTypeID, tid); err != nil {
				return fmt.Errorf("migrate tourney type: %w", err)
			}
			s.ttOld[typeID] = struct{}{}
			s.ttNew[newTypeID] = struct{}{}
			slog.Debug("tourney type migrated", "tourney", t.SiteTourneyNo, "old", typeID, "new", newTypeID)
			typeID = newTypeID
		}
		// Widen the tourney's time window, never narrow it.
		st, en := parseTime(startStr), parseTime(endStr)
		newSt, newEn := st, en
		if start.Before(newSt) {
			newSt = start
		}
		if start.After(newEn) {
			newEn = start
		}
		if !newSt.Equal(st) || !newEn.Equal(en) {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE Tourneys SET startTime = ?, endTime = ? WHERE id = ?`,
				fmtTime(newSt), fmtTime(newEn), tid); err != nil {
				return fmt.Errorf("widen tourney window: %w", err)
			}
		}
	}

	t.ID = tid
	t.TypeID = typeID

	if t.PlayerIDs == nil {
		t.PlayerIDs = make(map[string]int64)
	}
	for name, pid := range playerIDs {
		tpID, err := s.tourneysPlayerID(ctx, tid, pid, t.Currency)
		if err != nil {
			return err
		}
		t.PlayerIDs[name] = tpID
	}
	return nil
}

// reconcileTourneyType compares the persisted type row against the parsed
// fields. Fields unknown on one side are backfilled from the other; a
// conflict between known values selects (or creates) the type matching the
// merged descriptor.
func (s *Store) reconcileTourneyType(ctx context.Context, t *hand.Tourney, siteID, typeID int64) (int64, error) {
	var db tourneyTypeKey
	var ko, rebuy, addOn int
	err := s.db.QueryRowContext(ctx, `
		SELECT currency, buyIn, fee, maxSeats, knockout, koBounty, rebuy, addOn, speed
		FROM TourneyTypes WHERE id = ?`, typeID).Scan(
		&db.Currency, &db.BuyIn, &db.Fee, &db.MaxSeats, &ko, &db.KOBounty, &rebuy, &addOn, &db.Speed)
	if err != nil {
		return 0, fmt.Errorf("load tourney type %d: %w", typeID, err)
	}
	db.SiteID = siteID
	db.Knockout = ko != 0
	db.Rebuy = rebuy != 0
	db.AddOn = addOn != 0

	merged := db
	changed := false
	mergeInt := func(dst *int64, parsed int64) {
		if parsed != 0 && parsed != *dst {
			*dst = parsed
			changed = true
		}
	}
	mergeStr := func(dst *string, parsed string) {
		if parsed != "" && parsed != *dst {
			*dst = parsed
			changed = true
		}
	}
	mergeInt(&merged.BuyIn, t.BuyIn)
	mergeInt(&merged.Fee, t.Fee)
	mergeInt(&merged.KOBounty, t.KOBounty)
	mergeStr(&merged.Currency, t.Currency)
	mergeStr(&merged.Speed, t.Speed)
	if t.MaxSeats != 0 && t.MaxSeats != merged.MaxSeats {
		merged.MaxSeats = t.MaxSeats
		changed = true
	}
	if t.IsKO && !merged.Knockout {
		merged.Knockout = true
		changed = true
	}
	if t.IsRebuy && !merged.Rebuy {
		merged.Rebuy = true
		changed = true
	}
	if t.IsAddon && !merged.AddOn {
		merged.AddOn = true
		changed = true
	}
	if !changed {
		return typeID, nil
	}
	return s.tourneyTypes.Get(ctx, merged)
}

func (s *Store) tourneysPlayerID(ctx context.Context, tourneyID, playerID int64, currency string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM TourneysPlayers
		WHERE tourneyId = ? AND playerId = ? AND entryId = 1`,
		tourneyID, playerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup tourneys player: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO TourneysPlayers (tourneyId, playerId, entryId, winningsCurrency)
		VALUES (?, ?, 1, ?)`, tourneyID, playerID, currency)
	if err != nil {
		return 0, fmt.Errorf("insert tourneys player: %w", err)
	}
	return res.LastInsertId()
}

// UpdateTourneyResults applies per-player rank/winnings/knockout updates.
// Rank and winnings are absolute; knockout counts accumulate.
func (s *Store) UpdateTourneyResults(ctx context.Context, t *hand.Tourney) error {
	for name, tpID := range t.PlayerIDs {
		if rank, ok := t.Ranks[name]; ok && rank > 0 {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE TourneysPlayers SET rank = ? WHERE id = ?`, rank, tpID); err != nil {
				return fmt.Errorf("update rank: %w", err)
			}
		}
		if win, ok := t.Winnings[name]; ok && win > 0 {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE TourneysPlayers SET winnings = ? WHERE id = ?`, win, tpID); err != nil {
				return fmt.Errorf("update winnings: %w", err)
			}
		}
		if kos, ok := t.Knockouts[name]; ok && kos > 0 {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE TourneysPlayers SET koCount = koCount + ? WHERE id = ?`, kos, tpID); err != nil {
				return fmt.Errorf("update knockouts: %w", err)
			}
		}
	}
	return nil
}
