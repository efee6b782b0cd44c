package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"handvault/internal/hand"
)

type playerKey struct {
	SiteID int64
	Name   string
}

type gametypeKey struct {
	SiteID     int64
	Type       string
	Category   string
	LimitType  string
	Currency   string
	Mix        string
	SmallBlind int64
	BigBlind   int64
	MaxSeats   int
	Ante       int64
}

// GetSiteID resolves a site name to its id.
func (s *Store) GetSiteID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM Sites WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := s.db.ExecContext(ctx, `INSERT INTO Sites (name) VALUES (?)`, name)
		if err != nil {
			return 0, fmt.Errorf("insert site %s: %w", name, err)
		}
		return res.LastInsertId()
	}
	return id, err
}

// ResolvePlayers looks up or inserts every named player for a site, marking
// hero. The hero flag is only ever upgraded.
func (s *Store) ResolvePlayers(ctx context.Context, siteID int64, names []string, hero string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		id, err := s.players.Get(ctx, playerKey{SiteID: siteID, Name: name})
		if err != nil {
			return nil, err
		}
		out[name] = id
		if name == hero {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE Players SET hero = 1 WHERE id = ? AND hero = 0`, id); err != nil {
				return nil, fmt.Errorf("upgrade hero flag: %w", err)
			}
		}
	}
	return out, nil
}

func (s *Store) computePlayerID(ctx context.Context, k playerKey) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM Players WHERE name = ? AND siteId = ?`, k.Name, k.SiteID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup player %s: %w", k.Name, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Players (siteId, name, shortKey, hero) VALUES (?, ?, ?, 0)`,
		k.SiteID, k.Name, shortPlayerKey(k.Name))
	if err != nil {
		return 0, fmt.Errorf("insert player %s: %w", k.Name, err)
	}
	return res.LastInsertId()
}

// shortPlayerKey is the two-character uppercase lookup key; names starting
// with digits collapse to "123".
func shortPlayerKey(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return ""
	}
	n := 2
	if len(runes) < 2 {
		n = len(runes)
	}
	for _, r := range runes[:n] {
		if unicode.IsDigit(r) {
			return "123"
		}
	}
	return strings.ToUpper(string(runes[:n]))
}

// ResolveGametype looks up or inserts a gametype; identical descriptors
// always map to the same id.
func (s *Store) ResolveGametype(ctx context.Context, g hand.Gametype) (int64, error) {
	return s.gametypes.Get(ctx, gametypeKey{
		SiteID:     g.SiteID,
		Type:       g.Type,
		Category:   g.Category,
		LimitType:  g.LimitType,
		Currency:   g.Currency,
		Mix:        g.Mix,
		SmallBlind: g.SmallBlind,
		BigBlind:   g.BigBlind,
		MaxSeats:   g.MaxSeats,
		Ante:       g.Ante,
	})
}

func (s *Store) computeGametypeID(ctx context.Context, k gametypeKey) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM Gametypes
		WHERE siteId = ? AND type = ? AND category = ? AND limitType = ?
		  AND currency = ? AND mix = ? AND smallBlind = ? AND bigBlind = ?
		  AND maxSeats = ? AND ante = ?`,
		k.SiteID, k.Type, k.Category, k.LimitType, k.Currency, k.Mix,
		k.SmallBlind, k.BigBlind, k.MaxSeats, k.Ante).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup gametype: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO Gametypes
			(siteId, type, category, limitType, currency, mix, smallBlind, bigBlind, smallBet, bigBet, maxSeats, ante)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.SiteID, k.Type, k.Category, k.LimitType, k.Currency, k.Mix,
		k.SmallBlind, k.BigBlind, k.SmallBlind*2, k.BigBlind*2, k.MaxSeats, k.Ante)
	if err != nil {
		return 0, fmt.Errorf("insert gametype: %w", err)
	}
	return res.LastInsertId()
}

// ImportResult is the per-file outcome recorded on the Files row.
type ImportResult struct {
	Hands      int
	Stored     int
	Duplicates int
	Partial    int
	Skipped    int
	Errors     int
	Elapsed    time.Duration
}

// StoreFile registers path in the Files table, returning its id. Re-calls
// for the same path return the existing row.
func (s *Store) StoreFile(ctx context.Context, path, site string, ftype string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM Files WHERE file = ?`, path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup file %s: %w", path, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Files (file, site, type, startTime) VALUES (?, ?, ?, ?)`,
		path, site, ftype, fmtTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", path, err)
	}
	return res.LastInsertId()
}

// UpdateFile accumulates one import pass's results onto the Files row.
func (s *Store) UpdateFile(ctx context.Context, fileID int64, r ImportResult, finished bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE Files SET
			hands = hands + ?,
			storedHands = storedHands + ?,
			duplicates = duplicates + ?,
			partial = partial + ?,
			skipped = skipped + ?,
			errs = errs + ?,
			timeSpent = timeSpent + ?,
			lastUpdate = ?,
			finished = ?
		WHERE id = ?`,
		r.Hands, r.Stored, r.Duplicates, r.Partial, r.Skipped, r.Errors,
		r.Elapsed.Seconds(), fmtTime(time.Now()), boolToInt(finished), fileID)
	if err != nil {
		return fmt.Errorf("update file %d: %w", fileID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
