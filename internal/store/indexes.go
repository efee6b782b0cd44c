package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Auxiliary index management for large bulk runs. Dropping the secondary
// indexes before a big import and recreating them afterwards is purely a
// performance decision; the unique identity index on Hands always stays.

const (
	// bulkSizePerHand estimates bytes of hand-history text per hand.
	bulkSizePerHand = 1300.0
	bulkScale       = 12.0
	bulkIncrement   = 500.0
)

var auxIndexes = []struct {
	name string
	ddl  string
}{
	{"idx_hands_gametype", `CREATE INDEX IF NOT EXISTS idx_hands_gametype ON Hands (gametypeId)`},
	{"idx_hands_session", `CREATE INDEX IF NOT EXISTS idx_hands_session ON Hands (sessionId)`},
	{"idx_handsplayers_hand", `CREATE INDEX IF NOT EXISTS idx_handsplayers_hand ON HandsPlayers (handId)`},
	{"idx_handsplayers_player", `CREATE INDEX IF NOT EXISTS idx_handsplayers_player ON HandsPlayers (playerId)`},
	{"idx_handsactions_hand", `CREATE INDEX IF NOT EXISTS idx_handsactions_hand ON HandsActions (handId)`},
	{"idx_boards_hand", `CREATE INDEX IF NOT EXISTS idx_boards_hand ON Boards (handId)`},
}

// ShouldDropIndexes decides whether the incoming volume (estimated from the
// total size of the files to import) is large relative to the table size.
func (s *Store) ShouldDropIndexes(ctx context.Context, totalFileSize int64) (bool, error) {
	handsInDB, err := s.GetHandCount(ctx)
	if err != nil {
		return false, err
	}
	estimated := float64(totalFileSize) / bulkSizePerHand
	return float64(handsInDB) < bulkScale*estimated+bulkIncrement, nil
}

// DropBulkIndexes drops the auxiliary indexes before a bulk run.
func (s *Store) DropBulkIndexes(ctx context.Context) error {
	for _, idx := range auxIndexes {
		stmt := fmt.Sprintf(`DROP INDEX IF EXISTS %s`, idx.name)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.name, err)
		}
	}
	slog.Info("dropped auxiliary indexes for bulk import")
	return nil
}

// RestoreBulkIndexes recreates the auxiliary indexes after a bulk run.
func (s *Store) RestoreBulkIndexes(ctx context.Context) error {
	for _, idx := range auxIndexes {
		if _, err := s.db.ExecContext(ctx, idx.ddl); err != nil {
			return fmt.Errorf("recreate index %s: %w", idx.name, err)
		}
	}
	slog.Info("recreated auxiliary indexes")
	return nil
}
