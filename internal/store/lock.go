package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrLockHeld is returned when another importer holds the insert lock after
// the bounded retry window.
var ErrLockHeld = errors.New("insert lock held by another importer")

// AcquireLock serializes a "current writer" across independent processes
// sharing the store. Acquisition retries with exponential backoff instead of
// busy-polling; callers must release on every exit path.
func (s *Store) AcquireLock(ctx context.Context, owner string) error {
	backoff := retry.WithMaxRetries(8, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.tryLock(ctx, owner)
	})
	if err != nil {
		return fmt.Errorf("acquire insert lock: %w", err)
	}
	return nil
}

func (s *Store) tryLock(ctx context.Context, owner string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var locked int
		var holder string
		if err := tx.QueryRowContext(ctx,
			`SELECT locked, owner FROM InsertLock WHERE id = 1`).Scan(&locked, &holder); err != nil {
			return err
		}
		if locked != 0 && holder != owner {
			return retry.RetryableError(ErrLockHeld)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE InsertLock SET locked = 1, owner = ? WHERE id = 1`, owner)
		return err
	})
}

// ReleaseLock drops the insert lock if owner holds it.
func (s *Store) ReleaseLock(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE InsertLock SET locked = 0, owner = '' WHERE id = 1 AND owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("release insert lock: %w", err)
	}
	return nil
}
