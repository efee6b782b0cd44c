// Package store is the persistence boundary of the import pipeline: a
// sqlite-backed implementation of the hand insert contract, the bulk
// cache-and-flush layer, and the session merge engine.
//
// A Store is owned by one import worker. The bulk buffers and the duplicate
// seen-set are process-local state and are not safe to share across
// concurrent writers; give each worker its own Store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"handvault/internal/hand"
)

const (
	// sqliteMaxVars is the default SQLITE_MAX_VARIABLE_NUMBER; batched
	// statements chunk below it.
	sqliteMaxVars = 999

	timeFmt = "2006-01-02 15:04:05"
	dateFmt = "2006-01-02"
)

// Options tune a Store instance.
type Options struct {
	// PublicDB widens hand identity with the hero seat.
	PublicDB bool
	// BulkOptimized enables garbage suppression of cache rows keyed by
	// superseded ids; without it nothing is suppressed.
	BulkOptimized bool
	// SessionTimeout bounds a session of contiguous play.
	SessionTimeout time.Duration
	// DayStartOffset shifts calendar bucket boundaries east of UTC.
	DayStartOffset time.Duration
	// HandInc is the id stride between hands; defaults to 1.
	HandInc int64
}

// Store implements the persistence boundary against sqlite.
type Store struct {
	db   *sql.DB
	path string
	o    Options

	seen map[dupKey]struct{}

	players      *memo[playerKey, int64]
	gametypes    *memo[gametypeKey, int64]
	tourneyTypes *memo[tourneyTypeKey, int64]

	lastHandID int64

	batch *batch
	sess  *sessionState

	// Superseded ids tracked for cache invalidation between flush and the
	// cleanup passes.
	ttOld, ttNew map[int64]struct{}
	wmOld, wmNew map[weekMonth]struct{}
}

type weekMonth struct {
	WeekID  int64
	MonthID int64
}

// Open opens (creating if necessary) the database at path and runs pending
// migrations.
func Open(path string, o Options) (*Store, error) {
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = 30 * time.Minute
	}
	if o.HandInc <= 0 {
		o.HandInc = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, path: path, o: o}
	s.initState()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

func (s *Store) initState() {
	s.seen = make(map[dupKey]struct{})
	s.players = newMemo(s.computePlayerID)
	s.gametypes = newMemo(s.computeGametypeID)
	s.tourneyTypes = newMemo(s.computeTourneyTypeID)
	s.batch = newBatch()
	s.sess = newSessionState()
	s.ttOld = make(map[int64]struct{})
	s.ttNew = make(map[int64]struct{})
	s.wmOld = make(map[weekMonth]struct{})
	s.wmNew = make(map[weekMonth]struct{})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for read-only reporting queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ResetBulkCache clears every in-process bulk buffer so a new parser batch
// starts empty. With reconnect the database handle is also reopened, for
// worker isolation.
func (s *Store) ResetBulkCache(reconnect bool) error {
	s.batch = newBatch()
	s.sess = newSessionState()
	if reconnect {
		_ = s.db.Close()
		db, err := openDB(s.path)
		if err != nil {
			return err
		}
		s.db = db
	}
	return nil
}

// ResetCaches clears the memoized lookup caches and the duplicate seen-set.
// Call at run boundaries (new run, new worker).
func (s *Store) ResetCaches() {
	s.seen = make(map[dupKey]struct{})
	s.players.Reset()
	s.gametypes.Reset()
	s.tourneyTypes.Reset()
	s.lastHandID = 0
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetHandCount returns the number of persisted hands.
func (s *Store) GetHandCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Hands`).Scan(&n)
	return n, err
}

// Analyze asks sqlite to refresh its query-planner statistics after a bulk
// run.
func (s *Store) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA optimize;`)
	return err
}

// inClause returns "?,?,..." with n placeholders.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// statCols joins the additive statistic column names, optionally prefixed.
func statCols(prefix string) string {
	cols := make([]string, len(hand.StatColumns))
	for i, c := range hand.StatColumns {
		cols[i] = prefix + c
	}
	return strings.Join(cols, ", ")
}

// statSumCols builds "SUM(col), ..." for collapsing cache rows across
// merged sessions.
func statSumCols() string {
	cols := make([]string, len(hand.StatColumns))
	for i, c := range hand.StatColumns {
		cols[i] = fmt.Sprintf("SUM(%s)", c)
	}
	return strings.Join(cols, ", ")
}

// statSetClause builds "col = col + ?, ..." for additive updates.
func statSetClause() string {
	cols := make([]string, len(hand.StatColumns))
	for i, c := range hand.StatColumns {
		cols[i] = fmt.Sprintf("%s = %s + ?", c, c)
	}
	return strings.Join(cols, ", ")
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFmt)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeFmt, s, time.UTC)
	return t
}
