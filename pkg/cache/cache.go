// Package cache persists enrichment scores in SQLite so repeated runs
// ask each upstream about a technique at most once per TTL window.
// Unavailability is cached too: a technique an upstream does not know
// stays "unavailable" until the row expires.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/exploopio/waflens/pkg/classify"
	"github.com/exploopio/waflens/pkg/core"
)

// DefaultTTL is how long a cached score stays fresh.
const DefaultTTL = 24 * time.Hour

// Store is a SQLite-backed score cache keyed by (source, technique).
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log core.Logger
	ttl time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the freshness window for cached rows.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(log core.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open creates or opens the cache database at path.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{
		db:  db,
		log: &core.NopLogger{},
		ttl: DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS enrichment_scores (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		technique_id TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		fetched_at INTEGER NOT NULL,
		UNIQUE(source, technique_id)
	);

	CREATE INDEX IF NOT EXISTS idx_scores_fetched_at ON enrichment_scores(fetched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached score for (source, technique). found reports
// whether a fresh row exists; available mirrors what the upstream said.
func (s *Store) Get(source, techniqueID string) (score float64, available, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-s.ttl).Unix()
	row := s.db.QueryRow(
		`SELECT score, available FROM enrichment_scores
		 WHERE source = ? AND technique_id = ? AND fetched_at >= ?`,
		source, techniqueID, cutoff)

	var avail int
	if err := row.Scan(&score, &avail); err != nil {
		return 0, false, false
	}
	return score, avail != 0, true
}

// Put stores a score (or its unavailability) for (source, technique),
// replacing any previous row.
func (s *Store) Put(source, techniqueID string, score float64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	avail := 0
	if available {
		avail = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO enrichment_scores (id, source, technique_id, score, available, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source, technique_id) DO UPDATE SET
		   score = excluded.score,
		   available = excluded.available,
		   fetched_at = excluded.fetched_at`,
		uuid.New().String(), source, techniqueID, score, avail, time.Now().Unix())
	return err
}

// Prune deletes rows older than the TTL and returns how many were removed.
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM enrichment_scores WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Len returns the number of rows, fresh or stale.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM enrichment_scores`).Scan(&n)
	return n, err
}

// Wrap puts the cache in front of a score lookup. Cache hits never touch
// fn; misses call it once and persist the outcome either way. Storage
// errors degrade to pass-through with a warning.
func (s *Store) Wrap(source string, fn classify.ScoreFunc) classify.ScoreFunc {
	return func(techniqueID string) (float64, bool) {
		if score, available, found := s.Get(source, techniqueID); found {
			return score, available
		}

		var score float64
		var available bool
		if fn != nil {
			score, available = fn(techniqueID)
		}
		if err := s.Put(source, techniqueID, score, available); err != nil {
			s.log.Warn("cache: persisting %s/%s failed: %v", source, techniqueID, err)
		}
		return score, available
	}
}
