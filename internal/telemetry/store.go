package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"
)

// DateLayout is the day granularity of persisted counters.
const DateLayout = "2006-01-02"

// DatabaseName is the telemetry database file under the data root. The
// leading dot keeps it out of index listings.
const DatabaseName = ".queries.db"

// maxZeroResults bounds the persisted zero-result queries.
const maxZeroResults = 100

// ErrNoStore is returned when persisted statistics are requested from a
// collector without a store.
var ErrNoStore = errors.New("telemetry store not configured")

// Store persists query counters.
type Store interface {
	// Save adds c to the totals of date.
	Save(date string, c Counters) error

	// Summary aggregates the counters of the dates in [from, to]. Empty
	// bounds are open.
	Summary(from, to string, limit int) (*Summary, error)

	// Close releases the store.
	Close() error
}

// Summary is the persisted view of query statistics.
type Summary struct {
	From         string                  `json:"from,omitempty"`
	To           string                  `json:"to,omitempty"`
	TotalQueries int64                   `json:"total_queries"`
	Kinds        map[QueryKind]int64     `json:"kinds"`
	Indices      map[string]int64        `json:"indices"`
	Latency      map[LatencyBucket]int64 `json:"latency"`
	TopTerms     []TermCount             `json:"top_terms"`
	ZeroResults  []ZeroResultQuery       `json:"zero_results"`
}

const telemetrySchema = `
CREATE TABLE IF NOT EXISTS query_kind_stats (
	date TEXT NOT NULL,
	kind TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, kind)
);

CREATE TABLE IF NOT EXISTS query_index_stats (
	date TEXT NOT NULL,
	index_name TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, index_name)
);

CREATE TABLE IF NOT EXISTS query_latency_stats (
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, bucket)
);

CREATE TABLE IF NOT EXISTS query_terms (
	term TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0,
	last_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

CREATE TABLE IF NOT EXISTS zero_result_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	index_name TEXT NOT NULL,
	query TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
`

// InitSchema creates the telemetry tables if they do not exist.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(telemetrySchema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

// OpenSQLite opens or creates the telemetry database at path. An empty path
// opens an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	// Single connection: one writer, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, ownsDB: true}, nil
}

// NewSQLiteStore wraps an already open database whose schema was created
// with InitSchema. Close leaves db open.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(date string, c Counters) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for kind, n := range c.Kinds {
		if _, err := tx.Exec(`
			INSERT INTO query_kind_stats (date, kind, count) VALUES (?, ?, ?)
			ON CONFLICT(date, kind) DO UPDATE SET count = count + excluded.count`,
			date, string(kind), n); err != nil {
			return fmt.Errorf("save kind count: %w", err)
		}
	}
	for index, n := range c.Indices {
		if _, err := tx.Exec(`
			INSERT INTO query_index_stats (date, index_name, count) VALUES (?, ?, ?)
			ON CONFLICT(date, index_name) DO UPDATE SET count = count + excluded.count`,
			date, index, n); err != nil {
			return fmt.Errorf("save index count: %w", err)
		}
	}
	for bucket, n := range c.Latency {
		if _, err := tx.Exec(`
			INSERT INTO query_latency_stats (date, bucket, count) VALUES (?, ?, ?)
			ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`,
			date, string(bucket), n); err != nil {
			return fmt.Errorf("save latency count: %w", err)
		}
	}

	now := time.Now().UnixMilli()
	for term, n := range c.Terms {
		if _, err := tx.Exec(`
			INSERT INTO query_terms (term, count, last_seen) VALUES (?, ?, ?)
			ON CONFLICT(term) DO UPDATE SET count = count + excluded.count, last_seen = excluded.last_seen`,
			term, n, now); err != nil {
			return fmt.Errorf("save term count: %w", err)
		}
	}

	if len(c.ZeroResults) > 0 {
		for _, z := range c.ZeroResults {
			if _, err := tx.Exec(`
				INSERT INTO zero_result_queries (index_name, query, recorded_at) VALUES (?, ?, ?)`,
				z.Index, z.Query, z.At.UnixMilli()); err != nil {
				return fmt.Errorf("save zero-result query: %w", err)
			}
		}
		if _, err := tx.Exec(`
			DELETE FROM zero_result_queries
			WHERE id NOT IN (SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?)`,
			maxZeroResults); err != nil {
			return fmt.Errorf("trim zero-result queries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Summary implements Store.
func (s *SQLiteStore) Summary(from, to string, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	lo, hi := from, to
	if lo == "" {
		lo = "0000-00-00"
	}
	if hi == "" {
		hi = "9999-99-99"
	}

	sum := &Summary{From: from, To: to}
	kinds, err := s.dailyTotals("query_kind_stats", "kind", lo, hi)
	if err != nil {
		return nil, err
	}
	sum.Kinds = make(map[QueryKind]int64, len(kinds))
	for k, n := range kinds {
		sum.Kinds[QueryKind(k)] = n
		sum.TotalQueries += n
	}

	if sum.Indices, err = s.dailyTotals("query_index_stats", "index_name", lo, hi); err != nil {
		return nil, err
	}

	latency, err := s.dailyTotals("query_latency_stats", "bucket", lo, hi)
	if err != nil {
		return nil, err
	}
	sum.Latency = make(map[LatencyBucket]int64, len(latency))
	for b, n := range latency {
		sum.Latency[LatencyBucket(b)] = n
	}

	if sum.TopTerms, err = s.topTerms(limit); err != nil {
		return nil, err
	}
	if sum.ZeroResults, err = s.zeroResults(limit); err != nil {
		return nil, err
	}
	return sum, nil
}

// dailyTotals sums the count column of table per key over [lo, hi]. Table
// and column names are package constants, never caller input.
func (s *SQLiteStore) dailyTotals(table, key, lo, hi string) (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s, SUM(count) FROM %s WHERE date >= ? AND date <= ? GROUP BY %s`, key, table, key),
		lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]int64)
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		totals[k] = n
	}
	return totals, rows.Err()
}

func (s *SQLiteStore) topTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`SELECT term, count FROM query_terms ORDER BY count DESC, term ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

func (s *SQLiteStore) zeroResults(limit int) ([]ZeroResultQuery, error) {
	rows, err := s.db.Query(`
		SELECT index_name, query, recorded_at FROM zero_result_queries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ZeroResultQuery
	for rows.Next() {
		var z ZeroResultQuery
		var at int64
		if err := rows.Scan(&z.Index, &z.Query, &at); err != nil {
			return nil, fmt.Errorf("scan zero-result query: %w", err)
		}
		z.At = time.UnixMilli(at)
		out = append(out, z)
	}
	return out, rows.Err()
}

// Close checkpoints the write-ahead log and closes the database when the
// store opened it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
