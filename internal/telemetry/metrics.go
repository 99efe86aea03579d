// Package telemetry records query statistics for the indices under a data
// root. All data stays local: counters are kept in memory and periodically
// flushed to a SQLite database next to the indices.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryKind is the operation that ran a query.
type QueryKind string

const (
	KindSearch  QueryKind = "search"
	KindGroupBy QueryKind = "group_by"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket returns the histogram bucket of d.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one executed query.
type QueryEvent struct {
	Index     string
	Kind      QueryKind
	Query     string
	Results   int
	Latency   time.Duration
	Failed    bool
	Timestamp time.Time
}

// TermCount is a query term and how often it was seen.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ZeroResultQuery is a query that matched nothing.
type ZeroResultQuery struct {
	Index string    `json:"index"`
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}

// queryOperators are query-string keywords that are not search terms.
var queryOperators = map[string]struct{}{"and": {}, "or": {}, "not": {}}

// ExtractTerms returns the lower-cased search terms of a query string.
// Field prefixes, operators, quoting and numeric range bounds are stripped;
// terms shorter than three characters are dropped.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.TrimLeft(w, "+-(")
		if i := strings.LastIndexByte(w, ':'); i >= 0 {
			w = w[i+1:]
		}
		if strings.ContainsAny(w, "<>=") {
			continue
		}
		w = strings.Trim(w, `"()~*?^\`)
		if len(w) < 3 {
			continue
		}
		if _, op := queryOperators[w]; op {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// Snapshot is a point-in-time copy of the in-memory counters.
type Snapshot struct {
	TotalQueries     int64                   `json:"total_queries"`
	FailedQueries    int64                   `json:"failed_queries"`
	ZeroResultCount  int64                   `json:"zero_result_count"`
	ExactRepeatCount int64                   `json:"exact_repeat_count"`
	ExactRepeatRate  float64                 `json:"exact_repeat_rate"`
	Kinds            map[QueryKind]int64     `json:"kinds"`
	Indices          map[string]int64        `json:"indices"`
	TopTerms         []TermCount             `json:"top_terms"`
	ZeroResults      []ZeroResultQuery       `json:"zero_results"`
	Latency          map[LatencyBucket]int64 `json:"latency"`
	Since            time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of successful queries that matched
// nothing, in percent.
func (s *Snapshot) ZeroResultPercentage() float64 {
	ok := s.TotalQueries - s.FailedQueries
	if ok <= 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(ok) * 100
}

// Config configures a Metrics collector.
type Config struct {
	// TopTerms bounds the distinct terms tracked in memory (default: 100).
	TopTerms int

	// ZeroResults bounds the recent zero-result queries kept (default: 100).
	ZeroResults int

	// RecentQueries bounds the query hashes kept for repeat detection
	// (default: 500).
	RecentQueries int

	// FlushInterval is how often counters are written to the store.
	// Zero disables periodic flushing; Close always flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		TopTerms:      100,
		ZeroResults:   100,
		RecentQueries: 500,
		FlushInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopTerms <= 0 {
		c.TopTerms = d.TopTerms
	}
	if c.ZeroResults <= 0 {
		c.ZeroResults = d.ZeroResults
	}
	if c.RecentQueries <= 0 {
		c.RecentQueries = d.RecentQueries
	}
	return c
}

// Counters is one flush worth of query counters.
type Counters struct {
	Kinds       map[QueryKind]int64
	Indices     map[string]int64
	Terms       map[string]int64
	Latency     map[LatencyBucket]int64
	ZeroResults []ZeroResultQuery
}

// NewCounters returns empty counters.
func NewCounters() Counters {
	return Counters{
		Kinds:   make(map[QueryKind]int64),
		Indices: make(map[string]int64),
		Terms:   make(map[string]int64),
		Latency: make(map[LatencyBucket]int64),
	}
}

// Empty reports whether no query was counted.
func (c Counters) Empty() bool {
	return len(c.Kinds) == 0
}

// Metrics collects query telemetry. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	kinds       map[QueryKind]int64
	indices     map[string]int64
	latency     map[LatencyBucket]int64
	topTerms    *lru.Cache[string, int64]
	zeroResults *CircularBuffer[ZeroResultQuery]
	recent      *lru.Cache[string, struct{}]
	total       int64
	failed      int64
	zeroCount   int64
	repeatCount int64
	since       time.Time
	unflushed   Counters
	store       Store
	stopCh      chan struct{}
	flushDone   chan struct{}
	closed      bool
}

// New creates a collector. A nil store keeps metrics in memory only.
func New(store Store, cfg Config) *Metrics {
	cfg = cfg.withDefaults()
	topTerms, _ := lru.New[string, int64](cfg.TopTerms)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueries)

	m := &Metrics{
		kinds:       make(map[QueryKind]int64),
		indices:     make(map[string]int64),
		latency:     make(map[LatencyBucket]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[ZeroResultQuery](cfg.ZeroResults),
		recent:      recent,
		since:       time.Now(),
		unflushed:   NewCounters(),
		store:       store,
		stopCh:      make(chan struct{}),
		flushDone:   make(chan struct{}),
	}

	if store != nil && cfg.FlushInterval > 0 {
		go m.flushLoop(cfg.FlushInterval)
	} else {
		close(m.flushDone)
	}
	return m
}

func (m *Metrics) flushLoop(interval time.Duration) {
	defer close(m.flushDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Record adds one query to the counters. Recording after Close is a no-op.
func (m *Metrics) Record(e QueryEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.total++
	m.kinds[e.Kind]++
	m.indices[e.Index]++
	m.unflushed.Kinds[e.Kind]++
	m.unflushed.Indices[e.Index]++

	if e.Failed {
		m.failed++
		return
	}

	bucket := LatencyToBucket(e.Latency)
	m.latency[bucket]++
	m.unflushed.Latency[bucket]++

	for _, term := range ExtractTerms(e.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.unflushed.Terms[term]++
	}

	if e.Results == 0 {
		z := ZeroResultQuery{Index: e.Index, Query: e.Query, At: e.Timestamp}
		m.zeroCount++
		m.zeroResults.Add(z)
		m.unflushed.ZeroResults = append(m.unflushed.ZeroResults, z)
	}

	key := hashQuery(e.Index, e.Query)
	if _, seen := m.recent.Get(key); seen {
		m.repeatCount++
	}
	m.recent.Add(key, struct{}{})
}

func hashQuery(index, query string) string {
	sum := sha256.Sum256([]byte(index + "\x00" + strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the counters recorded since the collector was created.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Snapshot{
		TotalQueries:     m.total,
		FailedQueries:    m.failed,
		ZeroResultCount:  m.zeroCount,
		ExactRepeatCount: m.repeatCount,
		Kinds:            make(map[QueryKind]int64, len(m.kinds)),
		Indices:          make(map[string]int64, len(m.indices)),
		Latency:          make(map[LatencyBucket]int64, len(m.latency)),
		ZeroResults:      m.zeroResults.Items(),
		Since:            m.since,
	}
	if m.total > 0 {
		s.ExactRepeatRate = float64(m.repeatCount) / float64(m.total)
	}
	for k, v := range m.kinds {
		s.Kinds[k] = v
	}
	for k, v := range m.indices {
		s.Indices[k] = v
	}
	for k, v := range m.latency {
		s.Latency[k] = v
	}
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			s.TopTerms = append(s.TopTerms, TermCount{Term: term, Count: count})
		}
	}
	sortTerms(s.TopTerms)
	return s
}

func sortTerms(terms []TermCount) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}

// Flush writes the counters recorded since the previous flush to the store.
// Counters that fail to persist are dropped.
func (m *Metrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = NewCounters()
	m.mu.Unlock()

	if batch.Empty() {
		return nil
	}
	return m.store.Save(time.Now().Format(DateLayout), batch)
}

// Close stops periodic flushing, flushes what is left and closes the store.
func (m *Metrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.flushDone

	err := m.Flush()
	if m.store != nil {
		if cerr := m.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Summary reads persisted statistics from the store, flushing pending
// counters first so they are included.
func (m *Metrics) Summary(from, to string, limit int) (*Summary, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	if err := m.Flush(); err != nil {
		return nil, err
	}
	return m.store.Summary(from, to, limit)
}
