package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/textdex/internal/coordinator"
	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/mapper"
	"github.com/Aman-CERP/textdex/internal/schema"
)

const (
	// DefaultMaxResults is the number of hits Search returns.
	DefaultMaxResults = 20

	// DefaultMaxGroups is the number of groups GroupBy requests.
	DefaultMaxGroups = 1000

	// DefaultCacheSize is the number of parsed queries kept.
	DefaultCacheSize = 256
)

// Searchers hands out searcher handles. *coordinator.Coordinator implements it.
type Searchers interface {
	GetSearcher(name string) (*coordinator.SearcherHandle, error)
}

// Config contains configuration for the Facade.
type Config struct {
	// MaxResults caps the hits returned by Search. Defaults to 20.
	MaxResults int

	// MaxGroups caps the groups requested by GroupBy. Defaults to 1000.
	MaxGroups int

	// CacheSize is the parsed-query cache capacity. Zero disables caching.
	CacheSize int
}

// DefaultConfig returns the default facade configuration.
func DefaultConfig() Config {
	return Config{
		MaxResults: DefaultMaxResults,
		MaxGroups:  DefaultMaxGroups,
		CacheSize:  DefaultCacheSize,
	}
}

// Facade runs searches and group-by aggregations against named indices.
type Facade struct {
	searchers Searchers
	config    Config
	cache     *parsedCache
}

// New creates a Facade.
func New(searchers Searchers, config Config) (*Facade, error) {
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	if config.MaxGroups <= 0 {
		config.MaxGroups = DefaultMaxGroups
	}
	cache, err := newParsedCache(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &Facade{searchers: searchers, config: config, cache: cache}, nil
}

// Search returns the top hits for text on index name, ranked by score and
// projected through the index schema. Empty text matches every document.
func (f *Facade) Search(ctx context.Context, name, text string) ([]mapper.Record, error) {
	start := time.Now()

	h, err := f.searchers.GetSearcher(name)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	q, err := f.parse(h, text)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, f.config.MaxResults, 0, false)
	req.Fields = []string{"*"}
	res, err := h.Searcher.Search(ctx, req)
	if err != nil {
		return nil, searchFailed(name, err)
	}

	records := make([]mapper.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		records = append(records, mapper.FromResult(h.Schema, hit))
	}

	slog.Debug("search_complete",
		slog.String("index", name),
		slog.String("query", text),
		slog.Uint64("total", res.Total),
		slog.Int("returned", len(records)),
		slog.Duration("duration", time.Since(start)))
	return records, nil
}

// GroupBy returns the distinct values of field among documents matching
// text, most frequent first. Empty text matches every document. Keys that
// are not plain text, such as the encoded terms of numeric fields, are
// dropped.
func (f *Facade) GroupBy(ctx context.Context, name, field, text string) ([]string, error) {
	h, err := f.searchers.GetSearcher(name)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fd, ok := h.Schema.Field(field)
	if !ok {
		return nil, txerrors.SchemaError(fmt.Sprintf("index %s has no field %q", name, field)).
			WithDetail("field", field)
	}
	if !fd.Indexed {
		return nil, txerrors.SchemaError(fmt.Sprintf("field %q is not indexed and cannot be grouped", field)).
			WithDetail("field", field)
	}

	q, err := f.parse(h, text)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	req.AddFacet(field, bleve.NewFacetRequest(field, f.config.MaxGroups))
	res, err := h.Searcher.Search(ctx, req)
	if err != nil {
		return nil, searchFailed(name, err)
	}

	facet, ok := res.Facets[field]
	if !ok || facet == nil || facet.Terms == nil {
		return []string{}, nil
	}

	keys := make([]string, 0, facet.Terms.Len())
	dropped := 0
	for _, term := range facet.Terms.Terms() {
		if !textual(fd, term.Term) {
			dropped++
			continue
		}
		keys = append(keys, term.Term)
	}
	if dropped > 0 {
		slog.Debug("group_keys_dropped",
			slog.String("index", name),
			slog.String("field", field),
			slog.Int("count", dropped))
	}
	return keys, nil
}

func (f *Facade) parse(h *coordinator.SearcherHandle, text string) (blevequery.Query, error) {
	key := cacheKey{index: h.Name(), generation: h.Generation, text: text}
	if q, ok := f.cache.get(key); ok {
		return q, nil
	}

	primary, _ := h.Schema.Primary()
	q, err := Parse(text, primary.Name, h.Analyzer)
	if err != nil {
		return nil, err
	}
	f.cache.add(key, q)
	return q, nil
}

// textual reports whether a group key is a plain text value.
func textual(f schema.Field, key string) bool {
	if f.Type.Numeric() || !utf8.ValidString(key) {
		return false
	}
	return strings.IndexFunc(key, func(r rune) bool { return !unicode.IsPrint(r) }) < 0
}

func searchFailed(name string, err error) error {
	return txerrors.Wrap(txerrors.ErrCodeSearchFailed, err).WithDetail("index", name)
}
