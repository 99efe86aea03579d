package query

import (
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey identifies a parse result. The schema generation is part of the
// key, so a remap makes every earlier entry for the index unreachable.
type cacheKey struct {
	index      string
	generation uint64
	text       string
}

// parsedCache is an LRU of parsed queries. A nil cache never hits.
type parsedCache struct {
	lru *lru.Cache[cacheKey, blevequery.Query]
}

func newParsedCache(size int) (*parsedCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[cacheKey, blevequery.Query](size)
	if err != nil {
		return nil, err
	}
	return &parsedCache{lru: c}, nil
}

func (c *parsedCache) get(key cacheKey) (blevequery.Query, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *parsedCache) add(key cacheKey, q blevequery.Query) {
	if c == nil {
		return
	}
	c.lru.Add(key, q)
}

func (c *parsedCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
