package store

import (
	"context"

	"github.com/blevesearch/bleve/v2"
)

// Searcher runs read-only requests against a corpus.
type Searcher struct {
	dir *Directory
}

// Search executes req.
func (s *Searcher) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return s.dir.search(ctx, req)
}

// DocCount returns the number of documents visible to the searcher.
func (s *Searcher) DocCount() (uint64, error) {
	return s.dir.DocCount()
}
