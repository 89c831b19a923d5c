package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"booksearch/internal/models"
)

// Searcher runs batches of queries against an Index in parallel
type Searcher struct {
	index      *Index
	workers    int
	limit      int
	progressFn func(done, total int, query string)
}

// Option configures a Searcher
type Option func(*Searcher)

// WithWorkers sets the number of parallel workers
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLimit caps the number of hits per query; 0 means no cap
func WithLimit(n int) Option {
	return func(s *Searcher) {
		if n >= 0 {
			s.limit = n
		}
	}
}

// WithProgress sets a progress callback
func WithProgress(fn func(done, total int, query string)) Option {
	return func(s *Searcher) {
		s.progressFn = fn
	}
}

// NewSearcher creates a new Searcher over index
func NewSearcher(index *Index, opts ...Option) *Searcher {
	s := &Searcher{
		index:   index,
		workers: 8,
		limit:   10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchAll runs every query and returns the results in query order. A
// negative tolerance lets the index pick one per query. Queries not started
// before ctx is done carry ctx's error.
func (s *Searcher) SearchAll(ctx context.Context, queries []string, tolerance int) []*models.QueryResult {
	results := make([]*models.QueryResult, len(queries))
	if len(queries) == 0 {
		return results
	}

	var (
		wg    sync.WaitGroup
		done  int64
		total = len(queries)
	)

	// Create work channel
	work := make(chan int, len(queries))
	for i := range queries {
		work <- i
	}
	close(work)

	// Start workers
	for range min(s.workers, total) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = s.search(ctx, queries[i], tolerance)

				n := atomic.AddInt64(&done, 1)
				if s.progressFn != nil {
					s.progressFn(int(n), total, queries[i])
				}
			}
		}()
	}

	wg.Wait()

	return results
}

func (s *Searcher) search(ctx context.Context, query string, tolerance int) *models.QueryResult {
	if tolerance < 0 {
		tolerance = s.index.Tolerance(query)
	}
	res := &models.QueryResult{Query: query, Tolerance: tolerance}

	if err := ctx.Err(); err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	hits, err := s.index.Find(ctx, query, tolerance, s.limit)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Hits = hits
	return res
}
