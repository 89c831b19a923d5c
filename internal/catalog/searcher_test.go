package catalog

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksearch/internal/models"
)

func TestNewSearcher_Defaults(t *testing.T) {
	s := NewSearcher(nil)

	if s.workers != 8 {
		t.Errorf("default workers = %d, want 8", s.workers)
	}
	if s.limit != 10 {
		t.Errorf("default limit = %d, want 10", s.limit)
	}
	if s.progressFn != nil {
		t.Error("default progressFn should be nil")
	}
}

func TestNewSearcher_WithWorkers(t *testing.T) {
	s := NewSearcher(nil, WithWorkers(4))
	if s.workers != 4 {
		t.Errorf("workers = %d, want 4", s.workers)
	}

	// Zero workers should not change default
	s = NewSearcher(nil, WithWorkers(0))
	if s.workers != 8 {
		t.Errorf("workers with 0 = %d, want 8", s.workers)
	}

	// Negative workers should not change default
	s = NewSearcher(nil, WithWorkers(-1))
	if s.workers != 8 {
		t.Errorf("workers with -1 = %d, want 8", s.workers)
	}
}

func TestNewSearcher_WithLimit(t *testing.T) {
	s := NewSearcher(nil, WithLimit(0))
	if s.limit != 0 {
		t.Errorf("limit = %d, want 0", s.limit)
	}

	s = NewSearcher(nil, WithLimit(-3))
	if s.limit != 10 {
		t.Errorf("limit with -3 = %d, want 10", s.limit)
	}
}

func newLibrary(t *testing.T) *Index {
	t.Helper()
	idx := newTestIndex(t, newTestStore(t), Options{})
	addBooks(t, idx,
		&models.Book{Title: "The Hobbit", Author: "Tolkien"},
		&models.Book{Title: "Dune", Author: "Frank Herbert"},
		&models.Book{Title: "Dune Messiah", Author: "Frank Herbert"},
		&models.Book{Title: "Emma", Author: "Jane Austen"},
	)
	return idx
}

func TestSearchAll(t *testing.T) {
	idx := newLibrary(t)

	var calls atomic.Int32
	s := NewSearcher(idx, WithWorkers(3), WithProgress(func(done, total int, query string) {
		calls.Add(1)
		assert.Equal(t, 5, total)
		assert.LessOrEqual(t, done, total)
	}))

	queries := []string{"@toolkien", "dune", "emma", "zzzzzzzzzz", "@frank herbert"}
	results := s.SearchAll(context.Background(), queries, 2)

	require.Len(t, results, len(queries))
	assert.Equal(t, int32(len(queries)), calls.Load())
	for i, res := range results {
		assert.Equal(t, queries[i], res.Query, "results keep query order")
		assert.NoError(t, res.Err)
		assert.Equal(t, 2, res.Tolerance)
	}

	require.Len(t, results[0].Hits, 1)
	assert.Equal(t, "The Hobbit", results[0].Hits[0].Book.Title)

	require.NotEmpty(t, results[1].Hits)
	assert.Equal(t, "Dune", results[1].Hits[0].Book.Title)

	assert.Empty(t, results[3].Hits)
	assert.Len(t, results[4].Hits, 2)
}

func TestSearchAll_PolicyTolerance(t *testing.T) {
	idx := newLibrary(t)
	s := NewSearcher(idx)

	results := s.SearchAll(context.Background(), []string{"dnue", "@tolkein"}, -1)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Tolerance)
	assert.Equal(t, 4, results[1].Tolerance)
	assert.NotEmpty(t, results[0].Hits)
	assert.NotEmpty(t, results[1].Hits)
}

func TestSearchAll_Limit(t *testing.T) {
	idx := newLibrary(t)
	s := NewSearcher(idx, WithLimit(1))

	results := s.SearchAll(context.Background(), []string{"@frank herbert"}, 0)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Hits, 1)
}

func TestSearchAll_Cancelled(t *testing.T) {
	idx := newLibrary(t)
	s := NewSearcher(idx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := s.SearchAll(ctx, []string{"dune", "emma"}, 1)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.NotEmpty(t, res.Error)
		assert.Empty(t, res.Hits)
	}
}

func TestSearchAll_Empty(t *testing.T) {
	s := NewSearcher(newLibrary(t))
	assert.Empty(t, s.SearchAll(context.Background(), nil, 1))
}
