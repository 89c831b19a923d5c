// Package catalog hosts the fuzzy title/author index on top of the book
// store. It loads the persisted index at startup, rebuilds it from the store
// when the file is missing or corrupt, feeds new books into it and resolves
// search matches back to books.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"booksearch/internal/bktree"
	"booksearch/internal/codec"
	"booksearch/internal/fileutil"
	"booksearch/internal/models"
	"booksearch/internal/storage"
)

// Rebuild reasons recorded in the index history
const (
	ReasonMissing = "missing"
	ReasonCorrupt = "corrupt"
	ReasonManual  = "manual"
)

// Options configures an Index
type Options struct {
	// IndexPath is where the index is persisted. Empty keeps it in memory.
	IndexPath string
	// Compress gzips the persisted index.
	Compress bool
	// Tolerance picks the tolerance for Find when none is given.
	Tolerance bktree.TolerancePolicy
	// FlushEvery saves the index after this many added books. Zero saves
	// only on Save and Close.
	FlushEvery int
	// Verify checks the tree invariant when loading.
	Verify bool
	// QuarantineDir receives corrupt index files. Empty means next to the
	// index.
	QuarantineDir string
	Logger        *slog.Logger
}

// Index is the fuzzy index over a book store. It is safe for concurrent use:
// searches share a read lock, inserts and rebuilds take the write lock.
type Index struct {
	mu      sync.RWMutex
	tree    *bktree.Tree
	pending atomic.Int64 // books added since the last save
	saveMu  sync.Mutex

	store *storage.Storage
	opts  Options
	log   *slog.Logger
}

// Stats describes the index
type Stats struct {
	Path        string                `json:"path"`
	Nodes       int                   `json:"nodes"`
	Depth       int                   `json:"depth"`
	Books       int                   `json:"books"`
	Pending     int                   `json:"pending"`
	LastRebuild *models.RebuildRecord `json:"last_rebuild,omitempty"`
}

// Open loads the index at opts.IndexPath, rebuilding it from store when the
// file does not exist or cannot be decoded. A corrupt file is moved aside
// before the rebuild.
func Open(ctx context.Context, store *storage.Storage, opts Options) (*Index, error) {
	if store == nil {
		return nil, errors.New("catalog: nil store")
	}
	if opts.Tolerance == nil {
		opts.Tolerance = bktree.DefaultTolerance
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	idx := &Index{
		tree:  bktree.New(),
		store: store,
		opts:  opts,
		log:   log.With("component", "catalog"),
	}

	if opts.IndexPath == "" {
		if err := idx.Rebuild(ctx, ReasonMissing); err != nil {
			return nil, err
		}
		return idx, nil
	}

	start := time.Now()
	tree, err := codec.LoadWith(opts.IndexPath, codec.DecodeOptions{Verify: opts.Verify})
	switch {
	case err == nil:
		idx.tree = tree
		idx.log.Info("loaded index", "path", opts.IndexPath, "nodes", tree.Len(), "duration", time.Since(start))
		return idx, nil

	case errors.Is(err, fs.ErrNotExist):
		idx.log.Info("no index on disk, building from catalog", "path", opts.IndexPath)
		if err := idx.Rebuild(ctx, ReasonMissing); err != nil {
			return nil, err
		}
		return idx, nil

	case errors.Is(err, codec.ErrCorruptIndex), errors.Is(err, codec.ErrInvalidReference):
		idx.log.Warn("index is corrupt, rebuilding from catalog", "path", opts.IndexPath, "err", err)
		dest, qerr := fileutil.Quarantine(opts.IndexPath, opts.QuarantineDir)
		if qerr != nil {
			return nil, fmt.Errorf("failed to quarantine corrupt index: %w", errors.Join(err, qerr))
		}
		idx.log.Info("moved corrupt index aside", "dest", dest)
		if err := idx.Rebuild(ctx, ReasonCorrupt); err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
}

// Rebuild replaces the index with one built from every book in the store,
// saves it and records the rebuild in the store's history.
func (x *Index) Rebuild(ctx context.Context, reason string) error {
	start := time.Now()

	// The write lock spans the read of the store and the swap. A concurrent
	// Add either lands in the snapshot or waits and inserts into the new tree.
	x.mu.Lock()
	books, err := x.store.AllBooks(ctx)
	if err != nil {
		x.mu.Unlock()
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	tree := bktree.New()
	for _, b := range books {
		insertBook(tree, b)
	}
	nodes := tree.Len()

	x.tree = tree
	x.pending.Store(0)
	x.mu.Unlock()

	if err := x.Save(); err != nil {
		return err
	}
	if err := x.store.RecordRebuild(ctx, reason, len(books), nodes); err != nil {
		return fmt.Errorf("failed to record rebuild: %w", err)
	}

	x.log.Info("rebuilt index", "reason", reason, "books", len(books), "nodes", nodes, "duration", time.Since(start))
	return nil
}

// insertBook adds a book's title and author under its ID
func insertBook(tree *bktree.Tree, b *models.Book) {
	tree.InsertEntry(bktree.Entry{Identifier: b.Title, Kind: bktree.KindTitle, Refs: bktree.NewRefs(b.ID)})
	if b.Author != "" {
		tree.InsertEntry(bktree.Entry{Identifier: b.Author, Kind: bktree.KindAuthor, Refs: bktree.NewRefs(b.ID)})
	}
}

// Add stores a new book and inserts its title and author into the index.
// The book's ID is set by the store.
func (x *Index) Add(ctx context.Context, book *models.Book) error {
	if err := x.store.AddBook(ctx, book); err != nil {
		return err
	}

	x.mu.Lock()
	insertBook(x.tree, book)
	n := x.pending.Add(1)
	x.mu.Unlock()

	flush := x.opts.FlushEvery > 0 && n >= int64(x.opts.FlushEvery)

	x.log.Debug("indexed book", "id", book.ID, "title", book.Title, "author", book.Author)

	if flush {
		return x.Save()
	}
	return nil
}

// Tolerance returns the tolerance the configured policy picks for query
func (x *Index) Tolerance(query string) int {
	return x.opts.Tolerance(query)
}

// Search returns the raw index matches for query
func (x *Index) Search(query string, tolerance int) []bktree.Match {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.tree.Search(query, tolerance)
}

// Find searches the index and resolves the matches to books, one hit per
// book at its closest distance, ordered by distance then book ID. A negative
// tolerance uses the configured policy; a limit of zero returns every hit.
func (x *Index) Find(ctx context.Context, query string, tolerance, limit int) ([]*models.Hit, error) {
	if tolerance < 0 {
		tolerance = x.Tolerance(query)
	}

	ranked := rankMatches(x.Search(query, tolerance))
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]uint32, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ref
	}
	books, err := x.store.GetBooks(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]*models.Hit, 0, len(ranked))
	for _, r := range ranked {
		book, ok := books[r.ref]
		if !ok {
			x.log.Warn("index references unknown book", "id", r.ref, "identifier", r.identifier)
			continue
		}
		hits = append(hits, &models.Hit{
			Book:      book,
			Distance:  r.distance,
			MatchedOn: r.identifier,
			Kind:      r.kind.String(),
		})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Verify checks the tree invariant
func (x *Index) Verify() error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.tree.Verify()
}

// Encode writes the index in its text format
func (x *Index) Encode(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return codec.Encode(w, x.tree)
}

// Export saves a copy of the index to path
func (x *Index) Export(path string, compress bool) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if err := codec.Save(path, x.tree, codec.SaveOptions{Compress: compress}); err != nil {
		return fmt.Errorf("failed to export index: %w", err)
	}
	return nil
}

// Save persists the index to its configured path
func (x *Index) Save() error {
	if x.opts.IndexPath == "" {
		return nil
	}

	x.saveMu.Lock()
	defer x.saveMu.Unlock()

	// Holding the read lock keeps Add out, so no increment of pending is lost
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := codec.Save(x.opts.IndexPath, x.tree, codec.SaveOptions{Compress: x.opts.Compress}); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	x.pending.Store(0)
	x.log.Debug("saved index", "path", x.opts.IndexPath, "nodes", x.tree.Len())
	return nil
}

// Close saves the index if books were added since the last save. The store
// is left open.
func (x *Index) Close() error {
	if x.pending.Load() == 0 {
		return nil
	}
	return x.Save()
}

// Stats returns index and catalog statistics
func (x *Index) Stats(ctx context.Context) (Stats, error) {
	x.mu.RLock()
	st := Stats{
		Path:    x.opts.IndexPath,
		Nodes:   x.tree.Len(),
		Depth:   x.tree.Depth(),
		Pending: int(x.pending.Load()),
	}
	x.mu.RUnlock()

	books, err := x.store.CountBooks(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to count books: %w", err)
	}
	st.Books = books

	st.LastRebuild, err = x.store.LastRebuild(ctx)
	if err != nil {
		return st, err
	}
	return st, nil
}
