package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"booksearch/internal/models"
)

// ErrBookNotFound is returned when no book has the requested ID
var ErrBookNotFound = errors.New("book not found")

// Storage is the catalog's book table, the authoritative source the search
// index is built from
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage opens (creating if needed) the catalog database at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer at a time
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 2

// migrations defines all schema migrations
// Each migration should be idempotent (safe to run multiple times)
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // Handled by base schema creation
	},
	{
		version:     2,
		description: "Add isbn column",
		up: `
			ALTER TABLE books ADD COLUMN isbn TEXT DEFAULT '';
			CREATE INDEX IF NOT EXISTS idx_books_isbn ON books(isbn);
		`,
	},
}

// init creates the database schema
func (s *Storage) init() error {
	// Create schema_version table first
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Create base schema
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		published INTEGER DEFAULT 0,
		added_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);

	CREATE TABLE IF NOT EXISTS index_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reason TEXT NOT NULL,
		total_books INTEGER NOT NULL,
		total_nodes INTEGER NOT NULL,
		rebuilt_at INTEGER NOT NULL
	);
	`

	_, err = s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrate runs pending schema migrations
func (s *Storage) migrate() error {
	currentVersion := s.getSchemaVersion()
	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, schemaVersion)
	}

	for _, m := range migrations {
		if m.version <= currentVersion || m.up == "" {
			continue
		}

		// Check if migration is needed (column might already exist)
		if m.version == 2 {
			if s.columnExists("books", "isbn") {
				s.setSchemaVersion(m.version)
				continue
			}
		}

		// Execute migration
		if _, err := s.db.Exec(m.up); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		s.setSchemaVersion(m.version)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion records a migration as applied
func (s *Storage) setSchemaVersion(version int) {
	s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
}

// columnExists checks if a column exists in a table
func (s *Storage) columnExists(table, column string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// AddBook inserts a book and sets its ID and AddedAt
func (s *Storage) AddBook(ctx context.Context, book *models.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return errors.New("book title is required")
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, author, published, isbn, added_at)
		VALUES (?, ?, ?, ?, ?)
	`, book.Title, book.Author, book.Published, book.ISBN, book.AddedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert book %q: %w", book.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read book id: %w", err)
	}
	book.ID = uint32(id)
	return nil
}

const bookColumns = `id, title, author, published, isbn, added_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	book := &models.Book{}
	var isbn sql.NullString
	var addedAt int64
	if err := row.Scan(&book.ID, &book.Title, &book.Author, &book.Published, &isbn, &addedAt); err != nil {
		return nil, err
	}
	book.ISBN = isbn.String
	book.AddedAt = time.Unix(addedAt, 0)
	return book, nil
}

// GetBook returns the book with the given ID
func (s *Storage) GetBook(ctx context.Context, id uint32) (*models.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrBookNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

// GetBooks returns the books with the given IDs, keyed by ID. Unknown IDs
// are left out.
func (s *Storage) GetBooks(ctx context.Context, ids []uint32) (map[uint32]*models.Book, error) {
	books := make(map[uint32]*models.Book, len(ids))
	if len(ids) == 0 {
		return books, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		books[book.ID] = book
	}
	return books, rows.Err()
}

// AllBooks returns every book ordered by ID
func (s *Storage) AllBooks(ctx context.Context) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// CountBooks returns the number of catalogued books
func (s *Storage) CountBooks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&count)
	return count, err
}

// RecordRebuild records an index rebuild in history
func (s *Storage) RecordRebuild(ctx context.Context, reason string, totalBooks, totalNodes int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_history (reason, total_books, total_nodes, rebuilt_at)
		VALUES (?, ?, ?, ?)
	`, reason, totalBooks, totalNodes, time.Now().Unix())
	return err
}

// LastRebuild returns the most recent rebuild, or nil if the index was never
// rebuilt
func (s *Storage) LastRebuild(ctx context.Context) (*models.RebuildRecord, error) {
	rec := &models.RebuildRecord{}
	var rebuiltAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT reason, total_books, total_nodes, rebuilt_at
		FROM index_history
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&rec.Reason, &rec.Books, &rec.Nodes, &rebuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index history: %w", err)
	}
	rec.RebuiltAt = time.Unix(rebuiltAt, 0)
	return rec, nil
}
