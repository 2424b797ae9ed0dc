package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"booktrack/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_books (
	isbn           TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	author         TEXT NOT NULL DEFAULT '',
	publisher      TEXT NOT NULL DEFAULT '',
	published_date TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	cover_url      TEXT NOT NULL DEFAULT '',
	total_pages    INTEGER NOT NULL DEFAULT 0,
	category_id    INTEGER
)`

// SQLiteSource serves an offline catalog snapshot from a local SQLite file
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the snapshot at path. ":memory:"
// gives an empty in-process catalog.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: init sqlite schema: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the database
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a snapshot entry
func (s *SQLiteSource) Put(ctx context.Context, b *models.Book) error {
	var published string
	if b.PublishedDate != nil {
		published = b.PublishedDate.Format(models.DateLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO catalog_books
			(isbn, title, author, publisher, published_date, description, cover_url, total_pages, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ISBN, b.Title, b.Author, b.Publisher, published, b.Description, b.CoverURL, b.TotalPages, b.CategoryID,
	)
	if err != nil {
		return fmt.Errorf("catalog: put %s: %w", b.ISBN, err)
	}
	return nil
}

const sqliteColumns = `isbn, title, author, publisher, published_date, description, cover_url, total_pages, category_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*models.Book, error) {
	var (
		b          models.Book
		published  string
		categoryID sql.NullInt64
	)
	if err := row.Scan(&b.ISBN, &b.Title, &b.Author, &b.Publisher, &published, &b.Description,
		&b.CoverURL, &b.TotalPages, &categoryID); err != nil {
		return nil, err
	}
	if t, err := time.Parse(models.DateLayout, published); err == nil {
		b.PublishedDate = &t
	}
	if categoryID.Valid {
		id := categoryID.Int64
		b.CategoryID = &id
	}
	return &b, nil
}

func (s *SQLiteSource) Lookup(ctx context.Context, isbn string) (*models.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM catalog_books WHERE isbn = ?`, isbn))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: sqlite lookup: %w", err)
	}
	return b, nil
}

func (s *SQLiteSource) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM catalog_books WHERE title LIKE ? OR author LIKE ? ORDER BY title LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: sqlite search: %w", err)
	}
	defer rows.Close()

	books := []*models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: sqlite scan: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}
