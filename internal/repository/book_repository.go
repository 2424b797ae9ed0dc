package repository

import (
	"context"
	"errors"

	"booktrack/pkg/models"
)

// BookRepository stores books the first time they are referenced
type BookRepository interface {
	GetByISBN(ctx context.Context, isbn string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	UpdateDifficulty(ctx context.Context, isbn string, tier models.Tier) error
}

type bookRepository struct {
	base
}

// NewBookRepository creates a new book repository
func NewBookRepository(conn PgConnection) BookRepository {
	return &bookRepository{base{conn: conn}}
}

const bookColumns = `isbn, title, author, publisher, published_date, description, cover_url,
	total_pages, category_id, difficulty, created_at, updated_at`

func (r *bookRepository) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`

	var b models.Book
	err := r.q(ctx).QueryRow(ctx, query, isbn).Scan(
		&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.PublishedDate, &b.Description, &b.CoverURL,
		&b.TotalPages, &b.CategoryID, &b.Difficulty, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		err = mapDBError(err, "get_book")
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrBookNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts book. A concurrent insert of the same ISBN is not an error;
// the stored row wins and book is left as passed in.
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (isbn, title, author, publisher, published_date, description, cover_url,
			total_pages, category_id, difficulty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (isbn) DO NOTHING
	`
	_, err := r.q(ctx).Exec(ctx, query,
		book.ISBN, book.Title, book.Author, book.Publisher, book.PublishedDate, book.Description,
		book.CoverURL, book.TotalPages, book.CategoryID, book.Difficulty,
	)
	if err != nil {
		return mapDBError(err, "create_book")
	}
	return nil
}

// UpdateDifficulty fills the cached tier slot
func (r *bookRepository) UpdateDifficulty(ctx context.Context, isbn string, tier models.Tier) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE books SET difficulty = $2, updated_at = NOW() WHERE isbn = $1`, isbn, string(tier))
	if err != nil {
		return mapDBError(err, "update_difficulty")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrBookNotFound
	}
	return nil
}
