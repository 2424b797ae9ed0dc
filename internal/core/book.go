package core

import (
	"context"
	"errors"
	"fmt"

	"booktrack/internal/platform/catalog"
	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// BookService resolves books, importing them from the catalog on first use
type BookService interface {
	FetchOrCreate(ctx context.Context, isbn string) (*models.Book, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Book, error)
}

type bookService struct {
	bookRepo repository.BookRepository
	source   catalog.Source
}

// NewBookService creates a new book service
func NewBookService(bookRepo repository.BookRepository, source catalog.Source) BookService {
	return &bookService{
		bookRepo: bookRepo,
		source:   source,
	}
}

// FetchOrCreate returns the stored book or imports it from the catalog
func (s *bookService) FetchOrCreate(ctx context.Context, isbn string) (*models.Book, error) {
	isbn = utils.NormalizeISBN(isbn)
	if isbn == "" {
		return nil, models.ErrFieldRequired.WithDetail("field", "isbn")
	}
	if err := utils.ValidateISBN(isbn); err != nil {
		return nil, fmt.Errorf("isbn %q: %w", isbn, err)
	}

	book, err := s.bookRepo.GetByISBN(ctx, isbn)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, models.ErrBookNotFound) {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	if s.source == nil {
		return nil, models.ErrBookNotFound
	}

	lookupCtx, cancel := utils.WithLongTimeout(ctx)
	defer cancel()

	book, err = s.source.Lookup(lookupCtx, isbn)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return nil, models.ErrBookNotFound
	case err != nil:
		logger.WithFields(map[string]interface{}{"isbn": isbn}).WithError(err).Warn("catalog lookup failed")
		return nil, models.ErrCatalogUnavailable.Wrap(err)
	}
	book.ISBN = isbn

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to store book: %w", err)
	}

	// a concurrent import may have won; read back the stored row
	stored, err := s.bookRepo.GetByISBN(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to reload book: %w", err)
	}
	return stored, nil
}

// Search proxies a keyword search to the catalog without storing results
func (s *bookService) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	if utils.IsBlank(query) {
		return nil, models.ErrFieldRequired.WithDetail("field", "query")
	}
	if s.source == nil {
		return []*models.Book{}, nil
	}

	searchCtx, cancel := utils.WithLongTimeout(ctx)
	defer cancel()

	books, err := s.source.Search(searchCtx, query, limit)
	if err != nil {
		return nil, models.ErrCatalogUnavailable.Wrap(err)
	}
	return books, nil
}
