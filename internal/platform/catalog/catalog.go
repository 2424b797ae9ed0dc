// Package catalog looks up book metadata from external sources.
package catalog

import (
	"context"
	"errors"

	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

// ErrNotFound means the source answered but has no such book
var ErrNotFound = errors.New("catalog: book not found")

// Source resolves books by ISBN and searches by keyword
type Source interface {
	Lookup(ctx context.Context, isbn string) (*models.Book, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Book, error)
}

// Chain tries sources in order. A miss falls through to the next source; a
// transport failure is remembered and reported only if no source has the
// book.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, isbn string) (*models.Book, error) {
	var lastErr error
	for _, src := range c {
		book, err := src.Lookup(ctx, isbn)
		if err == nil {
			return book, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// Search returns the first non-empty result set
func (c Chain) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	var lastErr error
	for _, src := range c {
		books, err := src.Search(ctx, query, limit)
		if err != nil {
			lastErr = err
			continue
		}
		if len(books) > 0 {
			return books, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return []*models.Book{}, nil
}

// Recorder accepts books for later offline lookups; *SQLiteSource is one
type Recorder interface {
	Put(ctx context.Context, b *models.Book) error
}

// Record wraps src so every book it resolves by ISBN is also written to rec.
// A failed write is logged and does not fail the lookup.
func Record(src Source, rec Recorder) Source {
	return recording{src: src, rec: rec}
}

type recording struct {
	src Source
	rec Recorder
}

func (r recording) Lookup(ctx context.Context, isbn string) (*models.Book, error) {
	book, err := r.src.Lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if err := r.rec.Put(ctx, book); err != nil {
		logger.Warnf("catalog: failed to record %s: %v", book.ISBN, err)
	}
	return book, nil
}

func (r recording) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	return r.src.Search(ctx, query, limit)
}
