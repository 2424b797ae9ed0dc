package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booktrack/internal/platform/catalog"
	"booktrack/pkg/models"
)

type stubSource struct {
	book *models.Book
	err  error
}

func (s stubSource) Lookup(context.Context, string) (*models.Book, error) { return s.book, s.err }

func (s stubSource) Search(context.Context, string, int) ([]*models.Book, error) {
	return []*models.Book{s.book}, s.err
}

func TestFetchOrCreateReturnsStoredBook(t *testing.T) {
	books := &mockBookRepo{}
	books.On("GetByISBN", mock.Anything, testISBN).Return(&models.Book{ISBN: testISBN, Title: "Stored"}, nil)

	book, err := NewBookService(books, stubSource{err: errors.New("must not be called")}).
		FetchOrCreate(context.Background(), "978-89-364-3359-8")
	require.NoError(t, err)
	assert.Equal(t, "Stored", book.Title)
}

func TestFetchOrCreateImports(t *testing.T) {
	books := &mockBookRepo{}
	books.On("GetByISBN", mock.Anything, testISBN).Return(nil, models.ErrBookNotFound).Once()
	books.On("Create", mock.Anything, mock.AnythingOfType("*models.Book")).Return(nil)
	books.On("GetByISBN", mock.Anything, testISBN).Return(&models.Book{ISBN: testISBN, Title: "Imported"}, nil)

	book, err := NewBookService(books, stubSource{book: &models.Book{Title: "Imported"}}).
		FetchOrCreate(context.Background(), testISBN)
	require.NoError(t, err)
	assert.Equal(t, "Imported", book.Title)
	books.AssertExpectations(t)
}

func TestFetchOrCreateFailures(t *testing.T) {
	tests := []struct {
		name    string
		source  catalog.Source
		wantErr error
	}{
		{name: "catalog miss", source: stubSource{err: catalog.ErrNotFound}, wantErr: models.ErrBookNotFound},
		{name: "catalog down", source: stubSource{err: errors.New("dial tcp: refused")}, wantErr: models.ErrExternalUnavailable},
		{name: "no catalog", source: nil, wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books := &mockBookRepo{}
			books.On("GetByISBN", mock.Anything, testISBN).Return(nil, models.ErrBookNotFound)

			_, err := NewBookService(books, tt.source).FetchOrCreate(context.Background(), testISBN)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewBookService(&mockBookRepo{}, nil).FetchOrCreate(context.Background(), "12-34")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
