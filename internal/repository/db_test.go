package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"booktrack/pkg/models"
)

func TestMapDBError(t *testing.T) {
	tests := []struct {
		Desc string
		Err  error
		Kind error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, models.ErrInvalidInput},
		{"check violation", &pgconn.PgError{Code: "23514"}, models.ErrInvalidInput},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, models.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.Desc, func(t *testing.T) {
			err := mapDBError(tt.Err, "op")
			assert.ErrorIs(t, err, tt.Kind)
			assert.Contains(t, err.Error(), "op")
		})
	}

	plain := errors.New("connection reset")
	err := mapDBError(plain, "get_plan")
	assert.ErrorIs(t, err, plain)
	assert.EqualError(t, err, "database error during get_plan: connection reset")
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: openSessionIndex}
	assert.True(t, isUniqueViolation(err, openSessionIndex))
	assert.True(t, isUniqueViolation(err, ""))
	assert.False(t, isUniqueViolation(err, "uq_plans_wishlist"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
}
