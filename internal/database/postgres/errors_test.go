package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/tabula/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"no rows", pgx.ErrNoRows, errs.ErrKindNotFound},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, errs.ErrKindNotFound},
		{"privilege", &pgconn.PgError{Code: "42501"}, errs.ErrKindPermissionDenied},
		{"canceled by server", &pgconn.PgError{Code: "57014"}, errs.ErrKindTimeout},
		{"bad copy data", &pgconn.PgError{Code: "22P04"}, errs.ErrKindInvalidInput},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errs.ErrKindInvalidInput},
		{"connection class", &pgconn.PgError{Code: "08006"}, errs.ErrKindConnectionFailed},
		{"auth class", &pgconn.PgError{Code: "28P01"}, errs.ErrKindPermissionDenied},
		{"syntax", &pgconn.PgError{Code: "42601"}, errs.ErrKindQueryFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "statement failed")))
		})
	}
}

func TestMapError_KeepsServerMessage(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "42P01", Message: `relation "ghosts" does not exist`}, "copy out failed")
	assert.Contains(t, err.Error(), `copy out failed: relation "ghosts" does not exist`)
}

func TestRowsAffected(t *testing.T) {
	tests := []struct {
		tag  string
		want int64
	}{
		{"INSERT 0 5", 5},
		{"UPDATE 3", 3},
		{"DELETE 0", 0},
		{"SELECT 7", 7},
		{"COPY 12", 12},
		{"CREATE TABLE", -1},
		{"BEGIN", -1},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, rowsAffected(pgconn.NewCommandTag(tt.tag)))
		})
	}
}
