package mysql

import (
	"context"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
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
		{"no such table", &gomysql.MySQLError{Number: errNoSuchTable}, errs.ErrKindNotFound},
		{"access denied", &gomysql.MySQLError{Number: errAccessDenied}, errs.ErrKindConnectionFailed},
		{"table access", &gomysql.MySQLError{Number: errTableAccessDenied}, errs.ErrKindPermissionDenied},
		{"local infile off", &gomysql.MySQLError{Number: errLocalInfile}, errs.ErrKindPermissionDenied},
		{"duplicate", &gomysql.MySQLError{Number: errDuplicateEntry}, errs.ErrKindInvalidInput},
		{"interrupted", &gomysql.MySQLError{Number: errQueryInterrupted}, errs.ErrKindTimeout},
		{"other", &gomysql.MySQLError{Number: 1064}, errs.ErrKindQueryFailed},
		{"network", errors.New("broken pipe"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "statement failed")))
		})
	}
}
