package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/databasetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// selectOne answers any non-copy statement with a one-row result.
func selectOne(string, []any) (*database.Result, error) {
	return database.NewResult([]string{"?column?"}, [][][]byte{{[]byte("1")}}, "SELECT 1", 1), nil
}

// begin opens a session on a fresh connection to db and starts a
// transaction on it.
func begin(t *testing.T, db *databasetest.DB) (*database.Session, *database.Tx) {
	t.Helper()
	ctx := context.Background()
	s := database.NewSession(db.Conn())
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s, tx
}
