package database

import "context"

// Conn is the contract a driver fulfils for one dedicated server session.
// Everything above this package talks only to this interface; the postgres
// and mysql packages implement it.
//
// A Conn is used by one goroutine at a time. While a copy is open (between
// CopyOut and the io.EOF from GetCopyData, or between CopyIn and
// EndCopy/AbortCopy) the connection accepts no other statement.
type Conn interface {
	// Exec runs a statement and returns its complete result in text format.
	Exec(ctx context.Context, sql string, args ...any) (*Result, error)

	// CopyOut enters copy-out mode. It returns the number of columns each
	// line carries, or -1 when the backend does not announce it.
	CopyOut(ctx context.Context, sql string, args ...any) (int, error)

	// GetCopyData returns the next raw copy-out line, including its
	// terminating newline. It returns io.EOF once the stream is exhausted;
	// the connection is then out of copy mode. The returned slice is only
	// valid until the next call.
	GetCopyData(ctx context.Context) ([]byte, error)

	// CopyIn enters copy-in mode.
	CopyIn(ctx context.Context, sql string) error

	// PutCopyData sends one raw chunk of copy-in data.
	PutCopyData(ctx context.Context, data []byte) error

	// EndCopy finalizes copy-in mode and returns the number of rows the
	// server stored.
	EndCopy(ctx context.Context) (int64, error)

	// AbortCopy abandons copy-in mode; the server discards the data.
	AbortCopy(ctx context.Context, reason string) error

	// Close releases the session back to its pool.
	Close(ctx context.Context) error
}

// Connector hands out dedicated sessions from a connection pool.
type Connector interface {
	// Acquire reserves one connection for exclusive use until Conn.Close.
	Acquire(ctx context.Context) (Conn, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error
}
