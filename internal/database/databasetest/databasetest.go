// Package databasetest provides an in-memory database.Conn for tests.
//
// A DB stores tables as lists of copy lines. Copy-out statements
// (COPY t TO STDOUT, or SELECT ... FROM t) stream a table's lines; copy-in
// statements (COPY t FROM STDIN, or LOAD DATA ... INTO TABLE t) append to
// it when the copy ends. Transaction control statements are recorded and
// succeed; every other statement goes to the DB's Handler.
//
// Copy-in data is applied at EndCopy regardless of any enclosing
// transaction; the fake has no isolation.
package databasetest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

// Handler answers a statement that is neither transaction control nor copy.
type Handler func(sql string, args []any) (*database.Result, error)

// DB is a set of tables shared by the connections it hands out.
type DB struct {
	mu         sync.Mutex
	tables     map[string][]string
	statements []string
	handler    Handler

	failAfter int
	failErr   error

	// PingErr is returned by Ping.
	PingErr error

	// ExecDelay holds every handled statement this long, or until its
	// context is done, which fails the statement with a Timeout error.
	ExecDelay time.Duration
}

// New returns an empty database whose non-copy statements go to h. A nil h
// rejects them.
func New(h Handler) *DB {
	return &DB{tables: make(map[string][]string), handler: h}
}

// Load replaces a table's content. Lines are given without their newline.
func (db *DB) Load(table string, lines ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[table] = append([]string(nil), lines...)
}

// Lines returns a table's content.
func (db *DB) Lines(table string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.tables[table]...)
}

// Statements returns every statement executed so far, in order.
func (db *DB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.statements...)
}

// FailCopyOut makes every copy-out stream fail with err after n lines.
func (db *DB) FailCopyOut(n int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failAfter, db.failErr = n, err
}

// Ping implements database.Connector.
func (db *DB) Ping(context.Context) error { return db.PingErr }

// Acquire implements database.Connector.
func (db *DB) Acquire(context.Context) (database.Conn, error) {
	return db.Conn(), nil
}

// Conn returns a new connection.
func (db *DB) Conn() *Conn {
	return &Conn{db: db}
}

func (db *DB) record(sql string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.statements = append(db.statements, sql)
}

type copyMode int

const (
	modeIdle copyMode = iota
	modeOut
	modeIn
)

// Conn is one in-memory session.
type Conn struct {
	db     *DB
	mode   copyMode
	closed bool

	out     []string
	pos     int
	failAt  int
	failErr error
	line    []byte

	table string
	in    bytes.Buffer
}

var _ database.Conn = (*Conn)(nil)

func (c *Conn) check() error {
	if c.closed {
		return errs.New(errs.ErrKindConnectionFailed, "connection is closed")
	}
	if c.mode != modeIdle {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is in copy mode")
	}
	return nil
}

// Exec implements database.Conn.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (*database.Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.db.record(sql)
	if tag, ok := controlTag(sql); ok {
		return database.NewResult(nil, nil, tag, -1), nil
	}
	if c.db.handler == nil {
		return nil, errs.Newf(errs.ErrKindQueryFailed, "unsupported statement: %s", sql)
	}
	if c.db.ExecDelay > 0 {
		timer := time.NewTimer(c.db.ExecDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, errs.Wrap(errs.ErrKindTimeout, "statement canceled", ctx.Err())
		}
	}
	return c.db.handler(sql, args)
}

// CopyOut implements database.Conn. The column count is never announced.
func (c *Conn) CopyOut(_ context.Context, sql string, _ ...any) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	c.db.record(sql)
	table, ok := copyOutTable(sql)
	if !ok {
		return 0, errs.Newf(errs.ErrKindQueryFailed, "not a copy-out statement: %s", sql)
	}

	c.db.mu.Lock()
	lines, exists := c.db.tables[table]
	c.out = append([]string(nil), lines...)
	c.failAt, c.failErr = c.db.failAfter, c.db.failErr
	c.db.mu.Unlock()
	if !exists {
		return 0, errs.Newf(errs.ErrKindNotFound, "relation %q does not exist", table)
	}
	c.pos = 0
	c.mode = modeOut
	return -1, nil
}

// GetCopyData implements database.Conn.
func (c *Conn) GetCopyData(context.Context) ([]byte, error) {
	if c.mode != modeOut {
		return nil, errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-out mode")
	}
	if c.failErr != nil && c.pos == c.failAt {
		c.mode = modeIdle
		return nil, c.failErr
	}
	if c.pos == len(c.out) {
		c.mode = modeIdle
		return nil, io.EOF
	}
	c.line = append(append(c.line[:0], c.out[c.pos]...), '\n')
	c.pos++
	return c.line, nil
}

// CopyIn implements database.Conn.
func (c *Conn) CopyIn(_ context.Context, sql string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.db.record(sql)
	table, ok := copyInTable(sql)
	if !ok {
		return errs.Newf(errs.ErrKindQueryFailed, "not a copy-in statement: %s", sql)
	}
	c.table = table
	c.in.Reset()
	c.mode = modeIn
	return nil
}

// PutCopyData implements database.Conn.
func (c *Conn) PutCopyData(_ context.Context, data []byte) error {
	if c.mode != modeIn {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	c.in.Write(data)
	return nil
}

// EndCopy implements database.Conn.
func (c *Conn) EndCopy(context.Context) (int64, error) {
	if c.mode != modeIn {
		return 0, errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	c.mode = modeIdle
	data := c.in.String()
	if data != "" && !strings.HasSuffix(data, "\n") {
		return 0, errs.New(errs.ErrKindQueryFailed, "copy data ends with an incomplete line")
	}
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	if data == "" {
		lines = nil
	}

	c.db.mu.Lock()
	c.db.tables[c.table] = append(c.db.tables[c.table], lines...)
	c.db.mu.Unlock()
	return int64(len(lines)), nil
}

// AbortCopy implements database.Conn.
func (c *Conn) AbortCopy(context.Context, string) error {
	if c.mode != modeIn {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	c.mode = modeIdle
	c.in.Reset()
	return nil
}

// Close implements database.Conn.
func (c *Conn) Close(context.Context) error {
	c.closed = true
	c.mode = modeIdle
	return nil
}

// InCopy reports whether a copy is open.
func (c *Conn) InCopy() bool { return c.mode != modeIdle }

func controlTag(sql string) (string, bool) {
	upper := strings.ToUpper(sql)
	for _, kw := range []string{"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE"} {
		if strings.HasPrefix(upper, kw) {
			return kw, true
		}
	}
	return "", false
}

var unquote = strings.NewReplacer(`"`, "", "`", "")

// firstName returns the identifier at the start of s.
func firstName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " ("); i >= 0 {
		s = s[:i]
	}
	return unquote.Replace(s)
}

func copyOutTable(sql string) (string, bool) {
	upper := strings.ToUpper(sql)
	switch {
	case strings.HasPrefix(upper, "COPY ") && strings.HasSuffix(upper, " TO STDOUT"):
		name := firstName(sql[len("COPY "):])
		return name, name != ""
	case strings.HasPrefix(upper, "SELECT "):
		i := strings.LastIndex(upper, " FROM ")
		if i < 0 {
			return "", false
		}
		name := firstName(sql[i+len(" FROM "):])
		return name, name != ""
	}
	return "", false
}

func copyInTable(sql string) (string, bool) {
	upper := strings.ToUpper(sql)
	switch {
	case strings.HasPrefix(upper, "COPY ") && strings.HasSuffix(upper, " FROM STDIN"):
		name := firstName(sql[len("COPY "):])
		return name, name != ""
	case strings.HasPrefix(upper, "LOAD DATA "):
		i := strings.Index(upper, " INTO TABLE ")
		if i < 0 {
			return "", false
		}
		name := firstName(sql[i+len(" INTO TABLE "):])
		return name, name != ""
	}
	return "", false
}
