// Package mysql implements database.Conn on top of go-sql-driver/mysql.
//
// MySQL has no COPY protocol. Copy-out runs the statement as a query and
// re-encodes each row as a text copy line; copy-in runs
// LOAD DATA LOCAL INFILE against a reader handler fed by PutCopyData.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"unicode"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/logger"
)

// Driver is a MySQL database.Connector backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := buildPool(cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{db: db}

	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

// Acquire pins one pooled connection so session state (transactions,
// savepoints) survives across statements.
func (d *Driver) Acquire(ctx context.Context) (database.Conn, error) {
	sc, err := d.db.Conn(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &conn{sc: sc}, nil
}

type conn struct {
	sc  *sql.Conn
	out *copyOut
	in  *copyIn
}

func (c *conn) idle() error {
	if c.out != nil || c.in != nil {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is in copy mode")
	}
	return nil
}

// verb returns the leading keyword of a statement, skipping opening
// parentheses.
func verb(query string) string {
	s := strings.TrimLeftFunc(query, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
	if i := strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' }); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(query string) bool {
	switch verb(query) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES", "TABLE":
		return true
	}
	return false
}

// Exec implements database.Conn.
func (c *conn) Exec(ctx context.Context, query string, args ...any) (*database.Result, error) {
	if err := c.idle(); err != nil {
		return nil, err
	}
	tag := verb(query)
	logger.FromContext(ctx).Debugf("mysql: %s", tag)

	if !returnsRows(query) {
		res, err := c.sc.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapError(err, "statement failed")
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		return database.NewResult(nil, nil, tag, n), nil
	}

	rows, err := c.sc.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	raw := make([]sql.RawBytes, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var data [][][]byte
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, mapError(err, "query failed")
		}
		row := make([][]byte, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = append([]byte{}, v...)
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "query failed")
	}
	return database.NewResult(columns, data, tag, int64(len(data))), nil
}

type copyOut struct {
	rows  *sql.Rows
	raw   []sql.RawBytes
	dest  []any
	cells []database.Cell
	line  []byte
}

// CopyOut implements database.Conn by running the statement as a query.
func (c *conn) CopyOut(ctx context.Context, query string, args ...any) (int, error) {
	if err := c.idle(); err != nil {
		return 0, err
	}
	rows, err := c.sc.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "copy out failed")
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return 0, mapError(err, "copy out failed")
	}

	o := &copyOut{
		rows:  rows,
		raw:   make([]sql.RawBytes, len(columns)),
		dest:  make([]any, len(columns)),
		cells: make([]database.Cell, len(columns)),
	}
	for i := range o.raw {
		o.dest[i] = &o.raw[i]
	}
	c.out = o
	return len(columns), nil
}

// GetCopyData implements database.Conn.
func (c *conn) GetCopyData(context.Context) ([]byte, error) {
	o := c.out
	if o == nil {
		return nil, errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-out mode")
	}
	if !o.rows.Next() {
		c.out = nil
		err := o.rows.Err()
		_ = o.rows.Close()
		if err != nil {
			return nil, mapError(err, "copy out failed")
		}
		return nil, io.EOF
	}
	if err := o.rows.Scan(o.dest...); err != nil {
		c.out = nil
		_ = o.rows.Close()
		return nil, mapError(err, "copy out failed")
	}
	for i, v := range o.raw {
		o.cells[i] = database.Cell{Text: string(v), Valid: v != nil}
	}
	o.line = database.AppendLine(o.line[:0], o.cells)
	return o.line, nil
}

type copyIn struct {
	handler string
	pw      *io.PipeWriter
	g       *errgroup.Group
	rows    int64
}

// CopyIn implements database.Conn. The statement must read from
// database.MySQLStdin; each copy binds that name to its own reader.
func (c *conn) CopyIn(ctx context.Context, statement string) error {
	if err := c.idle(); err != nil {
		return err
	}
	if !strings.Contains(statement, database.MySQLStdin) {
		return errs.Newf(errs.ErrKindInvalidInput, "copy-in statement must load from '%s'", database.MySQLStdin)
	}

	handler := "tabula-" + uuid.NewString()
	stmt := strings.Replace(statement, database.MySQLStdin, "Reader::"+handler, 1)
	pr, pw := io.Pipe()
	gomysql.RegisterReaderHandler(handler, func() io.Reader { return pr })

	in := &copyIn{handler: handler, pw: pw, g: new(errgroup.Group)}
	in.g.Go(func() error {
		res, err := c.sc.ExecContext(ctx, stmt)
		if err == nil {
			in.rows, err = res.RowsAffected()
		}
		// unblock PutCopyData when the server rejects the load early
		pr.CloseWithError(err)
		return err
	})
	c.in = in
	return nil
}

// PutCopyData implements database.Conn.
func (c *conn) PutCopyData(_ context.Context, data []byte) error {
	if c.in == nil {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	if _, err := c.in.pw.Write(data); err != nil {
		return mapError(err, "copy in failed")
	}
	return nil
}

// EndCopy implements database.Conn.
func (c *conn) EndCopy(context.Context) (int64, error) {
	if c.in == nil {
		return 0, errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	in := c.in
	c.in = nil
	defer gomysql.DeregisterReaderHandler(in.handler)

	_ = in.pw.Close()
	if err := in.g.Wait(); err != nil {
		return 0, mapError(err, "copy in failed")
	}
	return in.rows, nil
}

// AbortCopy implements database.Conn. MySQL keeps rows already loaded
// unless the enclosing transaction is rolled back.
func (c *conn) AbortCopy(ctx context.Context, reason string) error {
	if c.in == nil {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	in := c.in
	c.in = nil
	defer gomysql.DeregisterReaderHandler(in.handler)

	_ = in.pw.CloseWithError(errors.New(reason))
	if err := in.g.Wait(); err != nil {
		logger.FromContext(ctx).Debugf("mysql: load aborted: %v", err)
	}
	return nil
}

// Close implements database.Conn.
func (c *conn) Close(ctx context.Context) error {
	if c.out != nil {
		_ = c.out.rows.Close()
		c.out = nil
	}
	if c.in != nil {
		_ = c.AbortCopy(ctx, "connection closed during copy")
	}
	if err := c.sc.Close(); err != nil {
		return mapError(err, "failed to release connection")
	}
	return nil
}
