// Package postgres implements database.Conn on top of pgx. Statements run
// through the extended protocol with text-format results; copy streams use
// pgconn's COPY TO STDOUT / COPY FROM STDIN support fed through an io.Pipe.
package postgres

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/logger"
)

// Driver is a PostgreSQL database.Connector backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	pool, err := buildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{pool: pool}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

// Acquire reserves a pooled connection for one session.
func (d *Driver) Acquire(ctx context.Context) (database.Conn, error) {
	pc, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &conn{pooled: pc}, nil
}

var errCopyAbandoned = errors.New("copy abandoned by client")

// conn is one pooled connection. At most one of out and in is set.
type conn struct {
	pooled *pgxpool.Conn
	out    *copyOut
	in     *copyIn
}

var textResults = pgx.QueryResultFormats{pgx.TextFormatCode}

func (c *conn) idle() error {
	if c.out != nil || c.in != nil {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is in copy mode")
	}
	return nil
}

// Exec implements database.Conn.
func (c *conn) Exec(ctx context.Context, sql string, args ...any) (*database.Result, error) {
	if err := c.idle(); err != nil {
		return nil, err
	}
	rows, err := c.pooled.Query(ctx, sql, append([]any{textResults}, args...)...)
	if err != nil {
		return nil, mapError(err, "statement failed")
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = d.Name
	}

	var data [][][]byte
	for rows.Next() {
		raw := rows.RawValues()
		row := make([][]byte, len(raw))
		for i, v := range raw {
			row[i] = bytes.Clone(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "statement failed")
	}

	tag := rows.CommandTag()
	logger.FromContext(ctx).Debugf("postgres: %s", tag)
	return database.NewResult(columns, data, tag.String(), rowsAffected(tag)), nil
}

// rowsAffected returns the row count of tags that carry one, -1 otherwise.
func rowsAffected(tag pgconn.CommandTag) int64 {
	if tag.Insert() || tag.Update() || tag.Delete() || tag.Select() {
		return tag.RowsAffected()
	}
	s := tag.String()
	if strings.HasPrefix(s, "COPY") || strings.HasPrefix(s, "MERGE") {
		return tag.RowsAffected()
	}
	return -1
}

type copyOut struct {
	pr   *io.PipeReader
	br   *bufio.Reader
	line []byte
	g    *errgroup.Group
}

// CopyOut implements database.Conn. PostgreSQL does not report the column
// count through pgconn, so it is always -1.
func (c *conn) CopyOut(ctx context.Context, sql string, args ...any) (int, error) {
	if err := c.idle(); err != nil {
		return 0, err
	}
	if len(args) > 0 {
		return 0, errs.New(errs.ErrKindInvalidInput, "COPY statements do not take parameters")
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	pgConn := c.pooled.Conn().PgConn()
	g.Go(func() error {
		_, err := pgConn.CopyTo(gctx, pw, sql)
		pw.CloseWithError(err)
		return err
	})
	c.out = &copyOut{pr: pr, br: bufio.NewReader(pr), g: g}

	// Surface statement errors (bad table, permissions) here rather than
	// on the first read.
	if _, err := c.out.br.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		c.out = nil
		if werr := g.Wait(); werr != nil {
			return 0, mapError(werr, "copy out failed")
		}
		return 0, mapError(err, "copy out failed")
	}
	return -1, nil
}

// GetCopyData implements database.Conn.
func (c *conn) GetCopyData(context.Context) ([]byte, error) {
	if c.out == nil {
		return nil, errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-out mode")
	}
	o := c.out
	o.line = o.line[:0]
	for {
		chunk, err := o.br.ReadSlice('\n')
		o.line = append(o.line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil || (errors.Is(err, io.EOF) && len(o.line) > 0) {
			return o.line, nil
		}
		c.out = nil
		if werr := o.g.Wait(); werr != nil {
			return nil, mapError(werr, "copy out failed")
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, mapError(err, "copy out failed")
	}
}

type copyIn struct {
	pw  *io.PipeWriter
	g   *errgroup.Group
	tag pgconn.CommandTag
}

// CopyIn implements database.Conn.
func (c *conn) CopyIn(ctx context.Context, sql string) error {
	if err := c.idle(); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	in := &copyIn{pw: pw, g: new(errgroup.Group)}
	pgConn := c.pooled.Conn().PgConn()
	in.g.Go(func() error {
		tag, err := pgConn.CopyFrom(ctx, pr, sql)
		in.tag = tag
		// unblock PutCopyData when the server rejects the copy early
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
	_ = in.pw.Close()
	if err := in.g.Wait(); err != nil {
		return 0, mapError(err, "copy in failed")
	}
	return in.tag.RowsAffected(), nil
}

// AbortCopy implements database.Conn. The server answers the abort with an
// error, which is expected and not returned.
func (c *conn) AbortCopy(ctx context.Context, reason string) error {
	if c.in == nil {
		return errs.New(errs.ErrKindProtocolMisuse, "connection is not in copy-in mode")
	}
	in := c.in
	c.in = nil
	_ = in.pw.CloseWithError(errors.New(reason))
	if err := in.g.Wait(); err != nil {
		logger.FromContext(ctx).Debugf("postgres: copy aborted: %v", err)
	}
	return nil
}

// Close implements database.Conn. An open copy is abandoned, which makes
// pgx close the underlying connection instead of returning it to the pool.
func (c *conn) Close(ctx context.Context) error {
	if c.out != nil {
		_ = c.out.pr.CloseWithError(errCopyAbandoned)
		_ = c.out.g.Wait()
		c.out = nil
	}
	if c.in != nil {
		_ = c.AbortCopy(ctx, errCopyAbandoned.Error())
	}
	c.pooled.Release()
	return nil
}
