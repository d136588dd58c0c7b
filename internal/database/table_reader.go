package database

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/koustreak/tabula/internal/logger"
)

// TableReader streams the output of a copy-out statement line by line.
//
// Creating a reader takes exclusive use of the transaction: until the
// stream is exhausted or Close is called, the transaction and every scope
// enclosing it reject other statements. Always Close a reader; it is safe
// to do so after exhaustion or an error.
//
// Rows and Fields obtained from the reader are only valid until the next
// fetch. A TableReader is not safe for concurrent use.
type TableReader struct {
	guard   *Tx
	conn    Conn
	columns int // -1 until known
	raw     []byte
	cells   []Cell
	hasData bool
	done    bool
	closed  bool
	err     error
	lines   int64
	log     *logger.Logger
}

// NewTableReader issues a copy-out statement (e.g. COPY t TO STDOUT) on tx.
func NewTableReader(ctx context.Context, tx *Tx, statement string, args ...any) (*TableReader, error) {
	g, err := tx.guard()
	if err != nil {
		return nil, err
	}
	columns, err := g.conn().CopyOut(ctx, statement, args...)
	if err != nil {
		g.release()
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.DebugWith("copy out started", map[string]any{
		"statement": statement,
		"columns":   columns,
	})
	return &TableReader{guard: g, conn: g.conn(), columns: columns, log: log}, nil
}

// Columns returns the number of columns per line, or -1 when the backend
// did not announce it and no line has been parsed yet.
func (r *TableReader) Columns() int { return r.columns }

// FetchRaw reads the next line, newline included, and returns nil at the
// end of the stream. The returned slice and anything derived from the
// previous line are invalidated by the next fetch.
func (r *TableReader) FetchRaw(ctx context.Context) ([]byte, error) {
	if r.closed {
		return nil, errMisuse("table reader is closed")
	}
	r.hasData = false
	r.raw = r.raw[:0]
	if r.done {
		return nil, nil
	}
	line, err := r.conn.GetCopyData(ctx)
	if errors.Is(err, io.EOF) {
		r.finish()
		return nil, nil
	}
	if err != nil {
		r.err = err
		r.finish()
		return nil, err
	}
	r.raw = append(r.raw, line...)
	return r.raw, nil
}

// Parse splits the last fetched line into fields and reports whether it
// carried data.
func (r *TableReader) Parse() (bool, error) {
	if len(r.raw) == 0 {
		r.hasData = false
		return false, nil
	}
	r.cells = splitLine(r.raw, r.cells)
	if r.columns < 0 {
		r.columns = len(r.cells)
	}
	if len(r.cells) != r.columns {
		r.hasData = false
		return false, errConversionf("copy line %d has %d columns, expected %d", r.lines+1, len(r.cells), r.columns)
	}
	r.hasData = true
	r.lines++
	return true, nil
}

// Next advances to the next line. It returns false at the end of the
// stream or on error; check Err afterwards.
func (r *TableReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	line, err := r.FetchRaw(ctx)
	if err != nil {
		r.err = err
		return false
	}
	if line == nil {
		return false
	}
	ok, err := r.Parse()
	if err != nil {
		r.err = err
		return false
	}
	return ok
}

// Err returns the error that stopped Next or All.
func (r *TableReader) Err() error { return r.err }

// HasData reports whether a parsed line is available through Row.
func (r *TableReader) HasData() bool { return r.hasData }

// Row returns the current line. It has no columns unless HasData.
func (r *TableReader) Row() Row {
	if !r.hasData {
		return Row{src: r}
	}
	return Row{src: r, columns: len(r.cells)}
}

// All yields the remaining lines. The sequence can only be traversed
// once, and each Row is invalidated when the next one is produced.
func (r *TableReader) All(ctx context.Context) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for r.Next(ctx) {
			if !yield(r.Row()) {
				return
			}
		}
	}
}

// Close ends the stream, discarding unread lines, and returns exclusive
// use of the transaction to its owner.
func (r *TableReader) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.hasData = false
	defer r.guard.release()

	var drained int64
	for !r.done {
		_, err := r.conn.GetCopyData(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.done = true
			return err
		}
		drained++
	}
	r.done = true
	r.log.DebugWith("copy out closed", map[string]any{
		"lines":     r.lines,
		"discarded": drained,
	})
	return nil
}

func (r *TableReader) finish() {
	r.done = true
	r.guard.release()
}

// --- source ---

func (r *TableReader) isNull(_, col int) bool { return !r.cells[col].Valid }

func (r *TableReader) text(_, col int) string { return r.cells[col].Text }

func (r *TableReader) name(int) (string, error) {
	return "", errOutOfRange("column names are not available in a copy stream")
}

func (r *TableReader) index(name string) (int, error) {
	return 0, errOutOfRange("column not found: %s (column names are not available in a copy stream)", name)
}
