package database

import (
	"bytes"
	"context"

	"github.com/koustreak/tabula/internal/logger"
)

// TableWriter streams rows into a copy-in statement. Each Insert sends
// exactly one line; nothing is buffered across calls.
//
// Like TableReader, a writer holds exclusive use of its transaction until
// Finish or Close. Close after Finish is a no-op, so
//
//	w, err := database.NewTableWriter(ctx, tx, stmt)
//	...
//	defer w.Close(ctx)
//
// abandons the copy on any early return.
type TableWriter struct {
	guard    *Tx
	conn     Conn
	line     []byte
	cells    []Cell
	rows     int64
	finished bool
	log      *logger.Logger
}

// NewTableWriter issues a copy-in statement (e.g. COPY t FROM STDIN) on tx.
func NewTableWriter(ctx context.Context, tx *Tx, statement string) (*TableWriter, error) {
	g, err := tx.guard()
	if err != nil {
		return nil, err
	}
	if err := g.conn().CopyIn(ctx, statement); err != nil {
		g.release()
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.DebugWith("copy in started", map[string]any{"statement": statement})
	return &TableWriter{guard: g, conn: g.conn(), log: log}, nil
}

// InsertRaw sends data verbatim. data must consist of complete copy lines.
func (w *TableWriter) InsertRaw(ctx context.Context, data []byte) error {
	if w.finished {
		return errMisuse("table writer is already finished")
	}
	if err := w.conn.PutCopyData(ctx, data); err != nil {
		return err
	}
	w.rows += int64(bytes.Count(data, []byte{copyNewline}))
	return nil
}

// Insert encodes values into one line and sends it. A value may be an
// Argument (see Arg), nil for NULL, or any value whose type has a
// registered codec. Values spanning several columns contribute all of
// them, in order.
func (w *TableWriter) Insert(ctx context.Context, values ...any) error {
	if len(values) == 0 {
		return errInvalidInput("insert requires at least one value")
	}
	cells := w.cells[:0]
	var err error
	for _, v := range values {
		switch v := v.(type) {
		case Argument:
			cells, err = v.EncodeCells(cells)
		case nil:
			cells = append(cells, Cell{})
		default:
			cells, err = encodeValue(v, cells)
		}
		if err != nil {
			return err
		}
	}
	w.cells = cells
	w.line = AppendLine(w.line[:0], cells)
	return w.InsertRaw(ctx, w.line)
}

// WriteRow inserts one value of a typed row.
func WriteRow[T any](ctx context.Context, w *TableWriter, c Codec[T], v T) error {
	return w.Insert(ctx, Arg(c, v))
}

// Rows returns the number of lines sent so far.
func (w *TableWriter) Rows() int64 { return w.rows }

// Finish completes the copy and returns the number of rows the server
// stored. It may be called once.
func (w *TableWriter) Finish(ctx context.Context) (int64, error) {
	if w.finished {
		return 0, errMisuse("table writer is already finished")
	}
	w.finished = true
	defer w.guard.release()

	n, err := w.conn.EndCopy(ctx)
	if err != nil {
		w.log.ErrorWith("copy in failed", err, map[string]any{"sent": w.rows})
		return 0, err
	}
	w.log.DebugWith("copy in finished", map[string]any{"sent": w.rows, "stored": n})
	return n, nil
}

// Close abandons the copy unless Finish already ran.
func (w *TableWriter) Close(ctx context.Context) error {
	if w.finished {
		return nil
	}
	w.finished = true
	defer w.guard.release()
	w.log.DebugWith("copy in aborted", map[string]any{"sent": w.rows})
	return w.conn.AbortCopy(ctx, "table writer closed before finish")
}
