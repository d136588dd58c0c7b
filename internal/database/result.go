package database

import (
	"iter"
	"strings"
)

// source is the cell storage a Row reads from. A Result is one; a
// TableReader exposing its current copy line is the other.
type source interface {
	isNull(row, col int) bool
	text(row, col int) string
	name(col int) (string, error)
	index(name string) (int, error)
}

// Result is the complete, decoded output of one statement. It is immutable
// once built, so any number of goroutines may read it and the Rows and
// Fields derived from it concurrently.
type Result struct {
	columns      []string
	rows         [][][]byte // nil cell = NULL
	tag          string
	rowsAffected int64 // -1 when the statement does not report it
}

// NewResult builds a Result from text-format cells. A nil cell is NULL.
// Drivers call it after fully reading a statement's output; rowsAffected is
// -1 for statements that do not report an affected row count.
func NewResult(columns []string, rows [][][]byte, commandTag string, rowsAffected int64) *Result {
	return &Result{
		columns:      columns,
		rows:         rows,
		tag:          commandTag,
		rowsAffected: rowsAffected,
	}
}

// Columns returns the number of columns in the result.
func (r *Result) Columns() int { return len(r.columns) }

// Len returns the number of rows in the result.
func (r *Result) Len() int { return len(r.rows) }

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool { return len(r.rows) == 0 }

// HasResultSet reports whether the statement produced a row set at all
// (as opposed to an INSERT or DDL statement).
func (r *Result) HasResultSet() bool { return len(r.columns) > 0 }

// CommandTag returns the completion tag reported by the server, e.g.
// "INSERT 0 3" or "SELECT 2".
func (r *Result) CommandTag() string { return r.tag }

// RowsAffected returns the number of rows the statement changed.
func (r *Result) RowsAffected() (int64, error) {
	if r.rowsAffected < 0 {
		return 0, errMisuse("statement does not return affected rows")
	}
	return r.rowsAffected, nil
}

// Name returns the name of column col.
func (r *Result) Name(col int) (string, error) {
	if col < 0 || col >= len(r.columns) {
		return "", errOutOfRange("column %d out of range (%s)", col, columnRange(len(r.columns)))
	}
	return r.columns[col], nil
}

// Index returns the position of the column with exactly this name.
func (r *Result) Index(name string) (int, error) {
	for i, c := range r.columns {
		if c == name {
			return i, nil
		}
	}
	return 0, errOutOfRange("column not found: %s", name)
}

// IsNull reports whether the cell at row, col is NULL.
func (r *Result) IsNull(row, col int) (bool, error) {
	if err := r.checkCell(row, col); err != nil {
		return false, err
	}
	return r.rows[row][col] == nil, nil
}

// Get returns the text of the cell at row, col. It fails when the cell is
// NULL.
func (r *Result) Get(row, col int) (string, error) {
	if err := r.checkCell(row, col); err != nil {
		return "", err
	}
	cell := r.rows[row][col]
	if cell == nil {
		return "", errConversionf("unexpected NULL value in row %d column %d = %s", row, col, r.columns[col])
	}
	return string(cell), nil
}

// Row returns row i spanning all columns. i is not checked.
func (r *Result) Row(i int) Row {
	return Row{src: r, row: i, columns: len(r.columns)}
}

// At returns row i, checking that it exists.
func (r *Result) At(i int) (Row, error) {
	if err := r.checkRow(i); err != nil {
		return Row{}, err
	}
	return r.Row(i), nil
}

// All yields every row in order. The sequence can be traversed any number
// of times.
func (r *Result) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := range r.rows {
			if !yield(r.Row(i)) {
				return
			}
		}
	}
}

func (r *Result) checkRow(i int) error {
	if !r.HasResultSet() {
		return errMisuse("statement does not yield a result set")
	}
	if len(r.rows) == 0 {
		return errOutOfRange("row %d out of range, result is empty", i)
	}
	if i < 0 || i >= len(r.rows) {
		return errOutOfRange("row %d out of range (0-%d)", i, len(r.rows)-1)
	}
	return nil
}

func (r *Result) checkCell(row, col int) error {
	if err := r.checkRow(row); err != nil {
		return err
	}
	if col < 0 || col >= len(r.columns) {
		return errOutOfRange("column %d out of range (%s)", col, columnRange(len(r.columns)))
	}
	return nil
}

// --- source ---

func (r *Result) isNull(row, col int) bool { return r.rows[row][col] == nil }

func (r *Result) text(row, col int) string { return string(r.rows[row][col]) }

func (r *Result) name(col int) (string, error) { return r.Name(col) }

func (r *Result) index(name string) (int, error) { return r.Index(name) }

// String renders the column header, used in debug logging.
func (r *Result) String() string {
	return r.tag + " [" + strings.Join(r.columns, ", ") + "]"
}
