package database

import "iter"

// Row is a view of a contiguous span of columns in one row of a Result (or
// of the current line of a TableReader). Rows are small values; copying one
// does not copy any cell data. Two Rows are equal when they view the same
// span of the same row.
type Row struct {
	src     source
	row     int
	offset  int
	columns int
}

// Columns returns the number of columns visible through this row.
func (r Row) Columns() int { return r.columns }

// Slice returns the n columns starting at offset, relative to this row.
func (r Row) Slice(offset, n int) (Row, error) {
	if n < 1 {
		return Row{}, errInvalidInput("slice must span at least one column, got %d", n)
	}
	if offset < 0 || offset+n > r.columns {
		return Row{}, errOutOfRange("slice [%d, %d) out of range (%s)", offset, offset+n, columnRange(r.columns))
	}
	return Row{src: r.src, row: r.row, offset: r.offset + offset, columns: n}, nil
}

// Field returns column i of this row without checking i.
func (r Row) Field(i int) Field {
	return Field{row: r, column: r.offset + i}
}

// At returns column i of this row.
func (r Row) At(i int) (Field, error) {
	if i < 0 || i >= r.columns {
		return Field{}, errOutOfRange("column %d out of range (%s)", i, columnRange(r.columns))
	}
	return r.Field(i), nil
}

// Index returns the position, relative to this row, of the column with
// exactly this name. Columns outside the row's span are not found.
func (r Row) Index(name string) (int, error) {
	abs, err := r.src.index(name)
	if err != nil {
		return 0, err
	}
	if abs < r.offset || abs >= r.offset+r.columns {
		return 0, errOutOfRange("column not found: %s", name)
	}
	return abs - r.offset, nil
}

// FieldByName returns the column with this name.
func (r Row) FieldByName(name string) (Field, error) {
	i, err := r.Index(name)
	if err != nil {
		return Field{}, err
	}
	return r.Field(i), nil
}

// Name returns the name of column i of this row.
func (r Row) Name(i int) (string, error) {
	if i < 0 || i >= r.columns {
		return "", errOutOfRange("column %d out of range (%s)", i, columnRange(r.columns))
	}
	return r.src.name(r.offset + i)
}

// IsNull reports whether column i is NULL. i is not checked.
func (r Row) IsNull(i int) bool {
	return r.src.isNull(r.row, r.offset+i)
}

// Fields yields the row's columns in order, keyed by their position in the
// row. The sequence can be traversed any number of times.
func (r Row) Fields() iter.Seq2[int, Field] {
	return func(yield func(int, Field) bool) {
		for i := range r.columns {
			if !yield(i, r.Field(i)) {
				return
			}
		}
	}
}

// Field is a view of one cell.
type Field struct {
	row    Row
	column int // absolute
}

// Index returns the field's position within the row it was taken from.
func (f Field) Index() int { return f.column - f.row.offset }

// Name returns the column name.
func (f Field) Name() (string, error) { return f.row.src.name(f.column) }

// IsNull reports whether the cell is NULL.
func (f Field) IsNull() bool { return f.row.src.isNull(f.row.row, f.column) }

// Get returns the cell text. ok is false when the cell is NULL.
func (f Field) Get() (text string, ok bool) {
	if f.IsNull() {
		return "", false
	}
	return f.row.src.text(f.row.row, f.column), true
}
