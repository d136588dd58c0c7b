package database

import "fmt"

// Cell is one encoded column value on its way to the server. The zero Cell
// is NULL.
type Cell struct {
	Text  string
	Valid bool
}

// Codec binds a Go type to its text representation. A codec consumes
// Columns() consecutive columns: scalars take one, composites such as
// PairOf take the sum of their elements.
//
// Decode receives a Row spanning exactly Columns() columns. Encode appends
// exactly Columns() cells to dst.
type Codec[T any] interface {
	Name() string
	Columns() int
	Decode(r Row) (T, error)
	Encode(v T, dst []Cell) ([]Cell, error)
}

// Nuller is implemented by codecs whose type has a value standing for SQL
// NULL. Only single-column codecs get NULL handling from Get.
type Nuller[T any] interface {
	Null() T
}

// Get decodes the value starting at column col of r.
func Get[T any](r Row, col int, c Codec[T]) (T, error) {
	var zero T
	n := c.Columns()
	if n < 1 {
		return zero, errConfiguration("datatype (%s) must consume at least one column, has %d", c.Name(), n)
	}
	s, err := r.Slice(col, n)
	if err != nil {
		return zero, err
	}
	if n == 1 {
		if nl, ok := c.(Nuller[T]); ok && s.IsNull(0) {
			return nl.Null(), nil
		}
	}
	return c.Decode(s)
}

// As decodes the whole row as one value. The codec must consume exactly
// as many columns as the row has.
func As[T any](r Row, c Codec[T]) (T, error) {
	var zero T
	n := c.Columns()
	if n < 1 {
		return zero, errConfiguration("datatype (%s) must consume at least one column, has %d", c.Name(), n)
	}
	if n != r.Columns() {
		return zero, errOutOfRange("datatype (%s) requires %d columns, but row/slice has %d columns", c.Name(), n, r.Columns())
	}
	return Get(r, 0, c)
}

// FieldAs decodes a single field. The codec must consume one column.
func FieldAs[T any](f Field, c Codec[T]) (T, error) {
	var zero T
	if c.Columns() != 1 {
		return zero, errConfiguration("datatype (%s) spans %d columns and cannot be read from a single field", c.Name(), c.Columns())
	}
	return Get(f.row, f.Index(), c)
}

// Optional decodes column col, returning nil when it is NULL.
func Optional[T any](r Row, col int, c Codec[T]) (*T, error) {
	return Get(r, col, Nullable(c))
}

// Argument is a value paired with the codec that encodes it, accepted by
// TableWriter.Insert.
type Argument interface {
	EncodeCells(dst []Cell) ([]Cell, error)
}

type arg[T any] struct {
	codec Codec[T]
	value T
}

func (a arg[T]) EncodeCells(dst []Cell) ([]Cell, error) {
	n := len(dst)
	out, err := a.codec.Encode(a.value, dst)
	if err != nil {
		return dst, err
	}
	if got := len(out) - n; got != a.codec.Columns() {
		return dst, errConfiguration("datatype (%s) encoded %d columns, declared %d", a.codec.Name(), got, a.codec.Columns())
	}
	return out, nil
}

// Arg pairs v with an explicit codec.
func Arg[T any](c Codec[T], v T) Argument {
	return arg[T]{codec: c, value: v}
}

// nullError reports a NULL cell read by a codec that has no NULL value.
func nullError(r Row) error {
	name, err := r.Name(0)
	if err != nil {
		return errConversionf("unexpected NULL value in row %d column %d", r.row, r.offset)
	}
	return errConversionf("unexpected NULL value in row %d column %d = %s", r.row, r.offset, name)
}

// formatError wraps a parse failure of text as type name.
func formatError(name, text string, cause error) error {
	return errConversion(fmt.Sprintf("invalid %s value %q", name, preview(text)), cause)
}
