package database

type nullable[T any] struct {
	inner Codec[T]
}

// Nullable maps NULL to a nil pointer. For multi-column codecs the value is
// nil only when every column is NULL.
func Nullable[T any](c Codec[T]) Codec[*T] {
	return nullable[T]{inner: c}
}

func (n nullable[T]) Name() string { return n.inner.Name() + "?" }

func (n nullable[T]) Columns() int { return n.inner.Columns() }

func (n nullable[T]) Null() *T { return nil }

func (n nullable[T]) Decode(r Row) (*T, error) {
	allNull := true
	for i := range r.Columns() {
		if !r.IsNull(i) {
			allNull = false
			break
		}
	}
	if allNull {
		return nil, nil
	}
	v, err := Get(r, 0, n.inner)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (n nullable[T]) Encode(v *T, dst []Cell) ([]Cell, error) {
	if v == nil {
		for range n.inner.Columns() {
			dst = append(dst, Cell{})
		}
		return dst, nil
	}
	return n.inner.Encode(*v, dst)
}

// Pair is a two-element composite value.
type Pair[A, B any] struct {
	First  A
	Second B
}

type pairCodec[A, B any] struct {
	a Codec[A]
	b Codec[B]
}

// PairOf reads a's columns followed by b's columns.
func PairOf[A, B any](a Codec[A], b Codec[B]) Codec[Pair[A, B]] {
	return pairCodec[A, B]{a: a, b: b}
}

func (c pairCodec[A, B]) Name() string {
	return "pair<" + c.a.Name() + ", " + c.b.Name() + ">"
}

func (c pairCodec[A, B]) Columns() int { return c.a.Columns() + c.b.Columns() }

func (c pairCodec[A, B]) Decode(r Row) (Pair[A, B], error) {
	var p Pair[A, B]
	var err error
	if p.First, err = Get(r, 0, c.a); err != nil {
		return Pair[A, B]{}, err
	}
	if p.Second, err = Get(r, c.a.Columns(), c.b); err != nil {
		return Pair[A, B]{}, err
	}
	return p, nil
}

func (c pairCodec[A, B]) Encode(v Pair[A, B], dst []Cell) ([]Cell, error) {
	dst, err := c.a.Encode(v.First, dst)
	if err != nil {
		return dst, err
	}
	return c.b.Encode(v.Second, dst)
}

// Tuple3 is a three-element composite value.
type Tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

type tuple3Codec[A, B, C any] struct {
	a Codec[A]
	b Codec[B]
	c Codec[C]
}

// Tuple3Of reads the columns of a, b and c in that order.
func Tuple3Of[A, B, C any](a Codec[A], b Codec[B], c Codec[C]) Codec[Tuple3[A, B, C]] {
	return tuple3Codec[A, B, C]{a: a, b: b, c: c}
}

func (t tuple3Codec[A, B, C]) Name() string {
	return "tuple<" + t.a.Name() + ", " + t.b.Name() + ", " + t.c.Name() + ">"
}

func (t tuple3Codec[A, B, C]) Columns() int {
	return t.a.Columns() + t.b.Columns() + t.c.Columns()
}

func (t tuple3Codec[A, B, C]) Decode(r Row) (Tuple3[A, B, C], error) {
	var v Tuple3[A, B, C]
	var err error
	col := 0
	if v.First, err = Get(r, col, t.a); err != nil {
		return Tuple3[A, B, C]{}, err
	}
	col += t.a.Columns()
	if v.Second, err = Get(r, col, t.b); err != nil {
		return Tuple3[A, B, C]{}, err
	}
	col += t.b.Columns()
	if v.Third, err = Get(r, col, t.c); err != nil {
		return Tuple3[A, B, C]{}, err
	}
	return v, nil
}

func (t tuple3Codec[A, B, C]) Encode(v Tuple3[A, B, C], dst []Cell) ([]Cell, error) {
	dst, err := t.a.Encode(v.First, dst)
	if err != nil {
		return dst, err
	}
	if dst, err = t.b.Encode(v.Second, dst); err != nil {
		return dst, err
	}
	return t.c.Encode(v.Third, dst)
}
