package database

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// pgtype.Map caches scan and encode plans and is not safe for concurrent
// use, so each call borrows one.
var typeMaps = sync.Pool{
	New: func() any { return pgtype.NewMap() },
}

type pgCodec[T any] struct {
	name string
	oid  uint32
}

// PG returns a single-column codec that converts through pgx's text
// encoding for the PostgreSQL type oid.
func PG[T any](name string, oid uint32) Codec[T] {
	return pgCodec[T]{name: name, oid: oid}
}

func (c pgCodec[T]) Name() string { return c.name }

func (c pgCodec[T]) Columns() int { return 1 }

func (c pgCodec[T]) Decode(r Row) (T, error) {
	var v T
	text, ok := r.Field(0).Get()
	if !ok {
		return v, nullError(r)
	}
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)
	if err := m.Scan(c.oid, pgtype.TextFormatCode, []byte(text), &v); err != nil {
		return v, formatError(c.name, text, err)
	}
	return v, nil
}

func (c pgCodec[T]) Encode(v T, dst []Cell) ([]Cell, error) {
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)
	buf, err := m.Encode(c.oid, pgtype.TextFormatCode, v, nil)
	if err != nil {
		return dst, errConversion(fmt.Sprintf("cannot encode %s value", c.name), err)
	}
	if buf == nil {
		return append(dst, Cell{}), nil
	}
	return append(dst, Cell{Text: string(buf), Valid: true}), nil
}

// Codecs backed by pgtype.
var (
	Timestamptz = PG[time.Time]("timestamptz", pgtype.TimestamptzOID)
	Date        = PG[time.Time]("date", pgtype.DateOID)
	Int64Array  = PG[[]int64]("int8[]", pgtype.Int8ArrayOID)
	TextArray   = PG[[]string]("text[]", pgtype.TextArrayOID)
	Inet        = PG[netip.Prefix]("inet", pgtype.InetOID)
)
