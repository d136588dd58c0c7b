package database

import (
	"net/netip"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// registry maps a Go type to the codec TableWriter.Insert uses for plain
// (non-Argument) values. Typed call sites pass codecs directly and never
// touch it.
var registry sync.Map // reflect.Type -> entry

type entry struct {
	codec  any
	encode func(v any, dst []Cell) ([]Cell, error)
}

// Register makes c the default codec for T, replacing any earlier one.
func Register[T any](c Codec[T]) error {
	if c.Columns() < 1 {
		return errConfiguration("datatype (%s) must consume at least one column, has %d", c.Name(), c.Columns())
	}
	registry.Store(reflect.TypeFor[T](), entry{
		codec: c,
		encode: func(v any, dst []Cell) ([]Cell, error) {
			return Arg(c, v.(T)).EncodeCells(dst)
		},
	})
	return nil
}

// Lookup returns the codec registered for T.
func Lookup[T any]() (Codec[T], error) {
	t := reflect.TypeFor[T]()
	e, ok := registry.Load(t)
	if !ok {
		return nil, errConfiguration("no codec registered for %s", t)
	}
	return e.(entry).codec.(Codec[T]), nil
}

// MustLookup is Lookup for types registered at init time. It panics when T
// has no codec.
func MustLookup[T any]() Codec[T] {
	c, err := Lookup[T]()
	if err != nil {
		panic(err)
	}
	return c
}

func encodeValue(v any, dst []Cell) ([]Cell, error) {
	t := reflect.TypeOf(v)
	e, ok := registry.Load(t)
	if !ok {
		return dst, errConfiguration("no codec registered for %s", t)
	}
	return e.(entry).encode(v, dst)
}

func mustRegister[T any](c Codec[T]) {
	if err := Register(c); err != nil {
		panic(err)
	}
	if err := Register(Nullable(c)); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister(String)
	mustRegister(Bool)
	mustRegister(Int)
	mustRegister(Int8)
	mustRegister(Int16)
	mustRegister(Int32)
	mustRegister(Int64)
	mustRegister(Uint)
	mustRegister(Uint8)
	mustRegister(Uint16)
	mustRegister(Uint32)
	mustRegister(Uint64)
	mustRegister(Float32)
	mustRegister(Float64)
	mustRegister(Bytes)
	mustRegister[uuid.UUID](UUID)
	mustRegister[time.Time](Timestamptz)
	mustRegister[netip.Prefix](Inet)
	mustRegister(Int64Array)
	mustRegister(TextArray)
}
