package database

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// scalar is a single-column codec built from a parse and a format function.
type scalar[T any] struct {
	name   string
	parse  func(string) (T, error)
	format func(T) (string, error)
}

// NewScalar returns a single-column codec. NULL cells are rejected on
// decode; wrap the result in Nullable to accept them.
func NewScalar[T any](name string, parse func(string) (T, error), format func(T) (string, error)) Codec[T] {
	return scalar[T]{name: name, parse: parse, format: format}
}

func (s scalar[T]) Name() string { return s.name }

func (s scalar[T]) Columns() int { return 1 }

func (s scalar[T]) Decode(r Row) (T, error) {
	var zero T
	text, ok := r.Field(0).Get()
	if !ok {
		return zero, nullError(r)
	}
	v, err := s.parse(text)
	if err != nil {
		return zero, formatError(s.name, text, err)
	}
	return v, nil
}

func (s scalar[T]) Encode(v T, dst []Cell) ([]Cell, error) {
	text, err := s.format(v)
	if err != nil {
		return dst, errConversion(fmt.Sprintf("cannot encode %s value", s.name), err)
	}
	return append(dst, Cell{Text: text, Valid: true}), nil
}

// Built-in scalar codecs.
var (
	String = NewScalar("text", func(s string) (string, error) { return s, nil }, func(s string) (string, error) { return s, nil })
	Bool   = NewScalar("bool", parseBool, formatBool)

	Int   = NewScalar("int", parseSigned[int](strconv.IntSize), formatSigned[int])
	Int8  = NewScalar("int8", parseSigned[int8](8), formatSigned[int8])
	Int16 = NewScalar("int16", parseSigned[int16](16), formatSigned[int16])
	Int32 = NewScalar("int32", parseSigned[int32](32), formatSigned[int32])
	Int64 = NewScalar("int64", parseSigned[int64](64), formatSigned[int64])

	Uint   = NewScalar("uint", parseUnsigned[uint](strconv.IntSize), formatUnsigned[uint])
	Uint8  = NewScalar("uint8", parseUnsigned[uint8](8), formatUnsigned[uint8])
	Uint16 = NewScalar("uint16", parseUnsigned[uint16](16), formatUnsigned[uint16])
	Uint32 = NewScalar("uint32", parseUnsigned[uint32](32), formatUnsigned[uint32])
	Uint64 = NewScalar("uint64", parseUnsigned[uint64](64), formatUnsigned[uint64])

	Float32 = NewScalar("float32", parseFloat[float32](32), formatFloat[float32](32))
	Float64 = NewScalar("float64", parseFloat[float64](64), formatFloat[float64](64))

	UUID = NewScalar("uuid", uuid.Parse, func(u uuid.UUID) (string, error) { return u.String(), nil })
)

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "t", "true", "y", "yes", "on", "1":
		return true, nil
	case "f", "false", "n", "no", "off", "0":
		return false, nil
	}
	return false, errors.New("not a boolean")
}

func formatBool(b bool) (string, error) {
	if b {
		return "t", nil
	}
	return "f", nil
}

type signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func parseSigned[T signed](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseInt(s, 10, bits)
		return T(v), err
	}
}

func formatSigned[T signed](v T) (string, error) {
	return strconv.FormatInt(int64(v), 10), nil
}

func parseUnsigned[T unsigned](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		v, err := strconv.ParseUint(s, 10, bits)
		return T(v), err
	}
}

func formatUnsigned[T unsigned](v T) (string, error) {
	return strconv.FormatUint(uint64(v), 10), nil
}

var (
	errFloatSyntax    = errors.New("not a decimal floating point number")
	errFloatOverflow  = errors.New("value overflows the target type")
	errFloatUnderflow = errors.New("value underflows the target type")
)

// parseFloat accepts decimal notation and, in any case, inf, infinity and
// nan. Hex floats, digit separators and surrounding whitespace are
// rejected, as is any value that rounds to infinity or to zero.
func parseFloat[T ~float32 | ~float64](bits int) func(string) (T, error) {
	return func(s string) (T, error) {
		if s == "" || strings.ContainsAny(s, "xX_ \t\n\v\f\r") {
			return 0, errFloatSyntax
		}
		v, err := strconv.ParseFloat(s, bits)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, errFloatOverflow
			}
			return 0, errFloatSyntax
		}
		if v == 0 && nonZeroMantissa(s) {
			return 0, errFloatUnderflow
		}
		return T(v), nil
	}
}

func nonZeroMantissa(s string) bool {
	for _, c := range s {
		switch {
		case c == 'e' || c == 'E':
			return false
		case c >= '1' && c <= '9':
			return true
		}
	}
	return false
}

func formatFloat[T ~float32 | ~float64](bits int) func(T) (string, error) {
	return func(v T) (string, error) {
		f := float64(v)
		switch {
		case math.IsInf(f, 1):
			return "Infinity", nil
		case math.IsInf(f, -1):
			return "-Infinity", nil
		case math.IsNaN(f):
			return "NaN", nil
		}
		return strconv.FormatFloat(f, 'g', -1, bits), nil
	}
}
