package database_test

import (
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

// single builds a one-row result from cells; "\N" stands for NULL.
func single(cells ...string) database.Row {
	cols := make([]string, len(cells))
	row := make([][]byte, len(cells))
	for i, c := range cells {
		cols[i] = string(rune('a' + i))
		if c != `\N` {
			row[i] = []byte(c)
		}
	}
	return database.NewResult(cols, [][][]byte{row}, "SELECT 1", 1).Row(0)
}

func TestGet_Scalars(t *testing.T) {
	row := single("42", "-7", "t", "hello", "255", "1.5", "6fa459ea-ee8a-3ca4-894e-db77e160355e")

	i, err := database.Get(row, 0, database.Int64)
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	i8, err := database.Get(row, 1, database.Int8)
	require.NoError(t, err)
	assert.Equal(t, int8(-7), i8)

	b, err := database.Get(row, 2, database.Bool)
	require.NoError(t, err)
	assert.True(t, b)

	s, err := database.Get(row, 3, database.String)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	u8, err := database.Get(row, 4, database.Uint8)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u8)

	f, err := database.Get(row, 5, database.Float64)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	id, err := database.Get(row, 6, database.UUID)
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("6fa459ea-ee8a-3ca4-894e-db77e160355e"), id)

	_, err = database.Get(row, 7, database.String)
	assert.True(t, errs.IsOutOfRange(err))
}

func TestGet_ConversionFailures(t *testing.T) {
	tests := []struct {
		name string
		cell string
		get  func(database.Row) error
	}{
		{name: "int overflow", cell: "128", get: func(r database.Row) error { _, err := database.Get(r, 0, database.Int8); return err }},
		{name: "negative unsigned", cell: "-1", get: func(r database.Row) error { _, err := database.Get(r, 0, database.Uint); return err }},
		{name: "not a bool", cell: "maybe", get: func(r database.Row) error { _, err := database.Get(r, 0, database.Bool); return err }},
		{name: "null into non-nullable", cell: `\N`, get: func(r database.Row) error { _, err := database.Get(r, 0, database.Int); return err }},
		{name: "bad uuid", cell: "not-a-uuid", get: func(r database.Row) error { _, err := database.Get(r, 0, database.UUID); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := single(tt.cell)
			err := tt.get(row)
			require.Error(t, err)
			assert.True(t, errs.IsConversion(err), err.Error())

			// decoding is read-only
			assert.Equal(t, tt.cell == `\N`, row.IsNull(0))
		})
	}
}

func TestBool_Spellings(t *testing.T) {
	for _, s := range []string{"t", "TRUE", "y", "Yes", "on", "1"} {
		v, err := database.Get(single(s), 0, database.Bool)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"f", "False", "n", "NO", "off", "0"} {
		v, err := database.Get(single(s), 0, database.Bool)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
}

func TestFloat_StrictParsing(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{name: "decimal", in: "3.25", want: 3.25},
		{name: "exponent", in: "-1e3", want: -1000},
		{name: "zero", in: "0.000", want: 0},
		{name: "infinity", in: "Infinity", want: math.Inf(1)},
		{name: "negative inf", in: "-inf", want: math.Inf(-1)},
		{name: "empty", in: "", wantErr: true},
		{name: "blank", in: " ", wantErr: true},
		{name: "plus only", in: "+", wantErr: true},
		{name: "minus only", in: "-", wantErr: true},
		{name: "leading space", in: " 1", wantErr: true},
		{name: "trailing space", in: "1 ", wantErr: true},
		{name: "hex float", in: "0x1p3", wantErr: true},
		{name: "digit separator", in: "1_000", wantErr: true},
		{name: "overflow", in: "1e400", wantErr: true},
		{name: "underflow", in: "1e-400", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := database.Get(single(tt.in), 0, database.Float64)
			if tt.wantErr {
				assert.True(t, errs.IsConversion(err), "%q should be rejected", tt.in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	nan, err := database.Get(single("NaN"), 0, database.Float64)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(nan))

	_, err = database.Get(single("1e39"), 0, database.Float32)
	assert.True(t, errs.IsConversion(err), "float32 overflow")
}

func TestFloat_Encode(t *testing.T) {
	cells, err := database.Float64.Encode(math.Inf(-1), nil)
	require.NoError(t, err)
	assert.Equal(t, "-Infinity", cells[0].Text)

	cells, err = database.Float32.Encode(0.1, cells)
	require.NoError(t, err)
	assert.Equal(t, "0.1", cells[1].Text)
}

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{name: "empty string", in: "", wantErr: true},
		{name: "bare backslash", in: `\`, wantErr: true},
		{name: "odd digit count", in: `\xa`, wantErr: true},
		{name: "invalid digit", in: `\xa.`, wantErr: true},
		{name: "missing prefix", in: "deadbeef", wantErr: true},
		{name: "empty body", in: `\x`, want: []byte{}},
		{name: "mixed case", in: `\xDEadBEef`, want: []byte{0xde, 0xad, 0xbe, 0xef}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := database.Get(single(tt.in), 0, database.Bytes)
			if tt.wantErr {
				assert.True(t, errs.IsConversion(err), "%q should be rejected", tt.in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHex_RoundTrip(t *testing.T) {
	faker := gofakeit.New(7)

	for i := 0; i < 20; i++ {
		b := make([]byte, faker.IntRange(0, 64))
		for j := range b {
			b[j] = byte(faker.IntRange(0, 255))
		}
		s := database.EncodeHex(b)
		assert.Regexp(t, `^\\x[0-9a-f]*$`, s)

		got, err := database.DecodeHex(s)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestOptional(t *testing.T) {
	row := single("5", `\N`)

	for col := range row.Columns() {
		got, err := database.Optional(row, col, database.Int)
		require.NoError(t, err)
		if row.IsNull(col) {
			assert.Nil(t, got)
			continue
		}
		plain, err := database.Get(row, col, database.Int)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, plain, *got)
	}
}

func TestAs_Composite(t *testing.T) {
	codec := database.PairOf(database.Int64, database.Nullable(database.String))

	t.Run("matching width", func(t *testing.T) {
		p, err := database.As(single("7", `\N`), codec)
		require.NoError(t, err)
		assert.Equal(t, int64(7), p.First)
		assert.Nil(t, p.Second)
	})

	t.Run("width mismatch", func(t *testing.T) {
		_, err := database.As(single("7", "x", "y"), codec)
		require.Error(t, err)
		assert.True(t, errs.IsOutOfRange(err))
		assert.Contains(t, err.Error(), "datatype (pair<int64, text?>) requires 2 columns, but row/slice has 3 columns")
	})

	t.Run("null in non-nullable element", func(t *testing.T) {
		_, err := database.As(single(`\N`, "x"), codec)
		assert.True(t, errs.IsConversion(err))
	})

	t.Run("nested tuple", func(t *testing.T) {
		nested := database.Tuple3Of(database.Bool, codec, database.Float64)
		assert.Equal(t, 4, nested.Columns())

		v, err := database.As(single("f", "1", "one", "2.5"), nested)
		require.NoError(t, err)
		assert.False(t, v.First)
		assert.Equal(t, int64(1), v.Second.First)
		require.NotNil(t, v.Second.Second)
		assert.Equal(t, "one", *v.Second.Second)
		assert.Equal(t, 2.5, v.Third)
	})

	t.Run("nullable composite", func(t *testing.T) {
		v, err := database.As(single(`\N`, `\N`), database.Nullable(codec))
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestFieldAs(t *testing.T) {
	row := single("9", "x")

	v, err := database.FieldAs(row.Field(0), database.Int)
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	_, err = database.FieldAs(row.Field(0), database.PairOf(database.Int, database.String))
	assert.True(t, errs.IsConfiguration(err))
}

type zeroWidth struct{}

func (zeroWidth) Name() string                                         { return "zero" }
func (zeroWidth) Columns() int                                         { return 0 }
func (zeroWidth) Decode(database.Row) (int, error)                     { return 0, nil }
func (zeroWidth) Encode(int, []database.Cell) ([]database.Cell, error) { return nil, nil }

func TestZeroArity_IsConfigurationError(t *testing.T) {
	_, err := database.Get[int](single("1"), 0, zeroWidth{})
	assert.True(t, errs.IsConfiguration(err))

	_, err = database.As[int](single("1"), zeroWidth{})
	assert.True(t, errs.IsConfiguration(err))

	assert.True(t, errs.IsConfiguration(database.Register[int](zeroWidth{})))
}

func TestRegistry(t *testing.T) {
	c, err := database.Lookup[int64]()
	require.NoError(t, err)
	assert.Equal(t, "int64", c.Name())

	p := database.MustLookup[*string]()
	assert.Equal(t, "text?", p.Name())

	_, err = database.Lookup[complex128]()
	assert.True(t, errs.IsConfiguration(err))

	assert.Panics(t, func() { database.MustLookup[chan int]() })
}

func TestPGCodecs(t *testing.T) {
	row := single("{1,2,3}", `{a,"b c"}`, "10.0.0.0/8", "2024-03-01")

	ints, err := database.Get(row, 0, database.Int64Array)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ints)

	texts, err := database.Get(row, 1, database.TextArray)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c"}, texts)

	prefix, err := database.Get(row, 2, database.Inet)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), prefix)

	day, err := database.Get(row, 3, database.Date)
	require.NoError(t, err)
	assert.Equal(t, 2024, day.Year())
	assert.Equal(t, time.March, day.Month())
	assert.Equal(t, 1, day.Day())

	cells, err := database.Int64Array.Encode([]int64{4, 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, database.Cell{Text: "{4,5}", Valid: true}, cells[0])

	_, err = database.Get(single("{1,x}"), 0, database.Int64Array)
	assert.True(t, errs.IsConversion(err))
}

func TestArg_EncodesDeclaredWidth(t *testing.T) {
	cells, err := database.Arg(database.PairOf(database.Int, database.Nullable(database.String)),
		database.Pair[int, *string]{First: 3}).EncodeCells(nil)
	require.NoError(t, err)
	assert.Equal(t, []database.Cell{{Text: "3", Valid: true}, {}}, cells)
}
