package database

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLine(t *testing.T) {
	tests := []struct {
		name  string
		cells []Cell
		want  string
	}{
		{name: "single value", cells: []Cell{{Text: "42", Valid: true}}, want: "42\n"},
		{name: "null", cells: []Cell{{Text: "1", Valid: true}, {}}, want: "1\t\\N\n"},
		{name: "empty string is not null", cells: []Cell{{Text: "", Valid: true}}, want: "\n"},
		{name: "tab and newline", cells: []Cell{{Text: "a\tb\nc\rd", Valid: true}}, want: "a\\tb\\nc\\rd\n"},
		{name: "backslash", cells: []Cell{{Text: `C:\tmp`, Valid: true}}, want: "C:\\\\tmp\n"},
		{name: "literal null marker text", cells: []Cell{{Text: `\N`, Valid: true}}, want: "\\\\N\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(AppendLine(nil, tt.cells)))
		})
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Cell
	}{
		{name: "two columns", line: "1\tx\n", want: []Cell{{Text: "1", Valid: true}, {Text: "x", Valid: true}}},
		{name: "null marker", line: "\\N\t\\N\n", want: []Cell{{}, {}}},
		{name: "escaped null marker", line: "\\\\N\n", want: []Cell{{Text: `\N`, Valid: true}}},
		{name: "empty fields", line: "\t\n", want: []Cell{{Valid: true}, {Valid: true}}},
		{name: "no trailing newline", line: "a", want: []Cell{{Text: "a", Valid: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitLine([]byte(tt.line), nil))
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "control escapes", in: `\b\f\n\r\t\v`, want: "\b\f\n\r\t\v"},
		{name: "backslash", in: `a\\b`, want: `a\b`},
		{name: "octal", in: `\101\0619`, want: "A19"},
		{name: "hex", in: `\x41\x4a\x7`, want: "AJ\x07"},
		{name: "hex without digits", in: `\xg`, want: "xg"},
		{name: "other escaped character", in: `\q\.`, want: "q."},
		{name: "trailing backslash", in: `abc\`, want: `abc\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unescape([]byte(tt.in)))
		})
	}
}

func TestCopyText_RoundTrip(t *testing.T) {
	faker := gofakeit.New(42)

	for i := 0; i < 50; i++ {
		cells := []Cell{
			{Text: faker.Name() + "\t" + faker.Word(), Valid: true},
			{},
			{Text: faker.Word() + "\r\n" + faker.Word() + `\`, Valid: true},
			{Text: `\N` + faker.Word(), Valid: true},
		}
		line := AppendLine(nil, cells)
		require.Equal(t, byte('\n'), line[len(line)-1])
		assert.Equal(t, cells, splitLine(line, nil))
	}
}
