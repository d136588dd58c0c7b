package schema

import (
	"github.com/koustreak/tabula/internal/database"
)

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"` // as reported by information_schema: text, integer, varchar...
	IsNullable   bool    `json:"nullable"`
	DefaultValue *string `json:"default,omitempty"`    // nil if no default
	MaxLength    *int    `json:"max_length,omitempty"` // nil for non-char types
	IsPrimaryKey bool    `json:"primary_key"`
	IsUnique     bool    `json:"unique"`
}

// TableInfo describes a table and its columns
type TableInfo struct {
	Schema  string       `json:"schema,omitempty"`
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnNames returns the column names in ordinal order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey describes a relationship between two tables
type ForeignKey struct {
	Name       string `json:"name"`
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// SchemaInfo is the full introspected database schema
type SchemaInfo struct {
	Tables      []TableInfo  `json:"tables"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

var (
	optString = database.Nullable(database.String)
	optInt    = database.Nullable(database.Int)
)

// columnCodec decodes one row of the column query:
// name, data_type, is_nullable, column_default, max_length, is_pk, is_unique.
type columnCodec struct{}

// ColumnCodec maps a ColumnInfo to its seven information_schema columns.
var ColumnCodec database.Codec[ColumnInfo] = columnCodec{}

func (columnCodec) Name() string { return "column_info" }

func (columnCodec) Columns() int { return 7 }

func (columnCodec) Decode(r database.Row) (ColumnInfo, error) {
	var (
		col ColumnInfo
		err error
	)
	if col.Name, err = database.Get(r, 0, database.String); err != nil {
		return col, err
	}
	if col.DataType, err = database.Get(r, 1, database.String); err != nil {
		return col, err
	}
	if col.IsNullable, err = database.Get(r, 2, database.Bool); err != nil {
		return col, err
	}
	if col.DefaultValue, err = database.Get(r, 3, optString); err != nil {
		return col, err
	}
	if col.MaxLength, err = database.Get(r, 4, optInt); err != nil {
		return col, err
	}
	if col.IsPrimaryKey, err = database.Get(r, 5, database.Bool); err != nil {
		return col, err
	}
	col.IsUnique, err = database.Get(r, 6, database.Bool)
	return col, err
}

func (columnCodec) Encode(v ColumnInfo, dst []database.Cell) ([]database.Cell, error) {
	var err error
	if dst, err = database.String.Encode(v.Name, dst); err != nil {
		return dst, err
	}
	if dst, err = database.String.Encode(v.DataType, dst); err != nil {
		return dst, err
	}
	if dst, err = database.Bool.Encode(v.IsNullable, dst); err != nil {
		return dst, err
	}
	if dst, err = optString.Encode(v.DefaultValue, dst); err != nil {
		return dst, err
	}
	if dst, err = optInt.Encode(v.MaxLength, dst); err != nil {
		return dst, err
	}
	if dst, err = database.Bool.Encode(v.IsPrimaryKey, dst); err != nil {
		return dst, err
	}
	return database.Bool.Encode(v.IsUnique, dst)
}

type foreignKeyCodec struct{}

// ForeignKeyCodec maps a ForeignKey to five text columns: constraint
// name, from table, from column, to table, to column.
var ForeignKeyCodec database.Codec[ForeignKey] = foreignKeyCodec{}

func (foreignKeyCodec) Name() string { return "foreign_key" }

func (foreignKeyCodec) Columns() int { return 5 }

func (foreignKeyCodec) Decode(r database.Row) (ForeignKey, error) {
	var (
		parts [5]string
		err   error
	)
	for i := range parts {
		if parts[i], err = database.Get(r, i, database.String); err != nil {
			return ForeignKey{}, err
		}
	}
	return ForeignKey{
		Name:       parts[0],
		FromTable:  parts[1],
		FromColumn: parts[2],
		ToTable:    parts[3],
		ToColumn:   parts[4],
	}, nil
}

func (foreignKeyCodec) Encode(v ForeignKey, dst []database.Cell) ([]database.Cell, error) {
	for _, s := range []string{v.Name, v.FromTable, v.FromColumn, v.ToTable, v.ToColumn} {
		var err error
		if dst, err = database.String.Encode(s, dst); err != nil {
			return dst, err
		}
	}
	return dst, nil
}
