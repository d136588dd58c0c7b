package schema_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/databasetest"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
)

// row builds a result row; "\N" stands for NULL.
func row(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		if v != `\N` {
			out[i] = []byte(v)
		}
	}
	return out
}

type call struct {
	sql  string
	args []any
}

// catalog answers the introspection queries with a fixed two-table schema.
type catalog struct {
	calls []call
}

func (c *catalog) handle(sql string, args []any) (*database.Result, error) {
	c.calls = append(c.calls, call{sql: sql, args: args})
	switch {
	case strings.Contains(sql, "EXISTS") || strings.Contains(sql, "COUNT(*)"):
		exists := "f"
		if args[1] == "users" {
			exists = "t"
		}
		return database.NewResult([]string{"exists"}, [][][]byte{row(exists)}, "SELECT 1", 1), nil

	case strings.Contains(sql, "information_schema.columns"):
		cols := []string{"column_name", "data_type", "is_nullable", "column_default", "character_maximum_length", "is_primary_key", "is_unique"}
		switch args[1] {
		case "users":
			return database.NewResult(cols, [][][]byte{
				row("id", "integer", "f", "nextval('users_id_seq'::regclass)", `\N`, "t", "f"),
				row("email", "character varying", "f", `\N`, "255", "f", "t"),
				row("bio", "text", "t", `\N`, `\N`, "f", "f"),
			}, "SELECT 3", 3), nil
		case "posts":
			return database.NewResult(cols, [][][]byte{
				row("id", "integer", "f", `\N`, `\N`, "t", "f"),
				row("user_id", "integer", "f", `\N`, `\N`, "f", "f"),
			}, "SELECT 2", 2), nil
		}
		return database.NewResult(cols, nil, "SELECT 0", 0), nil

	case strings.Contains(sql, "FOREIGN KEY") || strings.Contains(sql, "referential_constraints"):
		return database.NewResult([]string{"constraint_name", "from_table", "from_column", "to_table", "to_column"},
			[][][]byte{row("posts_user_id_fkey", "posts", "user_id", "users", "id")}, "SELECT 1", 1), nil

	case strings.Contains(sql, "information_schema.tables"):
		return database.NewResult([]string{"table_name"},
			[][][]byte{row("posts"), row("users")}, "SELECT 2", 2), nil
	}
	return nil, errs.Newf(errs.ErrKindQueryFailed, "unexpected statement: %s", sql)
}

func newInspector(t *testing.T, d database.Dialect) (*schema.Inspector, *catalog) {
	t.Helper()
	ctx := context.Background()
	cat := &catalog{}
	s := database.NewSession(databasetest.New(cat.handle).Conn())
	t.Cleanup(func() { _ = s.Close(ctx) })
	tx, err := s.Direct()
	require.NoError(t, err)
	return schema.NewInspector(tx, d), cat
}

func TestInspector_ListTables(t *testing.T) {
	in, cat := newInspector(t, database.DialectPostgres)

	tables, err := in.ListTables(context.Background(), "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "users"}, tables)
	require.Len(t, cat.calls, 1)
	assert.Equal(t, []any{"public"}, cat.calls[0].args)
	assert.Contains(t, cat.calls[0].sql, "$1")
}

func TestInspector_EmptySchemaBindsNull(t *testing.T) {
	in, cat := newInspector(t, database.DialectMySQL)

	_, err := in.ListTables(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, cat.calls, 1)
	assert.Equal(t, []any{nil}, cat.calls[0].args)
	assert.Contains(t, cat.calls[0].sql, "DATABASE()")
}

func TestInspector_TableExists(t *testing.T) {
	tests := []struct {
		name    string
		dialect database.Dialect
		table   string
		want    bool
	}{
		{"postgres existing", database.DialectPostgres, "users", true},
		{"postgres missing", database.DialectPostgres, "ghosts", false},
		{"mysql existing", database.DialectMySQL, "users", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newInspector(t, tt.dialect)
			got, err := in.TableExists(context.Background(), "app", tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInspector_InspectTable(t *testing.T) {
	in, _ := newInspector(t, database.DialectPostgres)

	info, err := in.InspectTable(context.Background(), "public", "users")
	require.NoError(t, err)
	assert.Equal(t, "public", info.Schema)
	assert.Equal(t, "users", info.Name)
	assert.Equal(t, []string{"id", "email", "bio"}, info.ColumnNames())

	id := info.Columns[0]
	assert.True(t, id.IsPrimaryKey)
	assert.False(t, id.IsNullable)
	require.NotNil(t, id.DefaultValue)
	assert.Equal(t, "nextval('users_id_seq'::regclass)", *id.DefaultValue)
	assert.Nil(t, id.MaxLength)

	email := info.Columns[1]
	assert.True(t, email.IsUnique)
	require.NotNil(t, email.MaxLength)
	assert.Equal(t, 255, *email.MaxLength)
	assert.Nil(t, email.DefaultValue)

	assert.True(t, info.Columns[2].IsNullable)
}

func TestInspector_InspectTableNotFound(t *testing.T) {
	in, _ := newInspector(t, database.DialectPostgres)

	_, err := in.InspectTable(context.Background(), "public", "ghosts")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "public.ghosts")
}

func TestInspector_InspectSchema(t *testing.T) {
	in, _ := newInspector(t, database.DialectMySQL)

	info, err := in.InspectSchema(context.Background(), "app")
	require.NoError(t, err)
	require.Len(t, info.Tables, 2)
	assert.Equal(t, "posts", info.Tables[0].Name)
	assert.Equal(t, "users", info.Tables[1].Name)
	assert.Equal(t, []schema.ForeignKey{{
		Name:       "posts_user_id_fkey",
		FromTable:  "posts",
		FromColumn: "user_id",
		ToTable:    "users",
		ToColumn:   "id",
	}}, info.ForeignKeys)
}

func TestInspector_ExecuteError(t *testing.T) {
	ctx := context.Background()
	db := databasetest.New(nil)
	s := database.NewSession(db.Conn())
	defer s.Close(ctx)
	tx, err := s.Direct()
	require.NoError(t, err)

	_, err = schema.NewInspector(tx, database.DialectPostgres).ListTables(ctx, "public")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "list tables")
}

func TestColumnCodec_Encode(t *testing.T) {
	n := 32
	cells, err := schema.ColumnCodec.Encode(schema.ColumnInfo{
		Name:      "name",
		DataType:  "varchar",
		MaxLength: &n,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []database.Cell{
		{Text: "name", Valid: true},
		{Text: "varchar", Valid: true},
		{Text: "f", Valid: true},
		{},
		{Text: "32", Valid: true},
		{Text: "f", Valid: true},
		{Text: "f", Valid: true},
	}, cells)
}
