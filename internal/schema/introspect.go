package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

// Inspector implements Reader over information_schema for either dialect.
type Inspector struct {
	ex Executor
	q  *queries
}

// NewInspector returns an Inspector issuing d's queries through ex.
func NewInspector(ex Executor, d database.Dialect) *Inspector {
	q := &pgQueries
	if d == database.DialectMySQL {
		q = &mysqlQueries
	}
	return &Inspector{ex: ex, q: q}
}

// schemaArg binds an empty schema as NULL, which the queries replace with
// the current schema.
func schemaArg(schema string) any {
	if schema == "" {
		return nil
	}
	return schema
}

// ListTables returns all user-defined table names in the given schema
func (i *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	res, err := i.ex.Execute(ctx, i.q.listTables, schemaArg(schema))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := database.ResultCollect(res, database.String)
	if err != nil {
		return nil, fmt.Errorf("scan table name: %w", err)
	}
	return tables, nil
}

// TableExists checks whether a specific table exists
func (i *Inspector) TableExists(ctx context.Context, schema, table string) (bool, error) {
	res, err := i.ex.Execute(ctx, i.q.tableExists, schemaArg(schema), table)
	if err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	exists, err := database.ResultAs(res, database.Bool)
	if err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	return exists, nil
}

// InspectTable returns column details for a single table, in ordinal order.
func (i *Inspector) InspectTable(ctx context.Context, schema, table string) (*TableInfo, error) {
	res, err := i.ex.Execute(ctx, i.q.inspectTable, schemaArg(schema), table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", qualified(schema, table), err)
	}
	cols, err := database.ResultCollect(res, ColumnCodec)
	if err != nil {
		return nil, fmt.Errorf("scan column: %w", err)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %s not found or has no columns", qualified(schema, table))
	}
	return &TableInfo{Schema: schema, Name: table, Columns: cols}, nil
}

// InspectSchema returns all tables and foreign keys in the schema
func (i *Inspector) InspectSchema(ctx context.Context, schema string) (*SchemaInfo, error) {
	tables, err := i.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}

	info := &SchemaInfo{}
	for _, table := range tables {
		ti, err := i.InspectTable(ctx, schema, table)
		if err != nil {
			return nil, err
		}
		info.Tables = append(info.Tables, *ti)
	}

	fks, err := i.listForeignKeys(ctx, schema)
	if err != nil {
		return nil, err
	}
	info.ForeignKeys = fks

	return info, nil
}

// listForeignKeys returns all FK relationships in the schema
func (i *Inspector) listForeignKeys(ctx context.Context, schema string) ([]ForeignKey, error) {
	res, err := i.ex.Execute(ctx, i.q.foreignKeys, schemaArg(schema))
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	fks, err := database.ResultCollect(res, ForeignKeyCodec)
	if err != nil {
		return nil, fmt.Errorf("scan foreign key: %w", err)
	}
	return fks, nil
}

func qualified(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
