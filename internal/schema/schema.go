// Package schema reads table metadata from information_schema through a
// database transaction scope.
package schema

import (
	"context"

	"github.com/koustreak/tabula/internal/database"
)

// Executor runs one statement and buffers its result. *database.Tx
// implements it.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) (*database.Result, error)
}

// Reader is the interface for introspecting a database schema.
// An empty schema name means the connection's current schema
// (PostgreSQL) or database (MySQL).
type Reader interface {
	// ListTables returns all user tables in the given schema (e.g. "public")
	ListTables(ctx context.Context, schema string) ([]string, error)

	// TableExists checks whether a table exists
	TableExists(ctx context.Context, schema, table string) (bool, error)

	// InspectTable returns full column info for a table
	InspectTable(ctx context.Context, schema, table string) (*TableInfo, error)

	// InspectSchema returns the full schema (all tables + foreign keys)
	InspectSchema(ctx context.Context, schema string) (*SchemaInfo, error)
}

var _ Reader = (*Inspector)(nil)
