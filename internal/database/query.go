package database

import (
	"strings"
)

// Dialect controls how the copy statement builder quotes identifiers and
// which bulk statements it emits.
type Dialect int

const (
	// DialectPostgres emits COPY ... TO STDOUT / FROM STDIN.
	DialectPostgres Dialect = iota

	// DialectMySQL emits a plain SELECT for copy-out and LOAD DATA LOCAL
	// INFILE from the driver's stdin reader for copy-in.
	DialectMySQL
)

// MySQLStdin is the LOAD DATA source name the mysql driver binds to the
// data sent through Conn.PutCopyData.
const MySQLStdin = "Reader::stdin"

// CopyBuilder constructs copy-out and copy-in statements for a table.
//
// Usage:
//
//	stmt, err := CopyTable("public.events", DialectPostgres).
//	    Columns("id", "payload").
//	    FromStdin()
//	// COPY "public"."events" ("id", "payload") FROM STDIN
type CopyBuilder struct {
	table   string
	query   string
	dialect Dialect
	columns []string
}

// CopyTable starts a builder for a table, optionally schema-qualified
// ("schema.table").
func CopyTable(table string, d Dialect) *CopyBuilder {
	return &CopyBuilder{table: table, dialect: d}
}

// CopyQuery starts a copy-out builder for an arbitrary query.
func CopyQuery(query string, d Dialect) *CopyBuilder {
	return &CopyBuilder{query: query, dialect: d}
}

// Columns restricts the copy to the given columns, in this order.
// If not called, every column of the table is copied.
func (b *CopyBuilder) Columns(cols ...string) *CopyBuilder {
	b.columns = cols
	return b
}

// ToStdout builds the copy-out statement.
func (b *CopyBuilder) ToStdout() (string, error) {
	if b.query != "" {
		if b.dialect == DialectMySQL {
			return b.query, nil
		}
		return "COPY (" + b.query + ") TO STDOUT", nil
	}
	table, cols, err := b.quoted()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if b.dialect == DialectMySQL {
		sb.WriteString("SELECT ")
		if cols == "" {
			sb.WriteString("*")
		} else {
			sb.WriteString(cols)
		}
		sb.WriteString(" FROM ")
		sb.WriteString(table)
		return sb.String(), nil
	}

	sb.WriteString("COPY ")
	sb.WriteString(table)
	if cols != "" {
		sb.WriteString(" (" + cols + ")")
	}
	sb.WriteString(" TO STDOUT")
	return sb.String(), nil
}

// FromStdin builds the copy-in statement.
func (b *CopyBuilder) FromStdin() (string, error) {
	if b.query != "" {
		return "", errInvalidInput("copy-in requires a table, not a query")
	}
	table, cols, err := b.quoted()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if b.dialect == DialectMySQL {
		sb.WriteString("LOAD DATA LOCAL INFILE '" + MySQLStdin + "' INTO TABLE ")
		sb.WriteString(table)
		sb.WriteString(` FIELDS TERMINATED BY '\t' ESCAPED BY '\\' LINES TERMINATED BY '\n'`)
		if cols != "" {
			sb.WriteString(" (" + cols + ")")
		}
		return sb.String(), nil
	}

	sb.WriteString("COPY ")
	sb.WriteString(table)
	if cols != "" {
		sb.WriteString(" (" + cols + ")")
	}
	sb.WriteString(" FROM STDIN")
	return sb.String(), nil
}

func (b *CopyBuilder) quoted() (table, cols string, err error) {
	if table, err = b.quoteName(b.table); err != nil {
		return "", "", err
	}
	quoted := make([]string, len(b.columns))
	for i, c := range b.columns {
		if quoted[i], err = b.quoteIdent(c); err != nil {
			return "", "", err
		}
	}
	return table, strings.Join(quoted, ", "), nil
}

// quoteName quotes each dot-separated part of a possibly qualified name.
func (b *CopyBuilder) quoteName(name string) (string, error) {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		q, err := b.quoteIdent(p)
		if err != nil {
			return "", err
		}
		parts[i] = q
	}
	return strings.Join(parts, "."), nil
}

// quoteIdent wraps a SQL identifier in the dialect's quote character,
// doubling any embedded quote.
func (b *CopyBuilder) quoteIdent(name string) (string, error) {
	if name == "" {
		return "", errInvalidInput("empty identifier")
	}
	return QuoteIdent(name, b.dialect), nil
}

// QuoteIdent quotes a single identifier for d: double quotes for
// PostgreSQL, backticks for MySQL.
func QuoteIdent(name string, d Dialect) string {
	q := `"`
	if d == DialectMySQL {
		q = "`"
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}
