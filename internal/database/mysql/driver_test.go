package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"space", "SELECT a FROM t", true},
		{"leading spaces", "  select * from t", true},
		{"show", "SHOW TABLES", true},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"savepoint", "SAVEPOINT tabula_sp_1", false},
		{"begin", "BEGIN", false},
		{"lower case", "select * from t", true},
		{"tab", "SELECT\ta FROM t", true},
		{"newline", "\n\t\tSELECT\n\t\t\tc.column_name,\n\t\t\tc.data_type\n\t\tFROM information_schema.columns c", true},
		{"parenthesised", "(SELECT a FROM t) UNION (SELECT b FROM u)", true},
		{"parenthesis after spaces", "  ( SELECT 1)", true},
		{"bare keyword", "SHOW", true},
		{"insert", "INSERT INTO t VALUES (1)", false},
		{"multi-line update", "UPDATE\n\tt SET a = 1", false},
		{"empty", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, returnsRows(tt.query))
		})
	}
}

func TestVerb(t *testing.T) {
	assert.Equal(t, "SELECT", verb("\n select\tx"))
	assert.Equal(t, "WITH", verb("(with(x) AS (SELECT 1) SELECT * FROM x)"))
	assert.Equal(t, "", verb(""))
}
