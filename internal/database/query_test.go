package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

func TestCopyBuilder(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (string, error)
		want    string
		wantErr bool
	}{
		{
			name:  "postgres copy out",
			build: database.CopyTable("events", database.DialectPostgres).ToStdout,
			want:  `COPY "events" TO STDOUT`,
		},
		{
			name:  "postgres copy in with columns",
			build: database.CopyTable("public.events", database.DialectPostgres).Columns("id", `we"ird`).FromStdin,
			want:  `COPY "public"."events" ("id", "we""ird") FROM STDIN`,
		},
		{
			name:  "postgres query",
			build: database.CopyQuery("SELECT 1", database.DialectPostgres).ToStdout,
			want:  `COPY (SELECT 1) TO STDOUT`,
		},
		{
			name:  "mysql copy out",
			build: database.CopyTable("shop.orders", database.DialectMySQL).Columns("id", "total").ToStdout,
			want:  "SELECT `id`, `total` FROM `shop`.`orders`",
		},
		{
			name:  "mysql copy in",
			build: database.CopyTable("orders", database.DialectMySQL).Columns("id").FromStdin,
			want:  "LOAD DATA LOCAL INFILE 'Reader::stdin' INTO TABLE `orders` FIELDS TERMINATED BY '\\t' ESCAPED BY '\\\\' LINES TERMINATED BY '\\n' (`id`)",
		},
		{
			name:    "empty column",
			build:   database.CopyTable("t", database.DialectPostgres).Columns("").ToStdout,
			wantErr: true,
		},
		{
			name:    "empty schema part",
			build:   database.CopyTable(".t", database.DialectMySQL).FromStdin,
			wantErr: true,
		},
		{
			name:    "copy in from query",
			build:   database.CopyQuery("SELECT 1", database.DialectPostgres).FromStdin,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if tt.wantErr {
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
