package schema

// queries holds one dialect's information_schema statements. Each takes
// the schema as its first parameter; NULL selects the current schema.
type queries struct {
	listTables   string
	tableExists  string
	inspectTable string
	foreignKeys  string
}

var pgQueries = queries{
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE($1, current_schema())
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,

	tableExists: `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = COALESCE($1, current_schema()) AND table_name = $2
		)`,

	inspectTable: `
		WITH target AS (SELECT COALESCE($1, current_schema()) AS schema_name)
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'              AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			COALESCE(pk.is_pk, false)          AS is_primary_key,
			COALESCE(uq.is_unique, false)      AS is_unique
		FROM information_schema.columns c
		CROSS JOIN target t

		-- Primary key check
		LEFT JOIN (
			SELECT kcu.table_schema, kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_name = $2
		) pk ON pk.column_name = c.column_name AND pk.table_schema = t.schema_name

		-- Unique constraint check
		LEFT JOIN (
			SELECT DISTINCT kcu.table_schema, kcu.column_name, true AS is_unique
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'UNIQUE'
			  AND tc.table_name = $2
		) uq ON uq.column_name = c.column_name AND uq.table_schema = t.schema_name

		WHERE c.table_schema = t.schema_name AND c.table_name = $2
		ORDER BY c.ordinal_position`,

	foreignKeys: `
		SELECT
			tc.constraint_name,
			kcu.table_name   AS from_table,
			kcu.column_name  AS from_column,
			ccu.table_name   AS to_table,
			ccu.column_name  AS to_column
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = COALESCE($1, current_schema())
		ORDER BY tc.constraint_name`,
}

// In MySQL a schema is a database.
var mysqlQueries = queries{
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(?, DATABASE())
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,

	tableExists: `
		SELECT COUNT(*) > 0
		FROM information_schema.tables
		WHERE table_schema = COALESCE(?, DATABASE()) AND table_name = ?`,

	inspectTable: `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'                         AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			(c.column_key = 'PRI')                        AS is_primary_key,
			(c.column_key = 'UNI')                        AS is_unique
		FROM information_schema.columns c
		WHERE c.table_schema = COALESCE(?, DATABASE())
		  AND c.table_name   = ?
		ORDER BY c.ordinal_position`,

	foreignKeys: `
		SELECT
			rc.constraint_name,
			kcu.table_name       AS from_table,
			kcu.column_name      AS from_column,
			kcu.referenced_table_name  AS to_table,
			kcu.referenced_column_name AS to_column
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON rc.constraint_name = kcu.constraint_name
			AND rc.constraint_schema = kcu.table_schema
		WHERE rc.constraint_schema = COALESCE(?, DATABASE())
		ORDER BY rc.constraint_name`,
}
