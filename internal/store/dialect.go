package store

import (
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

type columnKind int

const (
	kindText columnKind = iota
	kindDecimal
	kindInt
	kindTime
)

type column struct {
	name string
	kind columnKind
}

// subprojectColumns lists every attribute column of the subprojects table
// except the natural key and the store-managed id/timestamps. The upsert
// writes all of them on both the insert and the update branch.
var subprojectColumns = []column{
	{"title", kindText},
	{"ancestral_domain", kindText},
	{"cadt_number", kindText},
	{"location", kindText},
	{"description", kindText},
	{"scope_of_works", kindText},
	{"target_length", kindDecimal},
	{"unit_of_measure", kindText},
	{"source_of_fund", kindText},
	{"year_funded", kindInt},
	{"total_budget", kindDecimal},
	{"approved_budget", kindDecimal},
	{"implementing_agency", kindText},
	{"contractor", kindText},
	{"latitude", kindDecimal},
	{"longitude", kindDecimal},
	{"duration", kindInt},
	{"start_date", kindTime},
	{"target_completion_date", kindTime},
	{"actual_completion_date", kindTime},
	{"status", kindText},
}

// dialect captures the per-database SQL differences the store cares about:
// column types, identity columns, and how to express an upsert.
type dialect struct {
	name   string // canonical name reported by Store.DriverName
	driver string // database/sql driver name

	idColumn string
	keyType  string // short indexed strings (code, key_hash)
	types    map[columnKind]string
	boolType string

	// singleConn restricts the pool to one connection (SQLite).
	singleConn bool
	// returningID is the clause appended to an INSERT to get the new id
	// back as a row. Empty means use LastInsertId.
	returningID string
	// outputID is inserted between the column list and VALUES (SQL Server).
	outputID string

	createTable func(name, body string) string
	upsert      func(table, key string, cols []string) string

	prepareDSN func(dsn string) (string, error)
}

var sqliteDialect = &dialect{
	name:     "sqlite",
	driver:   "sqlite",
	idColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT",
	keyType:  "TEXT",
	types: map[columnKind]string{
		kindText: "TEXT",
		// TEXT, not NUMERIC: NUMERIC affinity would coerce values to REAL.
		kindDecimal: "TEXT",
		kindInt:     "INTEGER",
		kindTime:    "DATETIME",
	},
	boolType:    "INTEGER",
	singleConn:  true,
	returningID: " RETURNING id",
	createTable: createIfNotExists,
	upsert:      onConflictUpsert,
	prepareDSN: func(dsn string) (string, error) {
		if dsn == "" || dsn == ":memory:" {
			return ":memory:", nil
		}
		if strings.Contains(dsn, "?") {
			return dsn, nil
		}
		return dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	},
}

var postgresDialect = &dialect{
	name:     "postgres",
	driver:   "pgx",
	idColumn: "id BIGSERIAL PRIMARY KEY",
	keyType:  "TEXT",
	types: map[columnKind]string{
		kindText:    "TEXT",
		kindDecimal: "NUMERIC",
		kindInt:     "BIGINT",
		kindTime:    "TIMESTAMPTZ",
	},
	boolType:    "BOOLEAN",
	returningID: " RETURNING id",
	createTable: createIfNotExists,
	upsert:      onConflictUpsert,
	prepareDSN: func(dsn string) (string, error) {
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return "", fmt.Errorf("%w: postgres DSN must be a postgres:// or postgresql:// URL", ErrInvalidDSN)
		}
		return dsn, nil
	},
}

var mysqlDialect = &dialect{
	name:     "mysql",
	driver:   "mysql",
	idColumn: "id BIGINT AUTO_INCREMENT PRIMARY KEY",
	keyType:  "VARCHAR(191)",
	types: map[columnKind]string{
		kindText:    "TEXT",
		// 26 integer and 12 fractional digits; wider values are rejected
		// by the database rather than rounded.
		kindDecimal: "DECIMAL(38,12)",
		kindInt:     "BIGINT",
		kindTime:    "DATETIME(6)",
	},
	boolType:    "BOOLEAN",
	createTable: createIfNotExists,
	upsert: func(table, key string, cols []string) string {
		sets := make([]string, 0, len(cols)+1)
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		sets = append(sets, "updated_at = VALUES(updated_at)")
		return insertStatement(table, key, cols) + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	},
	prepareDSN: func(dsn string) (string, error) {
		cfg, err := mysqldriver.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidDSN, err)
		}
		// DATETIME columns must scan into time.Time.
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	},
}

var sqlserverDialect = &dialect{
	name:     "sqlserver",
	driver:   "sqlserver",
	idColumn: "id BIGINT IDENTITY(1,1) PRIMARY KEY",
	keyType:  "NVARCHAR(191)",
	types: map[columnKind]string{
		kindText:    "NVARCHAR(MAX)",
		// 26 integer and 12 fractional digits; wider values are rejected
		// by the database rather than rounded.
		kindDecimal: "DECIMAL(38,12)",
		kindInt:     "BIGINT",
		kindTime:    "DATETIMEOFFSET",
	},
	boolType: "BIT",
	outputID: " OUTPUT INSERTED.id",
	createTable: func(name, body string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", name, name, body)
	},
	upsert: func(table, key string, cols []string) string {
		sets := make([]string, 0, len(cols)+1)
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("t.%s = :%s", c, c))
		}
		sets = append(sets, "t.updated_at = :updated_at")

		all := append([]string{key}, cols...)
		all = append(all, "created_at", "updated_at")
		return fmt.Sprintf(
			"MERGE %s WITH (HOLDLOCK) AS t USING (SELECT :%s AS %s) AS s ON t.%s = s.%s "+
				"WHEN MATCHED THEN UPDATE SET %s "+
				"WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
			table, key, key, key, key,
			strings.Join(sets, ", "),
			strings.Join(all, ", "), namedParams(all),
		)
	},
	prepareDSN: func(dsn string) (string, error) {
		if dsn == "" {
			return "", fmt.Errorf("%w: sqlserver DSN is required", ErrInvalidDSN)
		}
		return dsn, nil
	},
}

func createIfNotExists(name, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, body)
}

// onConflictUpsert builds an INSERT ... ON CONFLICT upsert, shared by
// PostgreSQL and SQLite. created_at is only written on insert.
func onConflictUpsert(table, key string, cols []string) string {
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	sets = append(sets, "updated_at = excluded.updated_at")
	return insertStatement(table, key, cols) +
		fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
}

func insertStatement(table, key string, cols []string) string {
	all := append([]string{key}, cols...)
	all = append(all, "created_at", "updated_at")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), namedParams(all))
}

func namedParams(cols []string) string {
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}
	return strings.Join(params, ", ")
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}
