package store

import (
	"context"
	"fmt"
	"strings"
)

// ensureSchema creates the tables the store needs when they are missing.
// Existing tables are left untouched; there is no versioned migration.
func (s *Store) ensureSchema(ctx context.Context) error {
	d := s.dialect

	apiKeys := strings.Join([]string{
		d.idColumn,
		"key_hash " + d.keyType + " NOT NULL UNIQUE",
		"key_prefix " + d.keyType + " NOT NULL",
		"label " + d.keyType + " NOT NULL DEFAULT ''",
		"is_active " + d.boolType + " NOT NULL DEFAULT " + d.trueLiteral(),
		"created_at " + d.types[kindTime] + " NOT NULL",
		"last_used " + d.types[kindTime],
	}, ", ")

	defs := []string{
		d.idColumn,
		"code " + d.keyType + " NOT NULL UNIQUE",
	}
	for _, c := range subprojectColumns {
		defs = append(defs, c.name+" "+d.types[c.kind])
	}
	defs = append(defs,
		"created_at "+d.types[kindTime]+" NOT NULL",
		"updated_at "+d.types[kindTime]+" NOT NULL",
	)

	statements := []string{
		d.createTable("api_keys", apiKeys),
		d.createTable("subprojects", strings.Join(defs, ", ")),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

func (d *dialect) trueLiteral() string {
	if d.name == "postgres" {
		return "TRUE"
	}
	return "1"
}
