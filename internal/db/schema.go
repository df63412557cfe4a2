package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SchemaStatements returns every statement of the embedded schema files, in file order.
func SchemaStatements() ([]string, error) {
	names, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		b, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for _, s := range strings.Split(string(b), ";") {
			if s = strings.TrimSpace(s); s != "" {
				stmts = append(stmts, s)
			}
		}
	}
	return stmts, nil
}

// EnsureSchema creates missing tables. Every statement is IF NOT EXISTS, so it is safe on every boot.
func EnsureSchema(ctx context.Context, dbx *sqlx.DB) error {
	stmts, err := SchemaStatements()
	if err != nil {
		return err
	}
	for i, s := range stmts {
		if _, err := dbx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
