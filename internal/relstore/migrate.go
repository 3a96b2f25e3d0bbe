package relstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every migration in migrations/ in lexical order inside a
// single transaction. Statements use IF NOT EXISTS so Migrate is safe to
// call on every process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("relstore: list migrations: %w", err)
	}
	sort.Strings(entries)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relstore: begin migration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, name := range entries {
		b, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("relstore: read %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("relstore: apply %s: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}
