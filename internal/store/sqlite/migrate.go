package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/rakunlabs/flowgraph/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateDB applies the schema under migrations/ once, substituting
// TABLE_PREFIX from cfg.Values. Statements are idempotent (CREATE TABLE/INDEX
// IF NOT EXISTS), so re-running this on every startup is safe without a
// tracked migration-version table.
func MigrateDB(ctx context.Context, db *sql.DB, cfg *config.Migrate) error {
	if db == nil {
		return errors.New("migrate: database connection is nil")
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("migrate: read migrations dir: %w", err)
	}

	for _, entry := range entries {
		raw, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", entry.Name(), err)
		}

		script := string(raw)
		for key, value := range cfg.Values {
			script = strings.ReplaceAll(script, "{{"+key+"}}", value)
		}

		for _, stmt := range strings.Split(script, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: apply %s: %w", entry.Name(), err)
			}
		}
	}

	return nil
}
