package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source resolves dir to the migration files. The default directory falls
// back to the copy compiled into the binary when it is not on disk, so
// deployed images can migrate without shipping SQL files.
func Source(dir string) (fs.FS, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir), nil
	}
	if dir != DefaultDir {
		return nil, fmt.Errorf("migrations dir %q not found", dir)
	}
	return fs.Sub(embedded, "migrations")
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, err := Source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run applies "up" (all pending) or "down" (latest one).
func Run(ctx context.Context, db *sql.DB, dir string, command string) error {
	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		_, err = provider.Up(ctx)
	case "down":
		_, err = provider.Down(ctx)
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Status lists every known migration and whether it has been applied.
func Status(ctx context.Context, db *sql.DB, dir string) ([]*goose.MigrationStatus, error) {
	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	return provider.Status(ctx)
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current < target:
		_, err = provider.UpTo(ctx, target)
	case current > target:
		_, err = provider.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
