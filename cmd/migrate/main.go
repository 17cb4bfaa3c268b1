package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/migrate"
)

// gooseCommands are passed straight through to goose.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true}

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(opts, logg); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options, logg *logger.Logger) error {
	// create and validate only touch the filesystem
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	if !gooseCommands[opts.cmd] && opts.cmd != "version" {
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
	if opts.cmd == "version" && opts.version == "" {
		return errors.New("missing -version for version command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	// sqlite has no goose history; the embedded schema is applied instead.
	if cfg.DB.Driver == db.DriverSQLite {
		if opts.cmd != "up" {
			return fmt.Errorf("%s is not supported on sqlite", opts.cmd)
		}
		logg.Info(ctx, "applying sqlite schema")
		return migrate.ApplySQLiteSchema(ctx, dbClient.DB())
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}

	logg.Info(ctx, "migrate ready")
	switch opts.cmd {
	case "version":
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	case "status":
		statuses, err := migrate.Status(ctx, sqlDB, opts.dir)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-14d %-10s %s\n", st.Source.Version, st.State, applied)
		}
		return nil
	}
	return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
}
