package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.embedded, "embedded", false, "apply the migrations compiled into the binary (up only)")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// create and validate never need a database or config.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	}

	p, err := bootstrap.Load("migrate")
	if err != nil {
		return err
	}
	logg := p.Logger
	ctx = logg.WithFields(ctx, map[string]any{"env": p.Config.App.Env, "cmd": opts.cmd, "dir": opts.dir})

	client, err := db.New(ctx, p.Config.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	if err := apply(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		return err
	}
	logg.Info(ctx, "migration command complete")
	return nil
}

func apply(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up":
		if opts.embedded {
			return migrate.Up(ctx, sqlDB)
		}
		return migrate.Run(ctx, sqlDB, opts.dir, "up")
	case "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
