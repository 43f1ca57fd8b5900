package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where migrate -cmd=create drops new files.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded exposes the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func newProvider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Up applies every embedded migration.
func Up(ctx context.Context, db *sql.DB) error {
	_, err := up(ctx, db, Embedded())
	return err
}

func up(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	provider, err := newProvider(db, fsys)
	if err != nil {
		return 0, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Run executes up, down or status against the migrations in dir. Status is
// written to stdout as a table.
func Run(ctx context.Context, db *sql.DB, dir string, command string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	fsys := os.DirFS(dir)
	switch command {
	case "up":
		_, err := up(ctx, db, fsys)
		return err
	case "down":
		provider, err := newProvider(db, fsys)
		if err != nil {
			return err
		}
		if _, err := provider.Down(ctx); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		return nil
	case "status":
		provider, err := newProvider(db, fsys)
		if err != nil {
			return err
		}
		return printStatus(ctx, os.Stdout, provider)
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
}

func printStatus(ctx context.Context, out io.Writer, provider *goose.Provider) error {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return w.Flush()
}

// MigrateToVersion moves the schema up or down until target is the current
// version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (want YYYYMMDDHHMMSS): %w", target, err)
	}
	provider, err := newProvider(db, os.DirFS(dir))
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("current db version: %w", err)
	}
	switch {
	case current < version:
		_, err = provider.UpTo(ctx, version)
	case current > version:
		_, err = provider.DownTo(ctx, version)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, version, err)
	}
	return nil
}
