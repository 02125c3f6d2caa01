// Package migrate applies the goose SQL migrations that define the bank schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written by the create command.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source resolves the migration files to run. An empty dir selects the set
// compiled into the binary.
func Source(dir string) fs.FS {
	if dir == "" {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			panic(err)
		}
		return sub
	}
	return os.DirFS(dir)
}

// Commands lists what Run accepts.
var Commands = []string{"up", "down", "redo", "status"}

// Run executes a goose command against Postgres and reports each step to out.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command string, out io.Writer) error {
	p, err := newProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return err
	}
	return run(ctx, p, command, out)
}

// MigrateToVersion moves the schema up or down until target is the newest
// applied version.
func MigrateToVersion(ctx context.Context, db *sql.DB, fsys fs.FS, target string, out io.Writer) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	p, err := newProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return err
	}
	return toVersion(ctx, p, version, out)
}

func newProvider(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if fsys == nil {
		return nil, fmt.Errorf("migration source is required")
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

func run(ctx context.Context, p *goose.Provider, command string, out io.Writer) error {
	switch command {
	case "up":
		results, err := p.Up(ctx)
		report(out, results...)
		return wrap(command, err)
	case "down":
		result, err := p.Down(ctx)
		report(out, result)
		return wrap(command, err)
	case "redo":
		result, err := p.Down(ctx)
		report(out, result)
		if err != nil {
			return wrap(command, err)
		}
		result, err = p.UpByOne(ctx)
		report(out, result)
		return wrap(command, err)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return wrap(command, err)
		}
		for _, s := range statuses {
			applied := "-"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-8s %-19s %s\n", s.State, applied, path.Base(s.Source.Path))
		}
		return nil
	}
	return fmt.Errorf("unsupported goose command %q", command)
}

func toVersion(ctx context.Context, p *goose.Provider, target int64, out io.Writer) error {
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		fmt.Fprintf(out, "already at version %d\n", target)
		return nil
	case current < target:
		results, err = p.UpTo(ctx, target)
	default:
		results, err = p.DownTo(ctx, target)
	}
	report(out, results...)
	if err != nil {
		return fmt.Errorf("goose %d -> %d: %w", current, target, err)
	}
	return nil
}

func report(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%-4s %s (%s)\n", r.Direction, path.Base(r.Source.Path), r.Duration.Round(time.Millisecond))
	}
}

func wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
