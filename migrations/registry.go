package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	payments "github.com/goliatone/go-payments"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Set is the migration directory for one SQL dialect. Postgres files live at
// the root; dialect overrides live in a subdirectory named after the dialect.
type Set struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, set Set) error

// Sets resolves every dialect set from the embedded schema, or from source
// when given. Each set must contain at least one *.up.sql file.
func Sets(source ...fs.FS) ([]Set, error) {
	root := payments.GetMigrationsFS()
	if len(source) > 0 && source[0] != nil {
		root = source[0]
	}
	base, basePath, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite set: %w", err)
	}

	sets := []Set{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, DialectSQLite), FS: sqliteFS},
	}
	for _, set := range sets {
		matches, err := fs.Glob(set.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", set.Dialect, set.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s set %q has no *.up.sql files", set.Dialect, set.Path)
		}
	}
	return sets, nil
}

// For returns the embedded set for a single dialect.
func For(dialect string) (Set, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	sets, err := Sets()
	if err != nil {
		return Set{}, err
	}
	for _, set := range sets {
		if set.Dialect == dialect {
			return set, nil
		}
	}
	return Set{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register hands each requested dialect set to registerFn. With no dialects
// every set is registered.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	sets, err := Sets()
	if err != nil {
		return err
	}

	targets := normalize(dialects)
	for _, target := range targets {
		if !slices.ContainsFunc(sets, func(set Set) bool { return set.Dialect == target }) {
			return fmt.Errorf("migrations: unsupported dialect %q", target)
		}
	}
	for _, set := range sets {
		if len(targets) > 0 && !slices.Contains(targets, set.Dialect) {
			continue
		}
		if err := registerFn(ctx, set); err != nil {
			return fmt.Errorf("migrations: register %s (%s): %w", set.Dialect, set.Path, err)
		}
	}
	return nil
}

func resolveRoot(root fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(root, rootPath); err == nil {
		sub, err := fs.Sub(root, rootPath)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: %w", err)
		}
		return sub, rootPath, nil
	}
	if matches, _ := fs.Glob(root, "*.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootPath)
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}

func joinPath(base string, name string) string {
	if base == "." {
		return name
	}
	return strings.TrimSuffix(base, "/") + "/" + name
}
