// Package database opens the configured SQL store as a go-persistence-bun
// client and applies the embedded payments migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const pingTimeout = 5 * time.Second

type persistenceConfig struct {
	core.DatabaseConfig
}

func (c persistenceConfig) GetDebug() bool                { return c.Debug }
func (c persistenceConfig) GetDriver() string             { return normalizeDriver(c.Driver) }
func (c persistenceConfig) GetServer() string             { return c.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return pingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-payments" }

// Open returns a persistence client for sqlite3 or postgres. SQLite is held
// to a single open connection.
func Open(cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := normalizeDriver(cfg.Driver)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database: dsn is required")
	}

	var dialect schema.Dialect
	switch driver {
	case core.DriverSQLite:
		dialect = sqlitedialect.New()
	case core.DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}
	if driver == core.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{DatabaseConfig: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: persistence client: %w", err)
	}
	return client, nil
}

// RegisterMigrations registers only the migration set matching driver.
func RegisterMigrations(ctx context.Context, client *persistence.Client, driver string) error {
	if client == nil {
		return fmt.Errorf("database: persistence client is required")
	}
	target := MigrationDialect(driver)
	if target == "" {
		return fmt.Errorf("database: unsupported driver %q", driver)
	}
	set, err := migrations.For(target)
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(set.FS)
	return nil
}

// Migrate registers and applies pending migrations.
func Migrate(ctx context.Context, client *persistence.Client, driver string) error {
	if err := RegisterMigrations(ctx, client, driver); err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// MigrationDialect maps a database driver to its migration set.
func MigrationDialect(driver string) string {
	switch normalizeDriver(driver) {
	case core.DriverSQLite:
		return migrations.DialectSQLite
	case core.DriverPostgres:
		return migrations.DialectPostgres
	default:
		return ""
	}
}

func normalizeDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "sqlite", "sqlite3":
		return core.DriverSQLite
	case "postgres", "postgresql", "pg":
		return core.DriverPostgres
	default:
		return driver
	}
}
