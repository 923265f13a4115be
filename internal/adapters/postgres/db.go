package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Config holds the connection knobs for the index database. Zero values
// fall back to defaults sized for the indexer's steady small-row workload.
type Config struct {
	URL             string
	MaxOpenConns    int32
	PingTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (c *Config) applyDefaults() {
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 15 * time.Minute
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

// Open connects to the index database and verifies it is reachable before
// the stores are built on top of it.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	cfg.applyDefaults()
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("index database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxOpenConns))
		sqlDB.SetMaxIdleConns(int(cfg.MaxOpenConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping index database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations in lexical order. The
// statements are idempotent (CREATE TABLE IF NOT EXISTS style), so running
// them on every startup is safe.
func Migrate(ctx context.Context, db *gorm.DB) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list index migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		raw, readErr := migrationFS.ReadFile(name)
		if readErr != nil {
			return fmt.Errorf("read index migration %s: %w", name, readErr)
		}
		if execErr := db.WithContext(ctx).Exec(string(raw)).Error; execErr != nil {
			return fmt.Errorf("apply index migration %s: %w", name, execErr)
		}
	}
	return nil
}
