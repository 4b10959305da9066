package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwsmith1983/gamedata-etl/internal/provider"
)

var _ provider.RunArchive = (*Store)(nil)

// Pool defaults for one archiver writer plus short CLI reads.
const (
	maxConns        = 4
	maxConnIdleTime = 5 * time.Minute
	applicationName = "gamedata-etl"
)

// Store is the run archive. Rows are only ever inserted.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the archive at dsn and pings it.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// poolConfig parses dsn and applies archive defaults. Settings given in the
// DSN (pool_max_conns, application_name) win.
func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if !hasParam(dsn, "pool_max_conns") {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = maxConnIdleTime
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

// hasParam reports whether dsn sets key, in either URL or key=value form.
func hasParam(dsn, key string) bool {
	return strings.Contains(dsn, key+"=")
}

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}
