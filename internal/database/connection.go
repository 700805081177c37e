package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/tourcrow/payments-backend/internal/config"
)

// DB is the part of the connection the HTTP layer needs for health checks
type DB interface {
	PingContext(ctx context.Context) error
	Close() error
}

// PostgresDB implements the DB interface using sqlx
type PostgresDB struct {
	*sqlx.DB
}

// pgxOnlyParams are connection string options understood by pgx but not by
// lib/pq. lib/pq forwards unknown options to the server as run-time settings,
// which Postgres rejects with "unrecognized configuration parameter".
var pgxOnlyParams = []string{
	"prefer_simple_protocol",
	"default_query_exec_mode",
	"statement_cache_capacity",
	"description_cache_capacity",
}

// transactionPoolerPort is the Supabase transaction mode pooler port
const transactionPoolerPort = "6543"

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dsn, err := dataSourceName(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// dataSourceName prepares a postgres:// URL for lib/pq. pgx-only options are
// dropped. Behind a transaction mode pooler, binary_parameters=yes makes
// lib/pq send parameterised queries without a separate named prepare, which
// the pooler cannot route. Key/value DSNs are passed through unchanged.
func dataSourceName(raw string) (string, error) {
	if !strings.HasPrefix(raw, "postgres://") && !strings.HasPrefix(raw, "postgresql://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := u.Query()
	for _, param := range pgxOnlyParams {
		query.Del(param)
	}
	if u.Port() == transactionPoolerPort && query.Get("binary_parameters") == "" {
		query.Set("binary_parameters", "yes")
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
