// Package database persists advisor conversations, executed trades and
// account metrics snapshots in PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"crypto-ai-trader/config"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB opens a connection pool and verifies it with a ping.
func NewDB(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the schema. Statements are idempotent so the
// whole list runs on every startup.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// Advisor conversations: one row per decision cycle.
		`CREATE TABLE IF NOT EXISTS chats (
			id UUID PRIMARY KEY,
			model VARCHAR(50) NOT NULL,
			chat TEXT NOT NULL,
			reasoning TEXT,
			user_prompt TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_created_at ON chats(created_at)`,

		// Executed trades, linked back to the chat that triggered them.
		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			operation VARCHAR(10) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			pricing DECIMAL(20, 8) NOT NULL,
			leverage INTEGER NOT NULL DEFAULT 1,
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			chat_id UUID REFERENCES chats(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at)`,

		// Named rolling metrics documents, one row per collector.
		`CREATE TABLE IF NOT EXISTS metrics (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			model VARCHAR(50) NOT NULL,
			metrics JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_name ON metrics(name)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("statements", len(migrations)).Msg("database migrations complete")
	return nil
}
