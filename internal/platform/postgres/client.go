package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/azatarm-prog/telegive-participant/internal/common/config"
	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(cfg *config.Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{db: db}
	if err := client.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logger.Info().
		Str("host", cfg.Postgres.Host).
		Int("port", cfg.Postgres.Port).
		Str("database", cfg.Postgres.Database).
		Msg("PostgreSQL client initialized")

	return client, nil
}

func (c *Client) ensureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			id BIGSERIAL PRIMARY KEY,
			giveaway_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(100),
			first_name VARCHAR(100),
			last_name VARCHAR(100),
			participated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			captcha_completed BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_verified BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_verified_at TIMESTAMP WITH TIME ZONE,
			is_winner BOOLEAN NOT NULL DEFAULT FALSE,
			winner_selected_at TIMESTAMP WITH TIME ZONE,
			CONSTRAINT uq_giveaway_user UNIQUE (giveaway_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_captcha_records (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE,
			captcha_completed BOOLEAN NOT NULL DEFAULT FALSE,
			captcha_completed_at TIMESTAMP WITH TIME ZONE,
			first_participation_at TIMESTAMP WITH TIME ZONE,
			last_participation_at TIMESTAMP WITH TIME ZONE,
			total_participations INTEGER NOT NULL DEFAULT 0,
			total_wins INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS winner_selection_log (
			id BIGSERIAL PRIMARY KEY,
			giveaway_id BIGINT NOT NULL UNIQUE,
			total_eligible INTEGER NOT NULL,
			winner_count_requested INTEGER NOT NULL,
			winner_count_selected INTEGER NOT NULL,
			selection_method VARCHAR(50) NOT NULL DEFAULT 'cryptographic_random',
			selected_user_ids BIGINT[] NOT NULL,
			selection_timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_giveaway_id ON participants(giveaway_id)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_user_id ON participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_is_winner ON participants(is_winner)`,
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// GetDB exposes the pool to the repositories.
func (c *Client) GetDB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}
