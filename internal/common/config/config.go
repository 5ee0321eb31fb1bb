package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"participant-service"`

	Server struct {
		Port   int    `env:"SERVICE_PORT" envDefault:"8004"`
		Origin string `env:"CORS_ORIGINS" envDefault:"*"`
	}

	Postgres struct {
		Host            string        `env:"DB_HOST" envDefault:"localhost"`
		Port            int           `env:"DB_PORT" envDefault:"5432"`
		Database        string        `env:"DB_NAME" envDefault:"telegive_participant"`
		User            string        `env:"DB_USER" envDefault:"postgres"`
		Password        string        `env:"DB_PASSWORD" envDefault:""`
		SSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
		MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Captcha struct {
		MinNumber      int           `env:"CAPTCHA_MIN_NUMBER" envDefault:"1"`
		MaxNumber      int           `env:"CAPTCHA_MAX_NUMBER" envDefault:"10"`
		MaxAttempts    int           `env:"CAPTCHA_MAX_ATTEMPTS" envDefault:"3"`
		SessionTimeout time.Duration `env:"CAPTCHA_SESSION_TIMEOUT" envDefault:"10m"`
	}

	Auth struct {
		// Shared secret for service-to-service calls (bot service, admin panel).
		ServiceToken string `env:"SERVICE_TO_SERVICE_SECRET"`
		BotToken     string `env:"BOT_TOKEN" envDefault:""`
	}

	Telegive struct {
		ChannelServiceURL string        `env:"TELEGIVE_CHANNEL_URL" envDefault:"http://localhost:8002"`
		RequestTimeout    time.Duration `env:"TELEGIVE_REQUEST_TIMEOUT" envDefault:"5s"`
	}

	RateLimit struct {
		RequestsPerSecond float64 `env:"API_RATE_LIMIT_RPS" envDefault:"20"`
		Burst             int     `env:"API_RATE_LIMIT_BURST" envDefault:"40"`
	}
}

func Load() *Config {
	// Missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// GetDSN builds the lib/pq connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password,
		c.Postgres.Database, c.Postgres.SSLMode)
}
