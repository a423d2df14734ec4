// Package config loads the server settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env         string        `env:"APP_ENV" env-default:"development"`
	Port        string        `env:"PORT" env-default:"8080"`
	Storage     string        `env:"STORAGE_DRIVER" env-default:"postgres"`
	DatabaseURL string        `env:"DATABASE_URL"`
	LogLevel    string        `env:"LOG_LEVEL" env-default:"info"`
	CORSOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	Currency    string        `env:"CURRENCY" env-default:"usd"`
	JWT         JWT
	Stripe      Stripe
	SendGrid    SendGrid
	Twilio      Twilio
	Jobs        Jobs
	Admin       Admin
}

type JWT struct {
	Secret   string        `env:"JWT_SECRET"`
	TokenTTL time.Duration `env:"TOKEN_TTL" env-default:"24h"`
}

type Stripe struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL    string `env:"STRIPE_SUCCESS_URL" env-default:"http://localhost:3000/payments/success"`
	CancelURL     string `env:"STRIPE_CANCEL_URL" env-default:"http://localhost:3000/payments/cancel"`
}

func (s Stripe) Enabled() bool { return s.SecretKey != "" }

type SendGrid struct {
	APIKey    string `env:"SENDGRID_API_KEY"`
	FromEmail string `env:"SENDGRID_FROM_EMAIL" env-default:"no-reply@parksync.com"`
	FromName  string `env:"SENDGRID_FROM_NAME" env-default:"ParkSync"`
}

func (s SendGrid) Enabled() bool { return s.APIKey != "" }

type Twilio struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `env:"TWILIO_FROM_NUMBER"`
}

func (t Twilio) Enabled() bool { return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != "" }

type Jobs struct {
	SnapshotBackfillSchedule string        `env:"SNAPSHOT_BACKFILL_SCHEDULE" env-default:"@every 1h"`
	DueReminderSchedule      string        `env:"DUE_REMINDER_SCHEDULE" env-default:"0 9 * * *"`
	DueReminderAfter         time.Duration `env:"DUE_REMINDER_AFTER" env-default:"72h"`
}

type Admin struct {
	Username string `env:"ADMIN_USERNAME" env-default:"admin"`
	Email    string `env:"ADMIN_EMAIL" env-default:"admin@parksync.com"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads .env (if any) and the process environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET not set")
	}
	if c.JWT.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
