// Package app holds the wiring shared by the server and seed commands.
package app

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"parksync/internal/config"
	"parksync/internal/migrations"
	"parksync/internal/repository"
	"parksync/internal/repository/memory"
)

// NewLogger builds the process logger: text in development, JSON elsewhere.
func NewLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.IsDevelopment() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// OpenStore opens the configured storage driver. For Postgres it applies the
// embedded migrations before returning. The returned close func releases the
// connection pool.
func OpenStore(cfg *config.Config, log logrus.FieldLogger) (repository.Store, func() error, error) {
	switch cfg.Storage {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() error { return nil }, nil
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open DB: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err := migrations.Run(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations applied")
		return repository.NewPostgresStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}
}
