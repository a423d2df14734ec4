package app

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksync/internal/config"
)

func TestNewLogger(t *testing.T) {
	log := NewLogger(&config.Config{Env: "production", LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = NewLogger(&config.Config{Env: "development", LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestOpenStore(t *testing.T) {
	log := NewLogger(&config.Config{LogLevel: "error"})

	store, closeStore, err := OpenStore(&config.Config{Storage: config.DriverMemory}, log)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, closeStore())

	_, _, err = OpenStore(&config.Config{Storage: "mongo"}, log)
	assert.Error(t, err)
}
