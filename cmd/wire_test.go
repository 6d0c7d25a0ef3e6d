package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"equipment_service/internal/config"
	"equipment_service/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_UnreachableRedisIsReleased(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", logger.FormatJSON)

	cfg := config.Config{
		DB:    config.DBConfig{Driver: config.DriverMemory},
		Auth:  config.AuthConfig{SigningKey: "k", TokenTTL: time.Hour},
		Redis: config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.closers)
	assert.Contains(t, buf.String(), "overview cache disabled")
	assert.NotContains(t, buf.String(), "failed to close redis")
}

func TestNewApp_UnsupportedDriver(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "info", logger.FormatJSON)
	_, err := newApp(context.Background(), config.Config{DB: config.DBConfig{Driver: "oracle"}}, log)
	require.Error(t, err)
}
