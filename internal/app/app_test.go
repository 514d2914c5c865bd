package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shorturls/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shorturls/internal/config"
)

func TestOpenRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory", func(t *testing.T) {
		repo, closeRepo, err := openRepository(context.Background(), &config.Config{Storage: config.StorageMemory}, logger)

		require.NoError(t, err)
		assert.IsType(t, &memory.URLRepository{}, repo)
		assert.NoError(t, closeRepo())
	})

	t.Run("unknown storage", func(t *testing.T) {
		repo, closeRepo, err := openRepository(context.Background(), &config.Config{Storage: "cassandra"}, logger)

		assert.Error(t, err)
		assert.Nil(t, repo)
		assert.Nil(t, closeRepo)
	})
}

func TestNewLogger(t *testing.T) {
	cfg := &config.Config{
		Env: config.EnvProd,
		Log: config.Log{Level: "warn", JSON: true},
	}

	logger := NewLogger(cfg)

	require.NotNil(t, logger)
	assert.True(t, logger.Options.JSON)
	assert.Equal(t, slog.LevelWarn, logger.Options.LogLevel)
}
