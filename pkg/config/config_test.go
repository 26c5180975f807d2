package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecu23/match-server/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.Equal(t, 200, cfg.RatingBand)
	assert.Equal(t, "games.db", cfg.ArchivePath)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DISCONNECT_GRACE", "45s")
	t.Setenv("MATCHMAKING_RATING_BAND", "150")
	t.Setenv("API_KEYS", "key1,key2")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.GracePeriod)
	assert.Equal(t, 150, cfg.RatingBand)
	assert.Equal(t, []string{"key1", "key2"}, cfg.APIKeys)
}
