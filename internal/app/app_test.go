package app_test

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/app"
	"ratefeed/internal/broadcast"
	"ratefeed/internal/config"
	"ratefeed/internal/logging"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Google.CacheBackend = "memory"
	cfg.Broadcast.IntervalMinutes = 15
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg := testConfig(t)
	log := logging.New(io.Discard, logging.Options{Level: "error"})

	// Act
	a, err := app.Build(t.Context(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	// Assert
	for _, src := range provider.Sources() {
		p, err := a.Providers.Get(src)
		require.NoError(t, err, src.String())
		require.Equal(t, src, p.Source())
	}
	d, ok := a.Scheduler.Interval(broadcast.PriceBroadcast)
	require.True(t, ok)
	require.Equal(t, 15*time.Minute, d)

	tpl, err := a.Templates.Get(broadcast.PriceBroadcast)
	require.NoError(t, err)
	require.NotEmpty(t, tpl.Content)
	require.FileExists(t, filepath.Join(cfg.DataDir, "message_template.json"))
	require.FileExists(t, filepath.Join(cfg.DataDir, "g-power.json"))
}

func TestBuild_RedisAndDatabase(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Google.CacheBackend = "redis"
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"
	cfg.Power.Backend = "db"
	cfg.Power.DatabaseURL = "sqlite://" + filepath.Join(cfg.DataDir, "power.db")
	require.NoError(t, cfg.Validate())

	a, err := app.Build(t.Context(), cfg, logging.New(io.Discard, logging.Options{}))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	_, err = a.Powers.Create(t.Context(), power.Config{Group: "vip", Power: power.DefaultPower})
	require.NoError(t, err)
	c, err := a.Powers.GetByGroup(t.Context(), "vip")
	require.NoError(t, err)
	require.Len(t, c.ID, 6)
}

func TestBuild_BadRedisURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Google.CacheBackend = "redis"
	cfg.Redis.URL = "http://not-redis"

	_, err := app.Build(t.Context(), cfg, logging.New(io.Discard, logging.Options{}))
	require.Error(t, err)
}
