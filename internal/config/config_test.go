package config_test

import (
	"testing"
	"time"

	"github.com/plus3/arworlds/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://w3s.link", cfg.Gateway)
	assert.Equal(t, 60, cfg.FrameRate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Second, cfg.RetryInitial)
	assert.Equal(t, 30*time.Second, cfg.RetryMax)
	assert.Equal(t, config.DeviceSim, cfg.Device)
	assert.Equal(t, ":8089", cfg.DeviceAddr)
	assert.Equal(t, config.SurfaceHeadless, cfg.Surface)
	assert.Equal(t, time.Second/60, cfg.FrameInterval())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ARWORLD_GATEWAY", "http://localhost:8080")
	t.Setenv("ARWORLD_FRAME_RATE", "30")
	t.Setenv("ARWORLD_REDIS_ADDR", "localhost:6379")
	t.Setenv("ARWORLD_CACHE_TTL", "1h")
	t.Setenv("ARWORLD_DEVICE", "ws")
	t.Setenv("ARWORLD_SURFACE", "ebiten")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Gateway)
	assert.Equal(t, 30, cfg.FrameRate)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, config.DeviceWebSocket, cfg.Device)
	assert.Equal(t, config.SurfaceEbiten, cfg.Surface)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"gateway scheme", "ARWORLD_GATEWAY", "ftp://example.com", "gateway"},
		{"frame rate", "ARWORLD_FRAME_RATE", "0", "frame rate"},
		{"unparsable frame rate", "ARWORLD_FRAME_RATE", "fast", "parse"},
		{"log format", "ARWORLD_LOG_FORMAT", "xml", "log format"},
		{"retry", "ARWORLD_RETRY_MAX", "100ms", "retry"},
		{"device", "ARWORLD_DEVICE", "hololens", "device"},
		{"surface", "ARWORLD_SURFACE", "vulkan", "surface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
