package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, StoreMySQL, c.Store)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, "@every 15m", c.AuditSchedule)
	assert.True(t, c.IsDev())

	db := c.Database()
	assert.Equal(t, "scheduling", db.Name)
	assert.Equal(t, 5, db.LockWaitTimeoutSec)

	retry := c.Retry()
	assert.Equal(t, 3, retry.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, retry.BaseDelay)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "placeholder")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadStoreSelection(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("APP_STORE", " Memory ")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, c.Store)

	t.Setenv("APP_STORE", "postgres")
	_, err = Load()
	assert.Error(t, err)
}

func TestRetryPolicyNormalized(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	t.Setenv("RETRY_BASE_DELAY", "-1s")

	c, err := Load()
	require.NoError(t, err)
	retry := c.Retry()
	assert.GreaterOrEqual(t, retry.MaxAttempts, 1)
	assert.Greater(t, retry.BaseDelay, time.Duration(0))
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := LoadRateLimitConfig()
		assert.True(t, c.Enabled)
		assert.Equal(t, 30, c.Capacity)
		assert.Equal(t, 2*time.Second, c.RefillInterval)
		assert.Equal(t, "user_route", c.KeyStrategy)
	})
	t.Run("burst and refill_every override", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_BURST", "5")
		t.Setenv("RATE_LIMIT_REFILL_EVERY", "1m")
		t.Setenv("RATE_LIMIT_REFILL_TOKENS", "4")
		t.Setenv("RATE_LIMIT_TTL", "1s")
		c := LoadRateLimitConfig()
		assert.Equal(t, 5, c.Capacity)
		assert.Equal(t, 1, c.RefillTokens)
		assert.Equal(t, time.Minute, c.RefillInterval)
		assert.Equal(t, 5*time.Minute, c.TTL)
	})
	t.Run("clamped", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_CAPACITY", "0")
		t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0s")
		c := LoadRateLimitConfig()
		assert.Equal(t, 1, c.Capacity)
		assert.Equal(t, time.Second, c.RefillInterval)
	})
	t.Run("malformed falls back", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_CAPACITY", "lots")
		c := LoadRateLimitConfig()
		assert.Equal(t, 30, c.Capacity)
	})
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,")
	t.Setenv("CACHE_TTL", "0s")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, time.Second, c.TTL)
	assert.Equal(t, "route_query", c.KeyStrategy)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
	assert.Equal(t, "x:1", RedisConfig{Host: "cache", Addr: "x:1"}.Address())
	assert.Equal(t, "localhost:6379", RedisConfig{}.Address())
}
