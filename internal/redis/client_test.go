package redisclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestOptions(t *testing.T) {
	cfg := config.Config{
		RedisAddr:     "cache:6380",
		RedisUsername: "svc",
		RedisPassword: "s3cret",
		RedisPoolSize: 25,
		LockTTL:       5 * time.Second,
	}

	opts := Options(cfg)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "svc", opts.Username)
	assert.Equal(t, "s3cret", opts.Password)
	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	cfg.LockTTL = time.Second
	opts = Options(cfg)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.WriteTimeout)
}
