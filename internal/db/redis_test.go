package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRedisConfig(t *testing.T) {
	config := DefaultRedisConfig()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6379, config.Port)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 5, config.MinIdleConns)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
}

func TestNewRedisClientAppliesDefaults(t *testing.T) {
	client, err := NewRedisClient(RedisConfig{Host: "redis", Port: 6380})
	assert.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 10, client.config.PoolSize)
	assert.Equal(t, 3, client.config.MaxRetries)
	assert.Equal(t, "redis", client.config.Host)
}
