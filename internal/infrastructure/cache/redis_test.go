package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftlens/backend/internal/domain"
)

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestRedisCache_Prefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	assert.Equal(t, defaultRedisPrefix, newRedisCache(client, "").prefix)
	assert.Equal(t, "custom:", newRedisCache(client, "custom:").prefix)
}

func TestRedisCache_ErrorsWrapUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisCache(client, "")
	defer c.Close()

	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}
