package repository

import (
	"context"
	"testing"
	"time"

	"dogsitter/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ratingValue struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func TestRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisCache(client)
	ctx := context.Background()

	t.Run("SetAndGetJSON", func(t *testing.T) {
		err := repo.SetJSON(ctx, "sitter:rating:1", ratingValue{Average: 4.5, Count: 2}, time.Minute)
		require.NoError(t, err)

		var got ratingValue
		found, err := repo.GetJSON(ctx, "sitter:rating:1", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 4.5, got.Average)
		assert.Equal(t, 2, got.Count)
		assert.True(t, s.Exists("dogsitter:sitter:rating:1"))
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		var got ratingValue
		found, err := repo.GetJSON(ctx, "sitter:rating:999", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.SetJSON(ctx, "short", ratingValue{Count: 1}, time.Second))
		s.FastForward(2 * time.Second)

		var got ratingValue
		found, err := repo.GetJSON(ctx, "short", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.SetJSON(ctx, "a", 1, 0))
		require.NoError(t, repo.SetJSON(ctx, "b", 2, 0))
		require.NoError(t, repo.Delete(ctx, "a", "b"))

		var v int
		found, _ := repo.GetJSON(ctx, "a", &v)
		assert.False(t, found)
		found, _ = repo.GetJSON(ctx, "b", &v)
		assert.False(t, found)
		assert.NoError(t, repo.Delete(ctx))
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:owner@example.com"
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisCacheConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	repo := NewRedisCache(client)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var v int
	_, err := repo.GetJSON(ctx, "k", &v)
	assert.Error(t, err)
	assert.Error(t, repo.SetJSON(ctx, "k", 1, 0))
	_, err = repo.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.Error(t, err)
}
