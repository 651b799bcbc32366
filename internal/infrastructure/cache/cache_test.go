package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
)

func TestMemoryModelCache(t *testing.T) {
	c := NewMemoryModelCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "lmstudio")
	require.NoError(t, err)
	assert.False(t, ok)

	models := []string{"qwen2.5-7b-instruct"}
	require.NoError(t, c.Set(ctx, "lmstudio", models, 5*time.Minute))
	models[0] = "mutated"

	got, ok, err := c.Get(ctx, "lmstudio")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"qwen2.5-7b-instruct"}, got)

	require.NoError(t, c.Set(ctx, "openai", []string{"gpt-4o"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "openai"))
	_, ok, _ = c.Get(ctx, "openai")
	assert.False(t, ok)
}

func TestMemoryModelCache_Expiry(t *testing.T) {
	c := NewMemoryModelCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "zai", []string{"glm-4.5"}, 20*time.Millisecond))
	_, ok, err := c.Get(ctx, "zai")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "zai")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisModelCache(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisModelCache(ctx, "redis://"+s.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var _ port.ModelCache = c

	_, ok, err := c.Get(ctx, "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "anthropic", []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"}, 5*time.Minute))
	assert.True(t, s.Exists(redisKeyPrefix+"anthropic"))
	assert.Equal(t, 5*time.Minute, s.TTL(redisKeyPrefix+"anthropic"))

	got, ok, err := c.Get(ctx, "anthropic")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest"}, got)

	s.FastForward(5 * time.Minute)
	_, ok, err = c.Get(ctx, "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(redisKeyPrefix+"zai", "not json"))
	_, ok, err = c.Get(ctx, "zai")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "zai"))
	assert.False(t, s.Exists(redisKeyPrefix+"zai"))
}

func TestNewRedisModelCache_Errors(t *testing.T) {
	_, err := NewRedisModelCache(context.Background(), "not-a-url", zap.NewNop())
	assert.Error(t, err)

	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedisModelCache(ctx, "redis://"+addr, zap.NewNop())
	assert.Error(t, err)
}
