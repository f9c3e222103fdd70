package origin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "sweepcache/pkg/error"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, "sweepcache:", cfg.KeyPrefix)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.Breaker.Enabled)
}

func TestRedisLoader_Unreachable(t *testing.T) {
	// 端口 1 上没有 Redis 服务
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.Timeout = 500 * time.Millisecond
	l := NewRedisLoader(cfg, nil)
	defer l.Close()

	_, err := l.Load(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, ErrUnavailable, apperr.CodeOf(err))
	assert.False(t, IsNotFound(err))

	err = l.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrUnavailable, apperr.CodeOf(err))
}

func TestLoaderFunc(t *testing.T) {
	var l Loader = LoaderFunc(func(_ context.Context, key string) (string, error) {
		return "v:" + key, nil
	})
	v, err := l.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "v:a", v)
}
