package origin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "sweepcache/pkg/error"
)

// stubLoader 按键返回预设结果，并记录调用次数
type stubLoader struct {
	values map[string]string
	err    error
	calls  int
}

func (s *stubLoader) Load(_ context.Context, key string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[key]
	if !ok {
		return "", notFound(key)
	}
	return v, nil
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:     true,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: 3,
	}
}

func TestBreakerLoader_PassesThrough(t *testing.T) {
	stub := &stubLoader{values: map[string]string{"sh600000": "浦发银行"}}
	b := NewBreakerLoader(stub, testBreakerConfig(), nil)

	v, err := b.Load(context.Background(), "sh600000")
	require.NoError(t, err)
	assert.Equal(t, "浦发银行", v)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerLoader_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubLoader{values: map[string]string{}}
	b := NewBreakerLoader(stub, testBreakerConfig(), nil)

	for i := 0; i < 10; i++ {
		_, err := b.Load(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 10, stub.calls)
}

func TestBreakerLoader_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubLoader{err: apperr.WrapError(ErrUnavailable, "redis get failed", errors.New("connection refused"))}
	b := NewBreakerLoader(stub, testBreakerConfig(), nil)

	for i := 0; i < 3; i++ {
		_, err := b.Load(context.Background(), "k")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Load(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, ErrUnavailable, apperr.CodeOf(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	// 熔断期间不再调用下游
	assert.Equal(t, 3, stub.calls)
}

func TestBreakerLoader_DefaultThreshold(t *testing.T) {
	stub := &stubLoader{err: errors.New("boom")}
	cfg := testBreakerConfig()
	cfg.ReadyToTrip = 0
	b := NewBreakerLoader(stub, cfg, nil)

	for i := 0; i < 4; i++ {
		_, _ = b.Load(context.Background(), "k")
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	_, _ = b.Load(context.Background(), "k")
	assert.Equal(t, gobreaker.StateOpen, b.State())
}
