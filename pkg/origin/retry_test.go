package origin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "sweepcache/pkg/error"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorLevel
	}{
		{"连接拒绝", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), LevelFatal},
		{"主机未找到", errors.New("dial tcp: lookup redis: no such host"), LevelFatal},
		{"认证失败", errors.New("WRONGPASS invalid username-password pair"), LevelFatal},
		{"取消", context.Canceled, LevelFatal},

		{"超时", errors.New("read tcp 10.0.0.1:52000->10.0.0.2:6379: i/o timeout"), LevelNetwork},
		{"截止时间", context.DeadlineExceeded, LevelNetwork},
		{"连接重置", errors.New("read tcp: connection reset by peer"), LevelNetwork},
		{"管道断开", errors.New("write tcp: broken pipe"), LevelNetwork},
		{"包装后的超时", apperr.WrapError(ErrUnavailable, "redis get failed", errors.New("i/o timeout")), LevelNetwork},

		{"不存在", notFound("k"), LevelInvalid},
		{"类型错误", errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"), LevelInvalid},

		{"nil错误", nil, LevelUnknown},
		{"其他错误", errors.New("some other error"), LevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err), "错误分类应匹配预期: %s", tt.name)
		})
	}
}

// flakyLoader 前 failures 次返回 err，之后成功
type flakyLoader struct {
	failures int
	err      error
	calls    int
}

func (f *flakyLoader) Load(context.Context, string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func TestRetryLoader(t *testing.T) {
	t.Run("网络错误重试后成功", func(t *testing.T) {
		f := &flakyLoader{failures: 2, err: errors.New("i/o timeout")}
		r := NewRetryLoader(f, 2, time.Millisecond, nil)

		v, err := r.Load(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, f.calls)
	})

	t.Run("超过重试次数", func(t *testing.T) {
		f := &flakyLoader{failures: 5, err: errors.New("i/o timeout")}
		r := NewRetryLoader(f, 2, time.Millisecond, nil)

		_, err := r.Load(context.Background(), "k")
		require.Error(t, err)
		assert.Equal(t, 3, f.calls)
	})

	t.Run("致命错误不重试", func(t *testing.T) {
		f := &flakyLoader{failures: 5, err: errors.New("connection refused")}
		r := NewRetryLoader(f, 3, time.Millisecond, nil)

		_, err := r.Load(context.Background(), "k")
		require.Error(t, err)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("不存在不重试", func(t *testing.T) {
		f := &flakyLoader{failures: 5, err: notFound("k")}
		r := NewRetryLoader(f, 3, time.Millisecond, nil)

		_, err := r.Load(context.Background(), "k")
		assert.True(t, IsNotFound(err))
		assert.Equal(t, 1, f.calls)
	})

	t.Run("上下文取消时停止等待", func(t *testing.T) {
		f := &flakyLoader{failures: 5, err: errors.New("i/o timeout")}
		r := NewRetryLoader(f, 3, time.Hour, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Load(ctx, "k")
		require.Error(t, err)
		assert.Equal(t, 1, f.calls)
	})
}
