// Package origin 提供缓存未命中时的回源加载器。
package origin

import (
	"context"
	"time"

	apperr "sweepcache/pkg/error"
)

const (
	// ErrNotFound 回源数据不存在
	ErrNotFound apperr.ErrorCode = "ORIGIN_NOT_FOUND"
	// ErrUnavailable 回源服务不可用（连接失败、超时或熔断）
	ErrUnavailable apperr.ErrorCode = "ORIGIN_UNAVAILABLE"
)

// Loader 按键从数据源加载值
type Loader interface {
	Load(ctx context.Context, key string) (string, error)
}

// LoaderFunc 把普通函数适配为 Loader
type LoaderFunc func(ctx context.Context, key string) (string, error)

// Load 实现 Loader 接口
func (f LoaderFunc) Load(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// Config 回源配置
type Config struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries      int           `mapstructure:"retries" yaml:"retries"`             // 网络错误的重试次数
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"` // 重试间隔基数，按次数递增
	Breaker      BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// DefaultConfig 返回默认回源配置（默认关闭）
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Addr:         "localhost:6379",
		KeyPrefix:    "sweepcache:",
		Timeout:      2 * time.Second,
		Retries:      2,
		RetryBackoff: 100 * time.Millisecond,
		Breaker:      DefaultBreakerConfig(),
	}
}

// IsNotFound 判断错误是否表示数据不存在
func IsNotFound(err error) bool {
	return apperr.CodeOf(err) == ErrNotFound
}

func notFound(key string) error {
	return apperr.NewError(ErrNotFound, "key not found in origin").WithContext("key", key)
}
