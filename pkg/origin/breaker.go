package origin

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	apperr "sweepcache/pkg/error"
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`             // 是否启用熔断器
	MaxRequests uint32        `mapstructure:"max_requests" yaml:"max_requests"`   // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`           // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`             // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip" yaml:"ready_to_trip"` // 触发熔断的连续失败次数
}

// DefaultBreakerConfig 默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:     true,
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: 5,
	}
}

// BreakerLoader 熔断器装饰器。数据不存在视为成功调用，不会触发熔断。
type BreakerLoader struct {
	next Loader
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerLoader 使用熔断器包装一个加载器
func NewBreakerLoader(next Loader, cfg BreakerConfig, logger *logrus.Entry) *BreakerLoader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	threshold := cfg.ReadyToTrip
	if threshold == 0 {
		threshold = DefaultBreakerConfig().ReadyToTrip
	}

	settings := gobreaker.Settings{
		Name:        "origin",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("熔断器状态变更")
		},
	}

	return &BreakerLoader{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Load 通过熔断器执行回源
func (b *BreakerLoader) Load(ctx context.Context, key string) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Load(ctx, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", apperr.WrapError(ErrUnavailable, "origin circuit breaker is open", err).WithContext("key", key)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// State 返回熔断器当前状态
func (b *BreakerLoader) State() gobreaker.State {
	return b.cb.State()
}
