package origin

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	apperr "sweepcache/pkg/error"
)

// RedisLoader 从 Redis 字符串键回源
type RedisLoader struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *logrus.Entry
}

// NewRedisLoader 创建 Redis 回源加载器，不会主动建立连接。
func NewRedisLoader(cfg Config, logger *logrus.Entry) *RedisLoader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisLoader{
		client:  client,
		prefix:  cfg.KeyPrefix,
		timeout: timeout,
		logger:  logger.WithField("origin", "redis"),
	}
}

// Load 读取 prefix+key 对应的值
func (l *RedisLoader) Load(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	val, err := l.client.Get(ctx, l.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", notFound(key)
	}
	if err != nil {
		l.logger.WithError(err).WithField("key", key).Debug("回源读取失败")
		return "", apperr.WrapError(ErrUnavailable, "redis get failed", err).WithContext("key", key)
	}
	return val, nil
}

// Ping 检查 Redis 连接
func (l *RedisLoader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.client.Ping(ctx).Err(); err != nil {
		return apperr.WrapError(ErrUnavailable, "failed to connect to redis", err)
	}
	return nil
}

// Close 关闭连接池
func (l *RedisLoader) Close() error {
	return l.client.Close()
}
