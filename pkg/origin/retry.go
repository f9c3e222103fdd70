package origin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorLevel 回源错误的严重级别
type ErrorLevel int

const (
	LevelFatal   ErrorLevel = iota // 连接被拒绝、主机不存在等，重试无意义
	LevelNetwork                   // 超时、连接中断，可以重试
	LevelInvalid                   // 数据不存在或请求无效，不重试
	LevelUnknown
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelFatal:
		return "fatal"
	case LevelNetwork:
		return "network"
	case LevelInvalid:
		return "invalid"
	}
	return "unknown"
}

// Classify 根据错误内容判断错误级别
func Classify(err error) ErrorLevel {
	if err == nil {
		return LevelUnknown
	}
	if IsNotFound(err) {
		return LevelInvalid
	}
	if errors.Is(err, context.Canceled) {
		return LevelFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LevelNetwork
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection refused"):
		return LevelFatal
	case strings.Contains(msg, "no such host"):
		return LevelFatal
	case strings.Contains(msg, "noauth"), strings.Contains(msg, "wrongpass"):
		return LevelFatal
	}

	switch {
	case strings.Contains(msg, "timeout"):
		return LevelNetwork
	case strings.Contains(msg, "network is unreachable"):
		return LevelNetwork
	case strings.Contains(msg, "temporary failure"):
		return LevelNetwork
	case strings.Contains(msg, "connection reset"):
		return LevelNetwork
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "eof"):
		return LevelNetwork
	}

	switch {
	case strings.Contains(msg, "wrongtype"):
		return LevelInvalid
	case strings.Contains(msg, "invalid argument"):
		return LevelInvalid
	}

	return LevelUnknown
}

// RetryLoader 对网络级错误按递增间隔重试
type RetryLoader struct {
	next    Loader
	retries int
	backoff time.Duration
	logger  *logrus.Entry
}

// NewRetryLoader 创建重试装饰器。retries 为 0 时不重试。
func NewRetryLoader(next Loader, retries int, backoff time.Duration, logger *logrus.Entry) *RetryLoader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if retries < 0 {
		retries = 0
	}
	return &RetryLoader{
		next:    next,
		retries: retries,
		backoff: backoff,
		logger:  logger,
	}
}

// Load 实现 Loader 接口
func (r *RetryLoader) Load(ctx context.Context, key string) (string, error) {
	for attempt := 0; ; attempt++ {
		val, err := r.next.Load(ctx, key)
		if err == nil {
			return val, nil
		}

		level := Classify(err)
		if level != LevelNetwork || attempt >= r.retries {
			return "", err
		}

		wait := r.backoff * time.Duration(attempt+1)
		r.logger.WithError(err).WithFields(logrus.Fields{
			"key":     key,
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Debug("回源网络错误，等待重试")

		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(wait):
		}
	}
}
