// Package logger 封装 logrus，为各组件提供统一的日志器。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Entry = logrus.Entry

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	mu     sync.Mutex
)

// Config 日志配置
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// Init 初始化日志器
func Init(config Config) {
	InitWithOutput(config, os.Stdout)
}

// InitWithOutput 使用指定输出初始化日志器
func InitWithOutput(config Config, out io.Writer) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
		})
	}
	l.SetOutput(out)

	mu.Lock()
	Logger = l
	mu.Unlock()
}

// InitFromEnv 从环境变量初始化日志器
func InitFromEnv() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		if os.Getenv("DEBUG") == "1" {
			level = "debug"
		} else {
			level = "info"
		}
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}

	Init(Config{
		Level:  level,
		Format: format,
	})
}

// GetLogger 获取日志器实例
func GetLogger() *logrus.Logger {
	mu.Lock()
	l := Logger
	mu.Unlock()
	if l == nil {
		InitFromEnv()
		mu.Lock()
		l = Logger
		mu.Unlock()
	}
	return l
}

// WithComponent 创建带组件名的日志器
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// ValidLevel 判断日志级别字符串是否可被识别
func ValidLevel(level string) bool {
	_, err := logrus.ParseLevel(strings.ToLower(level))
	return err == nil
}

// cronLogger 把 cron 的结构化日志转发给 logrus
type cronLogger struct {
	entry *logrus.Entry
}

// CronLogger 将 logrus 日志器适配为 cron.Logger。
// cron 的 Info 日志非常频繁（每次唤醒都会输出），因此降级为 Debug。
func CronLogger(entry *logrus.Entry) cron.Logger {
	return cronLogger{entry: entry}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).WithError(err).Error(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
