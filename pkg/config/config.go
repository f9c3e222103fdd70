// Package config 加载 sweepcache 服务配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
	"sweepcache/pkg/logger"
	"sweepcache/pkg/origin"
	"sweepcache/pkg/reporter"
	"sweepcache/pkg/scheduler"
	"sweepcache/pkg/sizer"
)

// 环境变量前缀，例如 SWEEPCACHE_CACHE_MAX_SIZE
const envPrefix = "SWEEPCACHE"

// Config 主配置结构
type Config struct {
	Cache    CacheConfig           `mapstructure:"cache" yaml:"cache"`
	Server   ServerConfig          `mapstructure:"server" yaml:"server"`
	Logger   logger.Config         `mapstructure:"logger" yaml:"logger"`
	Origin   origin.Config         `mapstructure:"origin" yaml:"origin"`
	Reporter reporter.Config       `mapstructure:"reporter" yaml:"reporter"`
	Jobs     []scheduler.JobConfig `mapstructure:"jobs" yaml:"jobs"`
}

// CacheConfig 缓存配置。数值项小于等于 0 时视为未设置。
type CacheConfig struct {
	Sizer         string        `mapstructure:"sizer" yaml:"sizer"`                   // 大小函数名称
	MaxSize       int64         `mapstructure:"max_size" yaml:"max_size"`             // 容量上限
	MaxAge        time.Duration `mapstructure:"max_age" yaml:"max_age"`               // 最大存活时间
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"` // 清扫间隔
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Sizer:         "unit",
			SweepInterval: cache.DefaultSweepInterval,
		},
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Logger: logger.Config{
			Level:  "info",
			Format: "text",
		},
		Origin:   origin.DefaultConfig(),
		Reporter: reporter.DefaultConfig(),
		Jobs: []scheduler.JobConfig{
			{
				Name:     "log-stats",
				Enabled:  true,
				Schedule: "@every 1m",
				Action:   scheduler.ActionLogStats,
			},
		},
	}
}

// Load 加载配置。path 为空时在 ./config 和当前目录查找 sweepcache.yaml，
// 找不到配置文件时使用默认值。环境变量优先级高于配置文件。
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sweepcache")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperr.WrapError(cache.ErrConfigInvalid, "failed to read config file", err)
		}
	}

	cfg := Default()
	if v.IsSet("jobs") {
		// 配置文件中的任务列表整体替换默认任务
		cfg.Jobs = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperr.WrapError(cache.ErrConfigInvalid, "failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache.sizer", d.Cache.Sizer)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)
	v.SetDefault("cache.sweep_interval", d.Cache.SweepInterval)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)

	v.SetDefault("origin.enabled", d.Origin.Enabled)
	v.SetDefault("origin.addr", d.Origin.Addr)
	v.SetDefault("origin.password", d.Origin.Password)
	v.SetDefault("origin.db", d.Origin.DB)
	v.SetDefault("origin.key_prefix", d.Origin.KeyPrefix)
	v.SetDefault("origin.timeout", d.Origin.Timeout)
	v.SetDefault("origin.retries", d.Origin.Retries)
	v.SetDefault("origin.retry_backoff", d.Origin.RetryBackoff)
	v.SetDefault("origin.breaker.enabled", d.Origin.Breaker.Enabled)
	v.SetDefault("origin.breaker.max_requests", d.Origin.Breaker.MaxRequests)
	v.SetDefault("origin.breaker.interval", d.Origin.Breaker.Interval)
	v.SetDefault("origin.breaker.timeout", d.Origin.Breaker.Timeout)
	v.SetDefault("origin.breaker.ready_to_trip", d.Origin.Breaker.ReadyToTrip)

	v.SetDefault("reporter.enabled", d.Reporter.Enabled)
	v.SetDefault("reporter.url", d.Reporter.URL)
	v.SetDefault("reporter.token", d.Reporter.Token)
	v.SetDefault("reporter.org", d.Reporter.Org)
	v.SetDefault("reporter.bucket", d.Reporter.Bucket)
	v.SetDefault("reporter.measurement", d.Reporter.Measurement)
}

// Validate 验证配置。缓存数值项遵循缓存自身的规则（无效值被忽略），不在此校验。
func (c *Config) Validate() error {
	if _, err := sizer.Lookup(c.Cache.Sizer); err != nil {
		return invalid("cache.sizer", c.Cache.Sizer, err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port", c.Server.Port, nil)
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode", c.Server.Mode, nil)
	}

	if !logger.ValidLevel(c.Logger.Level) {
		return invalid("logger.level", c.Logger.Level, nil)
	}

	if c.Logger.Format != "text" && c.Logger.Format != "json" {
		return invalid("logger.format", c.Logger.Format, nil)
	}

	if c.Origin.Enabled {
		if c.Origin.Addr == "" {
			return invalid("origin.addr", c.Origin.Addr, nil)
		}
		if c.Origin.Retries < 0 {
			return invalid("origin.retries", c.Origin.Retries, nil)
		}
	}

	if c.Reporter.Enabled {
		if c.Reporter.URL == "" {
			return invalid("reporter.url", c.Reporter.URL, nil)
		}
		if c.Reporter.Org == "" {
			return invalid("reporter.org", c.Reporter.Org, nil)
		}
		if c.Reporter.Bucket == "" {
			return invalid("reporter.bucket", c.Reporter.Bucket, nil)
		}
	}

	names := make(map[string]struct{}, len(c.Jobs))
	for i, job := range c.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if err := scheduler.ValidateJobConfig(job); err != nil {
			return invalid(field, job.Name, err)
		}
		if _, dup := names[job.Name]; dup {
			return invalid(field, job.Name, errors.New("duplicate job name"))
		}
		names[job.Name] = struct{}{}
		if job.Enabled && job.Action == scheduler.ActionReport && !c.Reporter.Enabled {
			return invalid(field, job.Name, errors.New("report job requires reporter.enabled"))
		}
	}

	return nil
}

// CacheOptions 把缓存配置转换为 cache.Options
func (c *Config) CacheOptions() (cache.Options[string], error) {
	fn, err := sizer.Lookup(c.Cache.Sizer)
	if err != nil {
		return cache.Options[string]{}, err
	}
	return cache.Options[string]{
		SizeFn:        fn,
		MaxSize:       c.Cache.MaxSize,
		MaxAge:        c.Cache.MaxAge,
		SweepInterval: c.Cache.SweepInterval,
	}, nil
}

// Save 以 YAML 格式写出配置
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return apperr.WrapError(cache.ErrConfigInvalid, "failed to marshal config", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(field string, value interface{}, cause error) error {
	msg := fmt.Sprintf("invalid value for %s", field)
	var err *apperr.BaseError
	if cause != nil {
		err = apperr.WrapError(cache.ErrConfigInvalid, msg, cause)
	} else {
		err = apperr.NewError(cache.ErrConfigInvalid, msg)
	}
	return err.WithContext("field", field).WithContext("value", value)
}
