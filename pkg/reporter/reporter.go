// Package reporter 把缓存统计信息写入 InfluxDB。
package reporter

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
)

// ErrReportFailed 写入统计点失败
const ErrReportFailed apperr.ErrorCode = "REPORT_FAILED"

// Config InfluxDB 上报配置
type Config struct {
	Enabled     bool              `mapstructure:"enabled" yaml:"enabled"`
	URL         string            `mapstructure:"url" yaml:"url"`
	Token       string            `mapstructure:"token" yaml:"token"`
	Org         string            `mapstructure:"org" yaml:"org"`
	Bucket      string            `mapstructure:"bucket" yaml:"bucket"`
	Measurement string            `mapstructure:"measurement" yaml:"measurement"`
	Tags        map[string]string `mapstructure:"tags" yaml:"tags,omitempty"`
}

// DefaultConfig 返回默认上报配置（默认关闭）
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		URL:         "http://localhost:8086",
		Org:         "sweepcache",
		Bucket:      "cache_stats",
		Measurement: "cache_stats",
	}
}

// StatsPoint 把一次统计快照转换为 InfluxDB 数据点
func StatsPoint(measurement string, tags map[string]string, stats cache.Stats, ts time.Time) *write.Point {
	point := influxdb2.NewPointWithMeasurement(measurement).
		AddField("len", stats.Len).
		AddField("size", stats.Size).
		AddField("max_size", stats.MaxSize).
		AddField("max_age_ms", stats.MaxAge.Milliseconds()).
		AddField("sweep_interval_ms", stats.SweepInterval.Milliseconds()).
		AddField("hits", stats.HitCount).
		AddField("misses", stats.MissCount).
		AddField("hit_rate", stats.HitRate).
		AddField("sets", stats.SetCount).
		AddField("deletes", stats.DeleteCount).
		AddField("expired", stats.ExpiredCount).
		AddField("evicted", stats.EvictedCount).
		AddField("sweeps", stats.SweepCount).
		AddField("buckets", int64(stats.Buckets)).
		AddField("references", int64(stats.References)).
		SetTime(ts)
	for k, v := range tags {
		point.AddTag(k, v)
	}
	return point
}

// pointWriter 是 api.WriteAPIBlocking 中 Reporter 用到的部分
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Reporter 定期把缓存统计写入 InfluxDB
type Reporter struct {
	client      influxdb2.Client
	writer      pointWriter
	source      cache.StatsProvider
	measurement string
	tags        map[string]string
	logger      *logrus.Entry
}

// New 创建上报器并检查 InfluxDB 健康状态
func New(ctx context.Context, cfg Config, source cache.StatsProvider, logger *logrus.Entry) (*Reporter, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, apperr.WrapError(ErrReportFailed, "failed to connect to influxdb", err).WithContext("url", cfg.URL)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, apperr.NewError(ErrReportFailed, "influxdb health check failed").WithContext("status", string(health.Status))
	}

	r := newReporter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg, source, logger)
	r.client = client
	return r, nil
}

func newReporter(w pointWriter, cfg Config, source cache.StatsProvider, logger *logrus.Entry) *Reporter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = DefaultConfig().Measurement
	}
	return &Reporter{
		writer:      w,
		source:      source,
		measurement: measurement,
		tags:        cfg.Tags,
		logger:      logger,
	}
}

// Report 采集一次统计快照并写入
func (r *Reporter) Report(ctx context.Context) error {
	stats := r.source.Stats()
	point := StatsPoint(r.measurement, r.tags, stats, time.Now())

	if err := r.writer.WritePoint(ctx, point); err != nil {
		return apperr.WrapError(ErrReportFailed, "failed to write stats point", err)
	}

	r.logger.WithFields(logrus.Fields{
		"len":  stats.Len,
		"size": stats.Size,
	}).Debug("统计信息已上报")
	return nil
}

// Close 关闭 InfluxDB 客户端
func (r *Reporter) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
