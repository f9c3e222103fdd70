package scheduler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
)

// Maintainable 是维护任务操作的缓存
type Maintainable interface {
	cache.StatsProvider
	Reset()
}

// StatsReporter 把统计信息上报到外部系统
type StatsReporter interface {
	Report(ctx context.Context) error
}

// MaintenanceExecutor 执行 reset、report、log_stats 三类维护动作
type MaintenanceExecutor struct {
	target   Maintainable
	reporter StatsReporter
	logger   *logrus.Entry
}

// NewMaintenanceExecutor 创建维护任务执行器，reporter 可以为 nil。
func NewMaintenanceExecutor(target Maintainable, reporter StatsReporter, logger *logrus.Entry) *MaintenanceExecutor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MaintenanceExecutor{
		target:   target,
		reporter: reporter,
		logger:   logger,
	}
}

// Execute 实现 JobExecutor 接口
func (e *MaintenanceExecutor) Execute(ctx context.Context, job *Job) error {
	log := e.logger.WithFields(logrus.Fields{
		"job":    job.Config.Name,
		"job_id": job.ID,
	})

	switch job.Config.Action {
	case ActionReset:
		// min_size: 只有总大小达到该值时才清空
		if minSize, ok := int64Param(job.Config.Params, "min_size"); ok {
			if size := e.target.Stats().Size; size < minSize {
				log.WithField("size", size).Debug("缓存未达到清空阈值，跳过")
				return nil
			}
		}
		e.target.Reset()
		log.Info("缓存已清空")
		return nil

	case ActionReport:
		if e.reporter == nil {
			return apperr.NewError(ErrJobInvalid, "统计上报未启用").WithContext("job", job.Config.Name)
		}
		return e.reporter.Report(ctx)

	case ActionLogStats:
		stats := e.target.Stats()
		log.WithFields(logrus.Fields{
			"len":      stats.Len,
			"size":     stats.Size,
			"hit_rate": fmt.Sprintf("%.4f", stats.HitRate),
			"expired":  stats.ExpiredCount,
			"evicted":  stats.EvictedCount,
			"sweeps":   stats.SweepCount,
			"buckets":  stats.Buckets,
		}).Info("缓存统计")
		return nil
	}

	return apperr.NewError(ErrJobInvalid, fmt.Sprintf("未知的任务动作 '%s'", job.Config.Action))
}

// int64Param 读取数值参数，兼容 YAML/JSON 解码出的各种数值类型
func int64Param(params map[string]interface{}, key string) (int64, bool) {
	switch v := params[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
