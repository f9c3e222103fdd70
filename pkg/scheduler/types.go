package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	apperr "sweepcache/pkg/error"
)

// 维护任务支持的动作
const (
	ActionReset    = "reset"     // 清空缓存
	ActionReport   = "report"    // 上报统计信息
	ActionLogStats = "log_stats" // 把统计信息写入日志
)

// 调度器错误代码
const (
	ErrJobNotFound     apperr.ErrorCode = "JOB_NOT_FOUND"
	ErrJobExists       apperr.ErrorCode = "JOB_EXISTS"
	ErrJobDisabled     apperr.ErrorCode = "JOB_DISABLED"
	ErrJobInvalid      apperr.ErrorCode = "JOB_INVALID"
	ErrExecutorMissing apperr.ErrorCode = "EXECUTOR_MISSING"
)

// JobConfig 定义单个任务的配置
type JobConfig struct {
	Name     string                 `mapstructure:"name" yaml:"name" json:"name"`
	Enabled  bool                   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Schedule string                 `mapstructure:"schedule" yaml:"schedule" json:"schedule"`
	Action   string                 `mapstructure:"action" yaml:"action" json:"action"`
	Params   map[string]interface{} `mapstructure:"params" yaml:"params,omitempty" json:"params,omitempty"`
}

// JobsConfig 定义整个任务配置文件结构
type JobsConfig struct {
	Jobs []JobConfig `mapstructure:"jobs" yaml:"jobs" json:"jobs"`
}

// Job 表示一个运行中的任务
type Job struct {
	ID         string       `json:"id"`
	Config     JobConfig    `json:"config"`
	EntryID    cron.EntryID `json:"-"`
	Status     JobStatus    `json:"status"`
	LastRun    *time.Time   `json:"last_run,omitempty"`
	NextRun    *time.Time   `json:"next_run,omitempty"`
	RunCount   int64        `json:"run_count"`
	ErrorCount int64        `json:"error_count"`
	LastError  error        `json:"-"`
}

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusError    JobStatus = "error"
	JobStatusDisabled JobStatus = "disabled"
)

// JobExecutor 任务执行器接口
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobScheduler 任务调度器接口
type JobScheduler interface {
	// 加载配置
	LoadConfig(configPath string) error

	// 启动调度器
	Start() error

	// 停止调度器
	Stop() error

	// 添加任务
	AddJob(config JobConfig) error

	// 移除任务
	RemoveJob(jobName string) error

	// 获取任务状态
	GetJob(jobName string) (*Job, error)

	// 获取所有任务
	GetAllJobs() []*Job

	// 手动执行任务
	RunJob(jobName string) error

	// 设置任务执行器
	SetExecutor(executor JobExecutor)
}
