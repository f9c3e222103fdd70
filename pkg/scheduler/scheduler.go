// Package scheduler 按 cron 表达式周期执行缓存维护任务。
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	apperr "sweepcache/pkg/error"
	"sweepcache/pkg/logger"
)

// jobTimeout 单次任务执行的超时时间
const jobTimeout = 5 * time.Minute

var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// DefaultJobScheduler 默认任务调度器实现
type DefaultJobScheduler struct {
	cron     *cron.Cron
	jobs     map[string]*Job
	executor JobExecutor
	mu       sync.RWMutex
	logger   *logrus.Entry
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewJobScheduler 创建新的任务调度器
func NewJobScheduler() *DefaultJobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.WithComponent("scheduler")

	return &DefaultJobScheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(logger.CronLogger(log))),
		jobs:   make(map[string]*Job),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// LoadConfig 从配置文件加载任务配置
func (s *DefaultJobScheduler) LoadConfig(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return apperr.WrapError(ErrJobInvalid, fmt.Sprintf("配置文件不存在: %s", configPath), err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return apperr.WrapError(ErrJobInvalid, "读取配置文件失败", err)
	}

	var config JobsConfig
	if err := v.Unmarshal(&config); err != nil {
		return apperr.WrapError(ErrJobInvalid, "解析配置文件失败", err)
	}

	s.AddJobs(config.Jobs)
	return nil
}

// AddJobs 批量添加任务，无效或重复的任务会被跳过并记录日志。
func (s *DefaultJobScheduler) AddJobs(configs []JobConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, jobConfig := range configs {
		if err := ValidateJobConfig(jobConfig); err != nil {
			s.logger.WithError(err).Warnf("跳过无效任务配置: %s", jobConfig.Name)
			continue
		}

		if err := s.addJobInternal(jobConfig); err != nil {
			s.logger.WithError(err).Errorf("添加任务失败: %s", jobConfig.Name)
			continue
		}
	}

	s.logger.Infof("成功加载 %d 个任务配置", len(s.jobs))
}

// Start 启动调度器
func (s *DefaultJobScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executor == nil {
		return apperr.NewError(ErrExecutorMissing, "任务执行器未设置")
	}

	s.cron.Start()
	s.logger.Info("任务调度器已启动")

	s.updateNextRunTimes()

	return nil
}

// Stop 停止调度器，并等待正在执行的任务结束
func (s *DefaultJobScheduler) Stop() error {
	s.cancel()
	// 不能持有锁等待，正在执行的任务结束时需要更新状态
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("任务调度器已停止")
	case <-time.After(30 * time.Second):
		s.logger.Warn("任务调度器停止超时")
	}

	return nil
}

// AddJob 添加任务
func (s *DefaultJobScheduler) AddJob(config JobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateJobConfig(config); err != nil {
		return err
	}

	return s.addJobInternal(config)
}

// RemoveJob 移除任务
func (s *DefaultJobScheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobName]
	if !exists {
		return jobNotFound(jobName)
	}

	s.cron.Remove(job.EntryID)
	delete(s.jobs, jobName)

	s.logger.Infof("任务已移除: %s", jobName)
	return nil
}

// GetJob 获取任务状态
func (s *DefaultJobScheduler) GetJob(jobName string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobName]
	if !exists {
		return nil, jobNotFound(jobName)
	}

	// 创建副本避免并发修改
	jobCopy := *job
	return &jobCopy, nil
}

// GetAllJobs 获取所有任务，按名称排序
func (s *DefaultJobScheduler) GetAllJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Config.Name < jobs[j].Config.Name })

	return jobs
}

// RunJob 手动执行任务
func (s *DefaultJobScheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	hasExecutor := s.executor != nil
	s.mu.RUnlock()

	if !exists {
		return jobNotFound(jobName)
	}

	if !job.Config.Enabled {
		return apperr.NewError(ErrJobDisabled, fmt.Sprintf("任务已禁用: %s", jobName))
	}

	if !hasExecutor {
		return apperr.NewError(ErrExecutorMissing, "任务执行器未设置")
	}

	go s.executeJob(job)
	return nil
}

// SetExecutor 设置任务执行器
func (s *DefaultJobScheduler) SetExecutor(executor JobExecutor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor = executor
}

// ValidateJobConfig 验证任务配置
func ValidateJobConfig(config JobConfig) error {
	if config.Name == "" {
		return apperr.NewError(ErrJobInvalid, "任务名称不能为空")
	}

	if config.Schedule == "" {
		return apperr.NewError(ErrJobInvalid, "任务调度表达式不能为空").WithContext("job", config.Name)
	}

	// 支持秒级调度
	if _, err := scheduleParser.Parse(config.Schedule); err != nil {
		return apperr.WrapError(ErrJobInvalid, fmt.Sprintf("无效的调度表达式 '%s'", config.Schedule), err).
			WithContext("job", config.Name)
	}

	switch config.Action {
	case ActionReset, ActionReport, ActionLogStats:
	default:
		return apperr.NewError(ErrJobInvalid, fmt.Sprintf("未知的任务动作 '%s'", config.Action)).
			WithContext("job", config.Name)
	}

	return nil
}

// addJobInternal 内部添加任务方法（需要持有锁）
func (s *DefaultJobScheduler) addJobInternal(config JobConfig) error {
	if _, exists := s.jobs[config.Name]; exists {
		return apperr.NewError(ErrJobExists, fmt.Sprintf("任务已存在: %s", config.Name))
	}

	job := &Job{
		ID:     uuid.New().String(),
		Config: config,
		Status: JobStatusPending,
	}

	if !config.Enabled {
		job.Status = JobStatusDisabled
		s.jobs[config.Name] = job
		s.logger.Infof("任务已添加（已禁用）: %s", config.Name)
		return nil
	}

	entryID, err := s.cron.AddFunc(config.Schedule, func() {
		s.executeJob(job)
	})
	if err != nil {
		return apperr.WrapError(ErrJobInvalid, "添加任务到调度器失败", err)
	}

	job.EntryID = entryID
	s.jobs[config.Name] = job

	s.logger.Infof("任务已添加: %s (调度: %s, 动作: %s)", config.Name, config.Schedule, config.Action)
	return nil
}

// executeJob 执行任务，同一任务不会并发执行
func (s *DefaultJobScheduler) executeJob(job *Job) {
	s.mu.Lock()
	if job.Status == JobStatusRunning {
		s.mu.Unlock()
		s.logger.Warnf("任务正在运行，跳过本次执行: %s", job.Config.Name)
		return
	}
	job.Status = JobStatusRunning
	now := time.Now()
	job.LastRun = &now
	job.RunCount++
	executor := s.executor
	s.mu.Unlock()

	s.logger.Debugf("开始执行任务: %s", job.Config.Name)

	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	err := executor.Execute(ctx, job)

	s.mu.Lock()
	if err != nil {
		job.Status = JobStatusError
		job.LastError = err
		job.ErrorCount++
		s.logger.WithError(err).Errorf("任务执行失败: %s", job.Config.Name)
	} else {
		job.Status = JobStatusPending
		job.LastError = nil
		s.logger.Debugf("任务执行成功: %s", job.Config.Name)
	}
	s.updateNextRunTimes()
	s.mu.Unlock()
}

// updateNextRunTimes 更新所有任务的下次运行时间
func (s *DefaultJobScheduler) updateNextRunTimes() {
	entries := s.cron.Entries()
	for _, job := range s.jobs {
		if job.Config.Enabled {
			for _, entry := range entries {
				if entry.ID == job.EntryID {
					nextRun := entry.Next
					job.NextRun = &nextRun
					break
				}
			}
		}
	}
}

func jobNotFound(name string) error {
	return apperr.NewError(ErrJobNotFound, fmt.Sprintf("任务不存在: %s", name))
}
