package cache

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"sweepcache/pkg/logger"
)

// intervalSchedule 是固定间隔的 cron.Schedule，支持亚秒级间隔
// （cron.Every 会把间隔截断到整秒）。
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// sweeper 是缓存拥有的后台清扫任务，基于 cron 调度。
// 同一时刻最多只有一次清扫在运行。
type sweeper struct {
	mu      sync.Mutex
	cron    *cron.Cron
	job     cron.Job
	entryID cron.EntryID
	stopped bool
}

func newSweeper(run func(), log *logrus.Entry) *sweeper {
	cl := logger.CronLogger(log)
	return &sweeper{
		cron: cron.New(cron.WithLogger(cl)),
		// 包装一次后在每次重新调度时复用，保证跨调度也不会重叠执行
		job: cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(run)),
	}
}

func (s *sweeper) start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryID = s.cron.Schedule(intervalSchedule{interval: interval}, s.job)
	s.cron.Start()
}

// reschedule 取消当前计时并以新的间隔重新开始计时。
func (s *sweeper) reschedule(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.cron.Remove(s.entryID)
	s.entryID = s.cron.Schedule(intervalSchedule{interval: interval}, s.job)
}

// stop 停止调度并等待正在运行的清扫结束。
func (s *sweeper) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}
