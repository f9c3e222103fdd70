package cache

import "time"

// Stats 包含了缓存的统计信息快照。
type Stats struct {
	Len           int64         `json:"len"`            // 当前存储的条目数（含尚未清扫的过期条目）
	Size          int64         `json:"size"`           // 所有条目大小之和
	MaxSize       int64         `json:"max_size"`       // 容量上限，0 表示未设置
	MaxAge        time.Duration `json:"max_age"`        // 最大存活时间，0 表示未设置
	SweepInterval time.Duration `json:"sweep_interval"` // 清扫间隔
	HitCount      int64         `json:"hit_count"`      // 命中次数
	MissCount     int64         `json:"miss_count"`     // 未命中次数
	HitRate       float64       `json:"hit_rate"`       // 命中率
	SetCount      int64         `json:"set_count"`      // 写入次数
	DeleteCount   int64         `json:"delete_count"`   // 显式删除次数
	ExpiredCount  int64         `json:"expired_count"`  // 因过期被清扫的条目数
	EvictedCount  int64         `json:"evicted_count"`  // 因超出容量被淘汰的条目数
	SweepCount    int64         `json:"sweep_count"`    // 已执行的清扫次数
	Buckets       int           `json:"buckets"`        // 队列中已归档的桶数
	References    int           `json:"references"`     // 队列中待处理的键引用数
	LastSweep     time.Time     `json:"last_sweep"`     // 最后一次清扫的时间
}

// StatsProvider 由能够提供统计快照的组件实现。
type StatsProvider interface {
	Stats() Stats
}

// Clock 提供当前时间。返回值应携带单调时钟读数（time.Now 即满足）。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
