package cache

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval 默认清扫间隔
const DefaultSweepInterval = 2500 * time.Millisecond

// SizeFunc 计算一个值计入缓存容量的大小，应为无副作用的纯函数。
// 负数结果按 0 计。
type SizeFunc[V any] func(value V) int64

// UnitSize 把每个值都计为 1，即按条目数计量容量。
func UnitSize[V any](V) int64 {
	return 1
}

// Options 缓存构造参数。非法值会被忽略并使用默认值。
type Options[V any] struct {
	SizeFn        SizeFunc[V]   // 大小函数，nil 时每个条目计为 1
	MaxSize       int64         // 容量上限，<=0 表示不限制
	MaxAge        time.Duration // 最大存活时间，<=0 表示不过期
	SweepInterval time.Duration // 清扫间隔，<=0 时使用 DefaultSweepInterval
	Clock         Clock         // 时间来源，nil 时使用系统时钟
	Logger        *logrus.Entry // 日志器，nil 时使用 component=cache 的全局日志器
}
