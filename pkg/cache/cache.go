package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sweepcache/pkg/logger"
)

// Cache 是带可插拔大小计算、可选 TTL 和可选容量上限的内存缓存。
//
// 最近使用顺序以清扫间隔为粒度近似：每个间隔内访问过的键记录在一个桶里，
// 清扫时按桶的归档顺序淘汰。详见包文档。
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	entries map[K]*entry[V]
	size    int64
	active  *bucket[K]
	queue   *bucketQueue[K]
	seq     uint64

	sizeFn        SizeFunc[V]
	maxSize       int64
	maxAge        time.Duration
	sweepInterval time.Duration

	clock   Clock
	logger  *logrus.Entry
	sweeper *sweeper
	closed  bool

	hits, misses, sets, deletes int64
	expired, evicted, sweeps    int64
	lastSweep                   time.Time
}

// New 根据 opts 创建缓存并启动后台清扫任务。使用完毕后应调用 Close。
func New[K comparable, V any](opts Options[V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:       make(map[K]*entry[V]),
		queue:         newBucketQueue[K](),
		sizeFn:        UnitSize[V],
		sweepInterval: DefaultSweepInterval,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.logger == nil {
		c.logger = logger.WithComponent("cache")
	}

	c.SetSizeFn(opts.SizeFn)
	c.SetMaxSize(opts.MaxSize)
	c.SetMaxAge(opts.MaxAge)
	if opts.SweepInterval > 0 {
		c.sweepInterval = opts.SweepInterval
	}

	c.seq = 1
	c.active = newBucket[K](c.seq, c.clock.Now())

	c.sweeper = newSweeper(c.sweep, c.logger)
	c.sweeper.start(c.sweepInterval)
	return c
}

// NewWithMaxSize 是只设置容量上限的简写形式。
func NewWithMaxSize[K comparable, V any](maxSize int64) *Cache[K, V] {
	return New[K, V](Options[V]{MaxSize: maxSize})
}

// Get 返回 key 对应的值。条目不存在或已过期时返回零值和 false，且不做任何修改；
// 命中时刷新访问时间并把 key 记入活动桶。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	e := c.lookupLocked(key, now)
	if e == nil {
		c.misses++
		var zero V
		return zero, false
	}

	c.touchLocked(key, e, now)
	c.hits++
	return e.value, true
}

// Has 判断 key 是否存在且未过期，不刷新访问时间。
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lookupLocked(key, c.clock.Now()) != nil
}

// Set 写入或覆盖 key。大小函数在调用方的 goroutine 中同步执行，
// 它的 panic 会原样传递给调用方，缓存保持调用前的状态。
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := measure(c.sizeFn, value)
	now := c.clock.Now()

	e, ok := c.entries[key]
	if ok {
		c.size -= e.size
		e.value = value
		e.size = size
	} else {
		e = &entry[V]{value: value, size: size}
		c.entries[key] = e
	}
	c.size += size

	c.touchLocked(key, e, now)
	c.sets++
}

// Del 删除 key，不存在时什么也不做。
func (c *Cache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
		c.deletes++
	}
}

// Reset 清空缓存、丢弃桶队列并重新开始清扫计时。
// 在 Reset 之前已经排队的清扫只会看到 Reset 之后的状态。
func (c *Cache[K, V]) Reset() {
	c.mu.Lock()
	c.entries = make(map[K]*entry[V])
	c.size = 0
	c.queue = newBucketQueue[K]()
	c.seq++
	c.active = newBucket[K](c.seq, c.clock.Now())
	interval, closed := c.sweepInterval, c.closed
	c.mu.Unlock()

	if !closed {
		c.sweeper.reschedule(interval)
	}
}

// ForEach 对每个未过期的条目调用 fn，顺序不确定，也不会刷新访问时间。
// fn 在锁外执行，可以回调缓存的其他方法。
func (c *Cache[K, V]) ForEach(fn func(value V, key K, c *Cache[K, V])) {
	type item struct {
		key   K
		value V
	}

	c.mu.Lock()
	now := c.clock.Now()
	items := make([]item, 0, len(c.entries))
	for key := range c.entries {
		if e := c.lookupLocked(key, now); e != nil {
			items = append(items, item{key: key, value: e.value})
		}
	}
	c.mu.Unlock()

	for _, it := range items {
		fn(it.value, it.key, c)
	}
}

// Size 返回所有条目大小之和。
func (c *Cache[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len 返回存储中的条目数，包括已过期但尚未被清扫的条目。
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SizeFn 返回当前的大小函数。
func (c *Cache[K, V]) SizeFn() SizeFunc[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeFn
}

// SetSizeFn 更换大小函数并重新计算所有条目的大小。fn 为 nil 时忽略并返回 false。
// 重新计算要么全部生效，要么（fn panic 时）完全不生效。
func (c *Cache[K, V]) SetSizeFn(fn SizeFunc[V]) bool {
	if fn == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sizes := make(map[K]int64, len(c.entries))
	var total int64
	for key, e := range c.entries {
		n := measure(fn, e.value)
		sizes[key] = n
		total += n
	}

	for key, e := range c.entries {
		e.size = sizes[key]
	}
	c.sizeFn = fn
	c.size = total
	return true
}

// MaxSize 返回容量上限；未设置时第二个返回值为 false。
func (c *Cache[K, V]) MaxSize() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSize, c.maxSize > 0
}

// SetMaxSize 设置容量上限，非正数会被忽略。返回生效后的上限（0 表示未设置）。
// 新上限在下一次清扫时生效。
func (c *Cache[K, V]) SetMaxSize(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.maxSize = n
	}
	return c.maxSize
}

// ClearMaxSize 取消容量上限。
func (c *Cache[K, V]) ClearMaxSize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = 0
}

// MaxAge 返回最大存活时间；未设置时第二个返回值为 false。
func (c *Cache[K, V]) MaxAge() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxAge, c.maxAge > 0
}

// SetMaxAge 设置最大存活时间，非正数会被忽略。返回生效后的值（0 表示未设置）。
// 新值立即作用于 Get/Has，并在下一次清扫时作用于过期淘汰。
func (c *Cache[K, V]) SetMaxAge(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.maxAge = d
	}
	return c.maxAge
}

// ClearMaxAge 取消最大存活时间。
func (c *Cache[K, V]) ClearMaxAge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAge = 0
}

// SweepInterval 返回清扫间隔。
func (c *Cache[K, V]) SweepInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepInterval
}

// SetSweepInterval 设置清扫间隔并重启计时，非正数会被忽略。返回生效后的间隔。
func (c *Cache[K, V]) SetSweepInterval(d time.Duration) time.Duration {
	c.mu.Lock()
	if d <= 0 {
		defer c.mu.Unlock()
		return c.sweepInterval
	}
	c.sweepInterval = d
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		c.sweeper.reschedule(d)
	}
	return d
}

// Stats 返回统计信息快照。
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Len:           int64(len(c.entries)),
		Size:          c.size,
		MaxSize:       c.maxSize,
		MaxAge:        c.maxAge,
		SweepInterval: c.sweepInterval,
		HitCount:      c.hits,
		MissCount:     c.misses,
		HitRate:       hitRate,
		SetCount:      c.sets,
		DeleteCount:   c.deletes,
		ExpiredCount:  c.expired,
		EvictedCount:  c.evicted,
		SweepCount:    c.sweeps,
		Buckets:       c.queue.len(),
		References:    c.queue.refs,
		LastSweep:     c.lastSweep,
	}
}

// Close 停止后台清扫任务并等待正在进行的清扫结束。
// 关闭后缓存仍可读写，但不再自动清扫。可以重复调用。
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// 在锁外停止，正在运行的清扫需要拿到锁才能结束。
	c.sweeper.stop()
	return nil
}

func (c *Cache[K, V]) lookupLocked(key K, now time.Time) *entry[V] {
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.maxAge > 0 && e.untouchedSince(now.Add(-c.maxAge)) {
		return nil
	}
	return e
}

func (c *Cache[K, V]) touchLocked(key K, e *entry[V], now time.Time) {
	e.touch(now)
	e.seq = c.active.seq
	c.active.track(key, now)
}

func (c *Cache[K, V]) removeLocked(key K, e *entry[V]) {
	delete(c.entries, key)
	c.size -= e.size
}

func measure[V any](fn SizeFunc[V], value V) int64 {
	if n := fn(value); n > 0 {
		return n
	}
	return 0
}
