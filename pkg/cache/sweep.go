package cache

import (
	"time"

	"github.com/sirupsen/logrus"
)

// compactSlack 桶队列中允许的多余键引用数，超过 2*条目数+compactSlack 时压缩队列。
const compactSlack = 64

// sweep 执行一次清扫：归档活动桶，然后依次做过期淘汰和容量淘汰。
func (c *Cache[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.rotateLocked(now)

	var expired, evicted int
	if c.maxAge > 0 {
		expired = c.expireLocked(now.Add(-c.maxAge))
	}
	if c.maxSize > 0 {
		evicted = c.shrinkLocked()
	}
	if c.queue.refs > 2*len(c.entries)+compactSlack {
		c.queue.compact(c.currentRefLocked)
	}

	c.sweeps++
	c.expired += int64(expired)
	c.evicted += int64(evicted)
	c.lastSweep = now

	fields := logrus.Fields{
		"expired": expired,
		"evicted": evicted,
		"entries": len(c.entries),
		"size":    c.size,
		"buckets": c.queue.len(),
	}
	if c.maxSize > 0 && c.size > c.maxSize {
		// 桶队列已耗尽，剩余的超额留到下一次清扫处理
		c.logger.WithFields(fields).WithField("max_size", c.maxSize).Warn("清扫后缓存仍超出容量上限")
		return
	}
	c.logger.WithFields(fields).Debug("清扫完成")
}

// rotateLocked 把活动桶归档到队列尾部，并开启新的活动桶。空桶直接丢弃。
func (c *Cache[K, V]) rotateLocked(now time.Time) {
	if c.active.pending() > 0 {
		c.active.retire()
		c.queue.push(c.active)
	}
	c.seq++
	c.active = newBucket[K](c.seq, now)
}

// expireLocked 从队列头部弹出所有最后活跃时间早于 cutoff 的桶，
// 删除其中仍然过期的条目。遇到第一个未过期的桶即停止。
func (c *Cache[K, V]) expireLocked(cutoff time.Time) int {
	removed := 0
	for {
		b := c.queue.front()
		if b == nil || !b.untouchedSince(cutoff) {
			return removed
		}
		c.queue.pop()

		for _, key := range b.remaining() {
			// 键可能在更新的桶里被再次访问过，必须以当前条目为准
			if e, ok := c.entries[key]; ok && e.untouchedSince(cutoff) {
				c.removeLocked(key, e)
				removed++
			}
		}
	}
}

// shrinkLocked 在总大小超过上限时，按归档顺序从最旧的桶开始删除键，
// 直到回到上限之内或队列耗尽。之后又被访问过的键属于更新的桶，在此跳过。
func (c *Cache[K, V]) shrinkLocked() int {
	removed := 0
	for c.size > c.maxSize && c.queue.len() > 0 {
		b := c.queue.front()
		for c.size > c.maxSize {
			key, ok := c.queue.shiftFront()
			if !ok {
				break
			}
			if e, live := c.entries[key]; live && e.seq == b.seq {
				c.removeLocked(key, e)
				removed++
			}
		}
		if b.pending() == 0 {
			c.queue.pop()
		}
	}
	return removed
}

// currentRefLocked 判断桶中的键引用是否仍是该键最近一次的记录。
func (c *Cache[K, V]) currentRefLocked(b *bucket[K], key K) bool {
	e, ok := c.entries[key]
	return ok && e.seq == b.seq
}
