package cache

import "time"

// entry 是缓存中的一条记录
type entry[V any] struct {
	value   V
	size    int64
	touched time.Time
	seq     uint64 // 最近一次记录该键的桶序号
}

func (e *entry[V]) touch(now time.Time) {
	e.touched = now
}

// untouchedSince 判断条目自 cutoff 起是否未被访问过。
// Get/Has 的可见性判断与清扫的过期淘汰共用这一判定。
func (e *entry[V]) untouchedSince(cutoff time.Time) bool {
	return e.touched.Before(cutoff)
}
