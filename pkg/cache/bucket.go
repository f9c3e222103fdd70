package cache

import "time"

// bucket 记录一个清扫间隔内被访问过的键
type bucket[K comparable] struct {
	seq          uint64
	keys         []K
	next         int            // 下一个待处理键的下标
	seen         map[K]struct{} // 仅活动桶持有，归档后释放
	lastActivity time.Time
}

func newBucket[K comparable](seq uint64, now time.Time) *bucket[K] {
	return &bucket[K]{
		seq:          seq,
		seen:         make(map[K]struct{}),
		lastActivity: now,
	}
}

// track 把键加入桶中（重复的键只保留第一次的位置），并推进桶的活跃时间。
func (b *bucket[K]) track(key K, now time.Time) {
	if _, ok := b.seen[key]; !ok {
		b.seen[key] = struct{}{}
		b.keys = append(b.keys, key)
	}
	if now.After(b.lastActivity) {
		b.lastActivity = now
	}
}

func (b *bucket[K]) retire() {
	b.seen = nil
}

func (b *bucket[K]) untouchedSince(cutoff time.Time) bool {
	return b.lastActivity.Before(cutoff)
}

func (b *bucket[K]) pending() int {
	return len(b.keys) - b.next
}

func (b *bucket[K]) remaining() []K {
	return b.keys[b.next:]
}

func (b *bucket[K]) shift() (K, bool) {
	var zero K
	if b.next >= len(b.keys) {
		return zero, false
	}
	key := b.keys[b.next]
	b.keys[b.next] = zero
	b.next++
	return key, true
}

// bucketQueue 是已归档桶的双端队列：尾部追加，头部弹出。
type bucketQueue[K comparable] struct {
	buckets []*bucket[K]
	head    int
	refs    int // 所有桶中尚未处理的键引用数
}

func newBucketQueue[K comparable]() *bucketQueue[K] {
	return &bucketQueue[K]{}
}

func (q *bucketQueue[K]) len() int {
	return len(q.buckets) - q.head
}

func (q *bucketQueue[K]) push(b *bucket[K]) {
	q.buckets = append(q.buckets, b)
	q.refs += b.pending()
}

func (q *bucketQueue[K]) front() *bucket[K] {
	if q.len() == 0 {
		return nil
	}
	return q.buckets[q.head]
}

func (q *bucketQueue[K]) pop() *bucket[K] {
	if q.len() == 0 {
		return nil
	}
	b := q.buckets[q.head]
	q.buckets[q.head] = nil
	q.head++
	q.refs -= b.pending()

	switch {
	case q.head == len(q.buckets):
		q.buckets = q.buckets[:0]
		q.head = 0
	case q.head >= 32 && q.head*2 >= len(q.buckets):
		n := copy(q.buckets, q.buckets[q.head:])
		clear(q.buckets[n:])
		q.buckets = q.buckets[:n]
		q.head = 0
	}
	return b
}

// shiftFront 取出头部桶中的下一个键
func (q *bucketQueue[K]) shiftFront() (K, bool) {
	b := q.front()
	if b == nil {
		var zero K
		return zero, false
	}
	key, ok := b.shift()
	if ok {
		q.refs--
	}
	return key, ok
}

// compact 只保留 keep 返回 true 的键引用，并丢弃变空的桶。
// 桶的相对顺序和活跃时间保持不变。
func (q *bucketQueue[K]) compact(keep func(b *bucket[K], key K) bool) {
	live := q.buckets[:0]
	refs := 0
	for _, b := range q.buckets[q.head:] {
		kept := make([]K, 0, b.pending())
		for _, key := range b.remaining() {
			if keep(b, key) {
				kept = append(kept, key)
			}
		}
		if len(kept) == 0 {
			continue
		}
		b.keys = kept
		b.next = 0
		refs += len(kept)
		live = append(live, b)
	}
	clear(q.buckets[len(live):])
	q.buckets = live
	q.head = 0
	q.refs = refs
}
