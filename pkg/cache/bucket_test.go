package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledBucket(seq uint64, now time.Time, keys ...string) *bucket[string] {
	b := newBucket[string](seq, now)
	for _, k := range keys {
		b.track(k, now)
	}
	b.retire()
	return b
}

func TestBucket_TrackDeduplicates(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket[string](1, t0)
	b.track("a", t0)
	b.track("b", t0.Add(time.Second))
	b.track("a", t0.Add(2*time.Second))

	assert.Equal(t, []string{"a", "b"}, b.remaining())
	assert.Equal(t, t0.Add(2*time.Second), b.lastActivity)
	assert.True(t, b.untouchedSince(t0.Add(3*time.Second)))
	assert.False(t, b.untouchedSince(t0.Add(2*time.Second)))
}

func TestBucketQueue_PushPopShift(t *testing.T) {
	now := time.Now()
	q := newBucketQueue[string]()
	assert.Nil(t, q.front())
	assert.Nil(t, q.pop())

	q.push(filledBucket(1, now, "a", "b"))
	q.push(filledBucket(2, now, "c"))
	assert.Equal(t, 2, q.len())
	assert.Equal(t, 3, q.refs)

	key, ok := q.shiftFront()
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, 2, q.refs)

	b := q.pop()
	assert.Equal(t, uint64(1), b.seq)
	assert.Equal(t, 1, q.refs)
	assert.Equal(t, uint64(2), q.front().seq)

	q.pop()
	assert.Equal(t, 0, q.len())
	assert.Equal(t, 0, q.refs)
	_, ok = q.shiftFront()
	assert.False(t, ok)
}

func TestBucketQueue_ReclaimsHeadSpace(t *testing.T) {
	now := time.Now()
	q := newBucketQueue[string]()
	for i := 0; i < 100; i++ {
		q.push(filledBucket(uint64(i+1), now, "k"))
	}
	for i := 0; i < 60; i++ {
		q.pop()
	}

	assert.Equal(t, 40, q.len())
	assert.Less(t, q.head, 32)
	assert.Equal(t, uint64(61), q.front().seq)
}

func TestBucketQueue_Compact(t *testing.T) {
	now := time.Now()
	q := newBucketQueue[string]()
	q.push(filledBucket(1, now, "a", "b"))
	q.push(filledBucket(2, now, "a"))
	q.push(filledBucket(3, now, "c"))

	current := map[string]uint64{"a": 2, "b": 1}
	q.compact(func(b *bucket[string], key string) bool {
		return current[key] == b.seq
	})

	require.Equal(t, 2, q.len())
	assert.Equal(t, 2, q.refs)
	assert.Equal(t, []string{"b"}, q.front().remaining())
	q.pop()
	assert.Equal(t, []string{"a"}, q.front().remaining())
}
