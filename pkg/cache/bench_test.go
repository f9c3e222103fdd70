package cache

import (
	"strconv"
	"testing"
	"time"
)

func BenchmarkCache_Set(b *testing.B) {
	c := New[string, int](Options[int]{MaxSize: 10000, SweepInterval: time.Hour})
	defer c.Close()

	keys := make([]string, 20000)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(keys[i%len(keys)], i)
		if i%10000 == 0 {
			c.sweep()
		}
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := New[string, int](Options[int]{SweepInterval: time.Hour})
	defer c.Close()

	keys := make([]string, 10000)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
		c.Set(keys[i], i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(keys[i%len(keys)])
	}
}

func BenchmarkCache_GetParallel(b *testing.B) {
	c := New[string, int](Options[int]{SweepInterval: 10 * time.Millisecond, MaxSize: 5000})
	defer c.Close()

	keys := make([]string, 10000)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := keys[i%len(keys)]
			if _, ok := c.Get(k); !ok {
				c.Set(k, i)
			}
			i++
		}
	})
}

func BenchmarkCache_Sweep(b *testing.B) {
	c := New[string, int](Options[int]{MaxSize: 1000, SweepInterval: time.Hour})
	defer c.Close()

	keys := make([]string, 2000)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < 100; j++ {
			c.Set(keys[(i*100+j)%len(keys)], j)
		}
		c.sweep()
	}
}
