package reporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
)

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, point...)
	return nil
}

type fixedStats cache.Stats

func (s fixedStats) Stats() cache.Stats { return cache.Stats(s) }

func fieldsOf(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagsOf(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestStatsPoint(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	stats := cache.Stats{
		Len:          3,
		Size:         137,
		MaxSize:      200,
		MaxAge:       time.Minute,
		HitCount:     8,
		MissCount:    2,
		HitRate:      0.8,
		EvictedCount: 1,
		Buckets:      2,
	}

	p := StatsPoint("cache_stats", map[string]string{"instance": "a"}, stats, ts)

	assert.Equal(t, "cache_stats", p.Name())
	assert.Equal(t, ts, p.Time())
	assert.Equal(t, map[string]string{"instance": "a"}, tagsOf(p))

	fields := fieldsOf(p)
	assert.Equal(t, int64(3), fields["len"])
	assert.Equal(t, int64(137), fields["size"])
	assert.Equal(t, int64(60000), fields["max_age_ms"])
	assert.Equal(t, 0.8, fields["hit_rate"])
	assert.Equal(t, int64(1), fields["evicted"])
	assert.Equal(t, int64(2), fields["buckets"])
}

func TestReporter_Report(t *testing.T) {
	w := &recordingWriter{}
	r := newReporter(w, Config{Tags: map[string]string{"env": "test"}}, fixedStats{Len: 5, Size: 9}, nil)

	require.NoError(t, r.Report(context.Background()))
	require.Len(t, w.points, 1)
	assert.Equal(t, "cache_stats", w.points[0].Name())
	assert.Equal(t, int64(9), fieldsOf(w.points[0])["size"])
	assert.Equal(t, "test", tagsOf(w.points[0])["env"])
}

func TestReporter_ReportError(t *testing.T) {
	w := &recordingWriter{err: errors.New("unauthorized")}
	r := newReporter(w, DefaultConfig(), fixedStats{}, nil)

	err := r.Report(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrReportFailed, apperr.CodeOf(err))
	r.Close()
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.URL = "http://127.0.0.1:1"
	r, err := New(ctx, cfg, fixedStats{}, nil)
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Equal(t, ErrReportFailed, apperr.CodeOf(err))
}
