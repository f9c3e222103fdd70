package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
)

type fakeTarget struct {
	stats  cache.Stats
	resets int
}

func (f *fakeTarget) Stats() cache.Stats { return f.stats }
func (f *fakeTarget) Reset()             { f.resets++ }

type fakeReporter struct {
	calls int
	err   error
}

func (f *fakeReporter) Report(context.Context) error {
	f.calls++
	return f.err
}

func jobWithAction(action string, params map[string]interface{}) *Job {
	return &Job{ID: "id", Config: JobConfig{Name: action, Action: action, Params: params}}
}

func TestMaintenanceExecutor_Reset(t *testing.T) {
	target := &fakeTarget{stats: cache.Stats{Size: 10}}
	e := NewMaintenanceExecutor(target, nil, nil)

	require.NoError(t, e.Execute(context.Background(), jobWithAction(ActionReset, nil)))
	assert.Equal(t, 1, target.resets)

	t.Run("低于阈值时跳过", func(t *testing.T) {
		err := e.Execute(context.Background(), jobWithAction(ActionReset, map[string]interface{}{"min_size": 100}))
		require.NoError(t, err)
		assert.Equal(t, 1, target.resets)
	})

	t.Run("达到阈值时清空", func(t *testing.T) {
		err := e.Execute(context.Background(), jobWithAction(ActionReset, map[string]interface{}{"min_size": float64(10)}))
		require.NoError(t, err)
		assert.Equal(t, 2, target.resets)
	})
}

func TestMaintenanceExecutor_Report(t *testing.T) {
	target := &fakeTarget{}

	err := NewMaintenanceExecutor(target, nil, nil).Execute(context.Background(), jobWithAction(ActionReport, nil))
	require.Error(t, err)
	assert.Equal(t, ErrJobInvalid, apperr.CodeOf(err))

	reporter := &fakeReporter{}
	e := NewMaintenanceExecutor(target, reporter, nil)
	require.NoError(t, e.Execute(context.Background(), jobWithAction(ActionReport, nil)))
	assert.Equal(t, 1, reporter.calls)

	reporter.err = errors.New("write failed")
	assert.EqualError(t, e.Execute(context.Background(), jobWithAction(ActionReport, nil)), "write failed")
}

func TestMaintenanceExecutor_LogStatsAndUnknown(t *testing.T) {
	target := &fakeTarget{stats: cache.Stats{Len: 2, Size: 2, HitRate: 0.5}}
	e := NewMaintenanceExecutor(target, nil, nil)

	assert.NoError(t, e.Execute(context.Background(), jobWithAction(ActionLogStats, nil)))
	assert.Equal(t, 0, target.resets)

	err := e.Execute(context.Background(), jobWithAction("compact", nil))
	require.Error(t, err)
	assert.Equal(t, ErrJobInvalid, apperr.CodeOf(err))
}
