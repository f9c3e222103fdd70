package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(Config{Level: "warn", Format: "json"}, &buf)

	assert.Equal(t, logrus.WarnLevel, GetLogger().GetLevel())

	WithComponent("cache").Info("不应输出")
	WithComponent("cache").Warn("over budget")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache", line["component"])
	assert.Equal(t, "over budget", line["msg"])
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(Config{Level: "loud", Format: "text"}, &buf)
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("debug"))
	assert.True(t, ValidLevel("WARN"))
	assert.False(t, ValidLevel("verbose"))
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(Config{Level: "debug", Format: "json"}, &buf)

	cl := CronLogger(WithComponent("sweeper"))
	cl.Error(errors.New("panic in job"), "job failed", "entry", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "job failed", line["msg"])
	assert.Equal(t, "panic in job", line["error"])
	assert.Equal(t, float64(3), line["entry"])
	assert.Equal(t, "sweeper", line["component"])
}
