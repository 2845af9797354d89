package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncEngineScheduleAndUnschedule(t *testing.T) {
	engine := NewSyncEngine(nil, nil)

	require.NoError(t, engine.ScheduleSync(1, "clio", "*/5 * * * *"))
	require.NoError(t, engine.ScheduleSync(1, "dropbox", "0 * * * *"))
	assert.ElementsMatch(t, []string{"1:clio", "1:dropbox"}, engine.GetScheduledKeys())

	// 同键重复注册只保留最新任务
	require.NoError(t, engine.ScheduleSync(1, "clio", "*/10 * * * *"))
	assert.Len(t, engine.GetScheduledKeys(), 2)

	engine.Unschedule(1, "clio")
	assert.Equal(t, []string{"1:dropbox"}, engine.GetScheduledKeys())

	// 移除不存在的键不报错
	engine.Unschedule(9, "google")
}

func TestSyncEngineInvalidCron(t *testing.T) {
	engine := NewSyncEngine(nil, nil)

	err := engine.ScheduleSync(1, "clio", "not a cron expr")
	assert.Error(t, err)
	assert.Empty(t, engine.GetScheduledKeys())
}

func TestSyncEngineSkipWhenInFlight(t *testing.T) {
	// db和同步服务为nil：上一次运行未结束时必须在触碰它们之前返回
	engine := NewSyncEngine(nil, nil)

	engine.mu.Lock()
	engine.inFlight[syncJobKey(1, "clio")] = true
	engine.mu.Unlock()

	assert.NotPanics(t, func() {
		engine.runScheduledSync(1, "clio")
	})

	// 跳过不应清掉在途标记
	engine.mu.Lock()
	stillInFlight := engine.inFlight[syncJobKey(1, "clio")]
	engine.mu.Unlock()
	assert.True(t, stillInFlight)
}

func TestSyncEngineRunningFlag(t *testing.T) {
	engine := NewSyncEngine(nil, nil)
	assert.False(t, engine.IsRunning())
}

func TestSyncJobKey(t *testing.T) {
	assert.Equal(t, "42:clio", syncJobKey(42, "clio"))
}
