package services

import "sync"

// 全局同步调度引擎实例
// 引擎在 main 中创建并启动，路由层通过这里取得同一实例
var (
	globalSyncEngine *SyncEngine
	engineMu         sync.RWMutex
)

// SetGlobalSyncEngine 设置全局同步调度引擎
func SetGlobalSyncEngine(engine *SyncEngine) {
	engineMu.Lock()
	defer engineMu.Unlock()
	globalSyncEngine = engine
}

// GetGlobalSyncEngine 获取全局同步调度引擎
func GetGlobalSyncEngine() *SyncEngine {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return globalSyncEngine
}
