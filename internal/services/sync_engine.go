package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firmsync/internal/models"
	"firmsync/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SyncEngine 同步调度引擎
// 按各集成配置的cron表达式触发定时同步，并提供实时触发入口
type SyncEngine struct {
	db          *gorm.DB
	cron        *cron.Cron
	syncService *SyncService
	jobs        map[string]cron.EntryID // "{tenantID}:{provider}" -> cronJobID
	inFlight    map[string]bool         // 正在执行的同步，防止同键重叠运行
	mu          sync.RWMutex
	running     bool
}

// NewSyncEngine 创建同步调度引擎
func NewSyncEngine(db *gorm.DB, syncService *SyncService) *SyncEngine {
	return &SyncEngine{
		db:          db,
		cron:        cron.New(),
		syncService: syncService,
		jobs:        make(map[string]cron.EntryID),
		inFlight:    make(map[string]bool),
	}
}

// Start 启动调度引擎
func (e *SyncEngine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	log := logger.GetLogger()
	log.Info("启动集成同步调度引擎")

	// 加载所有启用定时同步的已连接集成
	var integrations []models.Integration
	err := e.db.Where("sync_enabled = ? AND status = ?", true, models.IntegrationStatusConnected).
		Find(&integrations).Error
	if err != nil {
		return fmt.Errorf("查询集成列表失败: %v", err)
	}

	for _, integration := range integrations {
		if err := e.ScheduleSync(integration.TenantID, integration.Provider, integration.SyncCron); err != nil {
			log.WithError(err).Errorf("调度集成 %s 失败: 租户 %d", integration.Provider, integration.TenantID)
		}
	}

	e.cron.Start()

	e.mu.RLock()
	count := len(e.jobs)
	e.mu.RUnlock()
	log.Infof("集成同步调度引擎启动成功，已加载 %d 个同步任务", count)
	return nil
}

// Stop 停止调度引擎，等待在途任务结束
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	logger.GetLogger().Info("停止集成同步调度引擎")

	ctx := e.cron.Stop()
	<-ctx.Done()

	e.mu.Lock()
	e.jobs = make(map[string]cron.EntryID)
	e.mu.Unlock()
}

// ScheduleSync 为指定 (租户, 集成方) 注册定时同步
// 同键已有任务时先移除再注册
func (e *SyncEngine) ScheduleSync(tenantID uint, provider, cronExpr string) error {
	key := syncJobKey(tenantID, provider)

	e.mu.Lock()
	defer e.mu.Unlock()

	if jobID, exists := e.jobs[key]; exists {
		e.cron.Remove(jobID)
		delete(e.jobs, key)
	}

	jobID, err := e.cron.AddFunc(cronExpr, func() {
		e.runScheduledSync(tenantID, provider)
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %v", err)
	}

	e.jobs[key] = jobID
	logger.GetLogger().Infof("已注册集成 %s 的定时同步: 租户 %d, cron: %s", provider, tenantID, cronExpr)
	return nil
}

// Unschedule 移除定时同步
func (e *SyncEngine) Unschedule(tenantID uint, provider string) {
	key := syncJobKey(tenantID, provider)

	e.mu.Lock()
	defer e.mu.Unlock()

	if jobID, exists := e.jobs[key]; exists {
		e.cron.Remove(jobID)
		delete(e.jobs, key)
		logger.GetLogger().Infof("已移除集成 %s 的定时同步: 租户 %d", provider, tenantID)
	}
}

// runScheduledSync 执行一次定时同步
// 上一次运行未结束时本次触发直接跳过（同键不重叠）
func (e *SyncEngine) runScheduledSync(tenantID uint, provider string) {
	key := syncJobKey(tenantID, provider)
	log := logger.GetLogger()

	e.mu.Lock()
	if e.inFlight[key] {
		e.mu.Unlock()
		log.Warnf("集成 %s 上一次同步尚未结束，本次触发跳过: 租户 %d", provider, tenantID)
		return
	}
	e.inFlight[key] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, key)
		e.mu.Unlock()
	}()

	result := e.syncService.SyncProvider(context.Background(), tenantID, provider, SyncOptions{RealTime: false})
	e.recordOutcome(tenantID, provider, result)
}

// TriggerRealTimeSync 实时触发一次同步并返回结果
func (e *SyncEngine) TriggerRealTimeSync(ctx context.Context, tenantID uint, provider string) *SyncResult {
	logger.GetLogger().Infof("实时触发集成 %s 的同步: 租户 %d", provider, tenantID)

	result := e.syncService.TriggerRealTimeSync(ctx, tenantID, provider)
	e.recordOutcome(tenantID, provider, result)
	return result
}

// recordOutcome 把同步结果回写到集成记录
func (e *SyncEngine) recordOutcome(tenantID uint, provider string, result *SyncResult) {
	now := time.Now()
	updates := map[string]interface{}{
		"last_sync_at": &now,
	}
	if result.Success {
		updates["status"] = models.IntegrationStatusConnected
		updates["error_message"] = ""
	} else {
		updates["status"] = models.IntegrationStatusError
		if len(result.Errors) > 0 {
			updates["error_message"] = result.Errors[len(result.Errors)-1]
		}
	}

	err := e.db.Model(&models.Integration{}).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		Updates(updates).Error
	if err != nil {
		logger.GetLogger().WithError(err).Error("更新集成同步状态失败")
	}
}

// GetScheduledKeys 获取已调度的 (租户, 集成方) 键列表
func (e *SyncEngine) GetScheduledKeys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.jobs))
	for key := range e.jobs {
		keys = append(keys, key)
	}
	return keys
}

// IsRunning 检查调度引擎是否运行中
func (e *SyncEngine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func syncJobKey(tenantID uint, provider string) string {
	return fmt.Sprintf("%d:%s", tenantID, provider)
}
