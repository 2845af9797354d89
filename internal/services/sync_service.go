package services

import (
	"context"
	"encoding/json"
	"time"

	"firmsync/internal/models"
	"firmsync/pkg/config"
	"firmsync/pkg/logger"

	"gorm.io/datatypes"
)

// SyncOptions 单次同步的选项
type SyncOptions struct {
	RealTime bool `json:"real_time"`
}

// SyncResult 单次同步的结果
// SyncProvider 永远返回结果而不抛出错误，失败只体现在 Success/Errors 上
type SyncResult struct {
	Success       bool      `json:"success"`
	RecordsSynced int       `json:"records_synced"`
	Conflicts     int       `json:"conflicts"` // 冲突检测未实现，恒为0
	Errors        []string  `json:"errors"`    // 各次尝试的错误，按发生顺序
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// SyncService 同步编排服务
// 单次调用完成：限流检查 → 取令牌 → 取适配器 → 拉数据 → 校验 → 归一化 →
// 转发下游 → 写同步日志；所有依赖显式注入，便于替换和测试
type SyncService struct {
	rateLimiter *RateLimiter
	tokens      TokenStorage
	oauth       OAuthManager
	transformer *DataTransformer
	logs        SyncLogStore
	sink        RecordSink
	audit       AuditLogger

	maxRetries  int
	backoffBase time.Duration // 线性退避：第n次失败后等待 backoffBase * n
	pullTimeout time.Duration
}

// NewSyncService 创建同步服务
func NewSyncService(
	rateLimiter *RateLimiter,
	tokens TokenStorage,
	oauth OAuthManager,
	transformer *DataTransformer,
	logs SyncLogStore,
	sink RecordSink,
	audit AuditLogger,
) *SyncService {
	cfg := config.GetConfig()
	return &SyncService{
		rateLimiter: rateLimiter,
		tokens:      tokens,
		oauth:       oauth,
		transformer: transformer,
		logs:        logs,
		sink:        sink,
		audit:       audit,
		maxRetries:  cfg.Sync.MaxRetries,
		backoffBase: time.Duration(cfg.Sync.BackoffMs) * time.Millisecond,
		pullTimeout: time.Duration(cfg.Sync.PullTimeoutSec) * time.Second,
	}
}

// SyncProvider 为指定 (租户, 集成方) 执行一次同步
// 重试在调用内部串行完成；无论成败，一次顶层调用只产生一条同步日志，
// 中间尝试的失败只累积进最终日志的 errors 数组
func (s *SyncService) SyncProvider(ctx context.Context, tenantID uint, provider string, opts SyncOptions) *SyncResult {
	log := logger.GetLogger()
	startedAt := time.Now()

	var errs []string
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		recordsSynced, err := s.attemptSync(ctx, tenantID, provider, opts)
		if err == nil {
			result := &SyncResult{
				Success:       true,
				RecordsSynced: recordsSynced,
				Errors:        []string{},
				StartedAt:     startedAt,
				FinishedAt:    time.Now(),
			}
			s.logOutcome(tenantID, provider, result)
			log.Infof("集成 %s 同步成功: 租户 %d, 记录数 %d", provider, tenantID, recordsSynced)
			return result
		}

		errs = append(errs, err.Error())
		log.WithError(err).Warnf("集成 %s 同步第 %d 次尝试失败: 租户 %d", provider, attempt, tenantID)

		if attempt >= s.maxRetries {
			break
		}

		// 线性退避；调用方取消时提前终止，剩余尝试放弃
		select {
		case <-time.After(s.backoffBase * time.Duration(attempt)):
		case <-ctx.Done():
			errs = append(errs, ctx.Err().Error())
		}
		if ctx.Err() != nil {
			break
		}
	}

	result := &SyncResult{
		Success:    false,
		Errors:     errs,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	s.logOutcome(tenantID, provider, result)
	s.audit.LogError("sync_service", map[string]interface{}{
		"tenant_id": tenantID,
		"provider":  provider,
		"error":     errs[len(errs)-1],
	})
	return result
}

// attemptSync 执行一次同步尝试，返回同步的记录数
func (s *SyncService) attemptSync(ctx context.Context, tenantID uint, provider string, opts SyncOptions) (int, error) {
	if !s.rateLimiter.Allow(tenantID, provider) {
		return 0, ErrRateLimitExceeded
	}

	token, err := s.tokens.GetTokens(tenantID, provider)
	if err != nil {
		return 0, err
	}
	if token == nil {
		return 0, ErrNoTokensFound
	}

	adapter := s.oauth.GetProviderAdapter(provider)
	if adapter == nil {
		return 0, ErrNoAdapterForProvider
	}

	// 拉取有超时上限，防止慢速集成方挂起整条同步链
	pullCtx, cancel := context.WithTimeout(ctx, s.pullTimeout)
	defer cancel()

	raw, err := adapter.PullData(pullCtx, token, PullOptions{RealTime: opts.RealTime})
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, ErrInvalidDataFormat
	}
	if len(raw) == 0 {
		return 0, ErrNoDataToSync
	}

	transformed := s.transformer.Transform(raw, provider)

	if err := s.sink.Forward(tenantID, provider, transformed, opts.RealTime); err != nil {
		return 0, err
	}

	return len(transformed), nil
}

// logOutcome 写入终态同步日志
func (s *SyncService) logOutcome(tenantID uint, provider string, result *SyncResult) {
	status := models.SyncStatusSuccess
	if !result.Success {
		status = models.SyncStatusError
	}

	errsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		errsJSON = []byte("[]")
	}

	entry := &models.SyncLog{
		TenantID:      tenantID,
		Provider:      provider,
		Status:        status,
		RecordsSynced: result.RecordsSynced,
		Conflicts:     result.Conflicts,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
		Errors:        datatypes.JSON(errsJSON),
	}

	// 日志写入失败不改变同步结果
	if err := s.logs.LogSync(entry); err != nil {
		logger.GetLogger().WithError(err).Error("保存同步日志失败")
	}
}

// TriggerRealTimeSync 实时触发一次同步
func (s *SyncService) TriggerRealTimeSync(ctx context.Context, tenantID uint, provider string) *SyncResult {
	return s.SyncProvider(ctx, tenantID, provider, SyncOptions{RealTime: true})
}

// GetSyncStatus 查询最近一次同步结果
func (s *SyncService) GetSyncStatus(tenantID uint, provider string) (*models.SyncLog, error) {
	return s.logs.GetLatestStatus(tenantID, provider)
}

// GetSyncLogs 查询全部同步历史
func (s *SyncService) GetSyncLogs(tenantID uint, provider string) ([]models.SyncLog, error) {
	return s.logs.GetLogs(tenantID, provider)
}

// GetSyncLogsPage 分页查询同步历史
func (s *SyncService) GetSyncLogsPage(tenantID uint, provider string, offset, limit int) ([]models.SyncLog, int64, error) {
	return s.logs.GetLogsPage(tenantID, provider, offset, limit)
}
