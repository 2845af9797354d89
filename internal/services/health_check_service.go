package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"firmsync/pkg/config"
)

// 健康状态常量
const (
	HealthStatusHealthy = "healthy"
	HealthStatusExpired = "expired"
	HealthStatusError   = "error"
)

// HealthCheckResult 单个集成的健康检查结果
type HealthCheckResult struct {
	Provider    string    `json:"provider"`
	Status      string    `json:"status"` // healthy/expired/error
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

// IntegrationHealthCheck 集成健康检查
// 基于令牌有效期判断连接健康度，过期时尝试一次轻量刷新；
// 结果按 (租户, 集成方) 缓存，TTL内直接命中，不发起任何I/O
type IntegrationHealthCheck struct {
	tokens   TokenStorage
	oauth    OAuthManager
	audit    AuditLogger
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*HealthCheckResult
}

// NewIntegrationHealthCheck 创建健康检查服务
func NewIntegrationHealthCheck(tokens TokenStorage, oauth OAuthManager, audit AuditLogger) *IntegrationHealthCheck {
	cfg := config.GetConfig()
	return &IntegrationHealthCheck{
		tokens:   tokens,
		oauth:    oauth,
		audit:    audit,
		cacheTTL: time.Duration(cfg.Sync.HealthCacheTTL) * time.Minute,
		cache:    make(map[string]*HealthCheckResult),
	}
}

// CheckIntegrationHealth 检查单个集成的健康状态
func (h *IntegrationHealthCheck) CheckIntegrationHealth(ctx context.Context, tenantID uint, provider string) *HealthCheckResult {
	key := healthCacheKey(tenantID, provider)

	h.mu.RLock()
	cached, exists := h.cache[key]
	h.mu.RUnlock()
	if exists && time.Since(cached.LastChecked) < h.cacheTTL {
		return cached
	}

	result := h.computeHealth(ctx, tenantID, provider)
	result.LastChecked = time.Now()

	h.mu.Lock()
	h.cache[key] = result
	h.mu.Unlock()

	return result
}

// computeHealth 执行一次真实的健康检查
func (h *IntegrationHealthCheck) computeHealth(ctx context.Context, tenantID uint, provider string) *HealthCheckResult {
	result := &HealthCheckResult{Provider: provider}

	token, err := h.tokens.GetTokens(tenantID, provider)
	if err != nil {
		// 意外失败：记审计，转为error状态，不向上抛出
		h.audit.LogError("integration_health_check", map[string]interface{}{
			"tenant_id": tenantID,
			"provider":  provider,
			"error":     err.Error(),
		})
		result.Status = HealthStatusError
		result.Error = err.Error()
		return result
	}

	if token == nil {
		result.Status = HealthStatusError
		result.Error = "No tokens found"
		return result
	}

	if token.Expired(time.Now()) {
		// 令牌已过期，尝试一次刷新
		if err := h.oauth.RefreshTokens(ctx, tenantID, provider); err != nil {
			result.Status = HealthStatusExpired
			result.Error = "Token expired and refresh failed"
			return result
		}
	}

	result.Status = HealthStatusHealthy
	return result
}

// CheckAllIntegrations 检查租户所有已连接集成的健康状态
// 单个集成的失败不影响其他集成的检查
func (h *IntegrationHealthCheck) CheckAllIntegrations(ctx context.Context, tenantID uint) []*HealthCheckResult {
	statuses, err := h.oauth.GetIntegrationStatus(tenantID)
	if err != nil {
		h.audit.LogError("integration_health_check", map[string]interface{}{
			"tenant_id": tenantID,
			"error":     err.Error(),
		})
		return []*HealthCheckResult{}
	}

	// 固定顺序遍历，保证结果稳定
	providers := make([]string, 0, len(statuses))
	for provider, connected := range statuses {
		if connected {
			providers = append(providers, provider)
		}
	}
	sort.Strings(providers)

	results := make([]*HealthCheckResult, 0, len(providers))
	for _, provider := range providers {
		results = append(results, h.CheckIntegrationHealth(ctx, tenantID, provider))
	}
	return results
}

// ClearCache 清空健康检查缓存（用于测试和强制重新检查）
func (h *IntegrationHealthCheck) ClearCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[string]*HealthCheckResult)
}

func healthCacheKey(tenantID uint, provider string) string {
	return fmt.Sprintf("%d:%s", tenantID, provider)
}
