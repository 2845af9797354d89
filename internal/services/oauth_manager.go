package services

import (
	"context"
	"sync"
	"time"

	"firmsync/internal/models"
	"firmsync/pkg/config"

	"gorm.io/gorm"
)

// OAuthManager OAuth集成管理
// 同步服务和健康检查通过此接口取得适配器、触发令牌刷新、查询连接状态
type OAuthManager interface {
	GetProviderAdapter(provider string) ProviderAdapter
	RefreshTokens(ctx context.Context, tenantID uint, provider string) error
	GetIntegrationStatus(tenantID uint) (map[string]bool, error)
}

// DefaultOAuthManager OAuth集成管理默认实现
type DefaultOAuthManager struct {
	db       *gorm.DB
	tokens   TokenStorage
	mu       sync.RWMutex
	adapters map[string]ProviderAdapter
}

// NewOAuthManager 创建OAuth集成管理器，并注册内置集成方适配器
func NewOAuthManager(db *gorm.DB, tokens TokenStorage) *DefaultOAuthManager {
	cfg := config.GetConfig()
	timeout := time.Duration(cfg.Sync.PullTimeoutSec) * time.Second

	m := &DefaultOAuthManager{
		db:       db,
		tokens:   tokens,
		adapters: make(map[string]ProviderAdapter),
	}
	for provider, endpoint := range defaultProviderEndpoints {
		m.adapters[provider] = NewHTTPProviderAdapter(provider, endpoint, timeout)
	}
	return m
}

// RegisterAdapter 注册（或覆盖）集成方适配器
func (m *DefaultOAuthManager) RegisterAdapter(provider string, adapter ProviderAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[provider] = adapter
}

// GetProviderAdapter 获取集成方适配器，未注册时返回nil
func (m *DefaultOAuthManager) GetProviderAdapter(provider string) ProviderAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapters[provider]
}

// RefreshTokens 刷新指定 (租户, 集成方) 的令牌并保存
func (m *DefaultOAuthManager) RefreshTokens(ctx context.Context, tenantID uint, provider string) error {
	token, err := m.tokens.GetTokens(tenantID, provider)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrNoTokensFound
	}

	adapter := m.GetProviderAdapter(provider)
	if adapter == nil {
		return ErrNoAdapterForProvider
	}

	refreshed, err := adapter.RefreshToken(ctx, token)
	if err != nil {
		return err
	}

	return m.tokens.SaveTokens(refreshed)
}

// GetIntegrationStatus 查询租户各集成方的连接状态
func (m *DefaultOAuthManager) GetIntegrationStatus(tenantID uint) (map[string]bool, error) {
	var integrations []models.Integration
	if err := m.db.Where("tenant_id = ?", tenantID).Find(&integrations).Error; err != nil {
		return nil, err
	}

	status := make(map[string]bool, len(integrations))
	for _, integration := range integrations {
		status[integration.Provider] = integration.Status == models.IntegrationStatusConnected
	}
	return status, nil
}
