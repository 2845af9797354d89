package services

import (
	"errors"
	"time"

	"firmsync/internal/models"

	"gorm.io/gorm"
)

// IntegrationService 集成管理服务
// 负责集成连接的增删改查；令牌经TokenStorage加密存储
type IntegrationService struct {
	db     *gorm.DB
	tokens TokenStorage
	oauth  OAuthManager
	engine *SyncEngine
}

// NewIntegrationService 创建集成管理服务
func NewIntegrationService(db *gorm.DB, tokens TokenStorage, oauth OAuthManager, engine *SyncEngine) *IntegrationService {
	return &IntegrationService{
		db:     db,
		tokens: tokens,
		oauth:  oauth,
		engine: engine,
	}
}

// ConnectIntegrationRequest 连接集成请求
type ConnectIntegrationRequest struct {
	Provider     string `json:"provider" binding:"required"`
	Name         string `json:"name"`
	SyncEnabled  *bool  `json:"sync_enabled"`
	SyncCron     string `json:"sync_cron"`
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UpdateIntegrationRequest 更新集成请求
type UpdateIntegrationRequest struct {
	Name        *string `json:"name"`
	SyncEnabled *bool   `json:"sync_enabled"`
	SyncCron    *string `json:"sync_cron"`
}

// Connect 建立（或重建）集成连接并保存令牌
func (s *IntegrationService) Connect(tenantID uint, req ConnectIntegrationRequest) (*models.Integration, error) {
	// 校验集成方受支持
	if s.oauth.GetProviderAdapter(req.Provider) == nil {
		return nil, errors.New("不支持的集成方")
	}

	syncEnabled := true
	if req.SyncEnabled != nil {
		syncEnabled = *req.SyncEnabled
	}
	syncCron := req.SyncCron
	if syncCron == "" {
		syncCron = "*/5 * * * *"
	}

	var integration models.Integration
	err := s.db.Where("tenant_id = ? AND provider = ?", tenantID, req.Provider).
		First(&integration).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		integration = models.Integration{
			TenantID:    tenantID,
			Provider:    req.Provider,
			Name:        req.Name,
			SyncEnabled: syncEnabled,
			SyncCron:    syncCron,
			Status:      models.IntegrationStatusConnected,
		}
		if err := s.db.Create(&integration).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		updates := map[string]interface{}{
			"name":          req.Name,
			"sync_enabled":  syncEnabled,
			"sync_cron":     syncCron,
			"status":        models.IntegrationStatusConnected,
			"error_message": "",
		}
		if err := s.db.Model(&integration).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	token := &models.OAuthToken{
		TenantID:     tenantID,
		Provider:     req.Provider,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Scope:        req.Scope,
		ExpiresIn:    req.ExpiresIn,
		IssuedAt:     time.Now(),
	}
	if err := s.tokens.SaveTokens(token); err != nil {
		return nil, err
	}

	// 按配置注册定时同步
	if syncEnabled {
		if err := s.engine.ScheduleSync(tenantID, req.Provider, syncCron); err != nil {
			return nil, err
		}
	} else {
		s.engine.Unschedule(tenantID, req.Provider)
	}

	return &integration, nil
}

// Update 更新集成的同步配置
func (s *IntegrationService) Update(tenantID uint, provider string, req UpdateIntegrationRequest) (*models.Integration, error) {
	integration, err := s.Get(tenantID, provider)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SyncEnabled != nil {
		updates["sync_enabled"] = *req.SyncEnabled
	}
	if req.SyncCron != nil {
		updates["sync_cron"] = *req.SyncCron
	}
	if len(updates) > 0 {
		if err := s.db.Model(integration).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	// 重新加载并按最新配置调整调度
	integration, err = s.Get(tenantID, provider)
	if err != nil {
		return nil, err
	}
	if integration.SyncEnabled && integration.Status == models.IntegrationStatusConnected {
		if err := s.engine.ScheduleSync(tenantID, provider, integration.SyncCron); err != nil {
			return nil, err
		}
	} else {
		s.engine.Unschedule(tenantID, provider)
	}

	return integration, nil
}

// Disconnect 断开集成：删除令牌、停掉定时同步；保留集成记录和同步历史
func (s *IntegrationService) Disconnect(tenantID uint, provider string) error {
	integration, err := s.Get(tenantID, provider)
	if err != nil {
		return err
	}

	if err := s.tokens.DeleteTokens(tenantID, provider); err != nil {
		return err
	}

	s.engine.Unschedule(tenantID, provider)

	return s.db.Model(integration).Updates(map[string]interface{}{
		"status": models.IntegrationStatusDisconnected,
	}).Error
}

// Get 获取集成详情
func (s *IntegrationService) Get(tenantID uint, provider string) (*models.Integration, error) {
	var integration models.Integration
	err := s.db.Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("集成不存在")
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// List 分页查询租户的集成列表
func (s *IntegrationService) List(tenantID uint, offset, limit int) ([]models.Integration, int64, error) {
	query := s.db.Model(&models.Integration{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var integrations []models.Integration
	err := query.Order("provider ASC").Offset(offset).Limit(limit).Find(&integrations).Error
	return integrations, total, err
}
