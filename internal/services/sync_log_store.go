package services

import (
	"errors"
	"sync"

	"firmsync/internal/models"

	"gorm.io/gorm"
)

// SyncLogStore 同步日志存储
// 只追加不修改；GetLatestStatus 是状态查询接口的单一事实来源，
// 不存在匹配记录时返回 (nil, nil)
type SyncLogStore interface {
	LogSync(log *models.SyncLog) error
	GetLatestStatus(tenantID uint, provider string) (*models.SyncLog, error)
	GetLogs(tenantID uint, provider string) ([]models.SyncLog, error)
	GetLogsPage(tenantID uint, provider string, offset, limit int) ([]models.SyncLog, int64, error)
}

// ========== GORM实现 ==========

// dbSyncLogStore 持久化同步日志存储
type dbSyncLogStore struct {
	db *gorm.DB
}

// NewSyncLogStore 创建持久化同步日志存储
func NewSyncLogStore(db *gorm.DB) SyncLogStore {
	return &dbSyncLogStore{db: db}
}

// LogSync 追加一条同步日志
func (s *dbSyncLogStore) LogSync(log *models.SyncLog) error {
	return s.db.Create(log).Error
}

// GetLatestStatus 查询最近一次同步结果
func (s *dbSyncLogStore) GetLatestStatus(tenantID uint, provider string) (*models.SyncLog, error) {
	var log models.SyncLog
	err := s.db.Where("tenant_id = ? AND provider = ?", tenantID, provider).
		Order("id DESC").First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetLogs 按插入顺序查询全部同步历史
func (s *dbSyncLogStore) GetLogs(tenantID uint, provider string) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := s.db.Where("tenant_id = ? AND provider = ?", tenantID, provider).
		Order("id ASC").Find(&logs).Error
	return logs, err
}

// GetLogsPage 分页查询同步历史（新的在前，供状态页使用）
func (s *dbSyncLogStore) GetLogsPage(tenantID uint, provider string, offset, limit int) ([]models.SyncLog, int64, error) {
	query := s.db.Model(&models.SyncLog{}).
		Where("tenant_id = ? AND provider = ?", tenantID, provider)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.SyncLog
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}

// ========== 内存实现 ==========

// memorySyncLogStore 进程内同步日志存储（测试和无数据库场景）
type memorySyncLogStore struct {
	mu     sync.RWMutex
	logs   []models.SyncLog
	nextID uint
}

// NewMemorySyncLogStore 创建内存同步日志存储
func NewMemorySyncLogStore() SyncLogStore {
	return &memorySyncLogStore{nextID: 1}
}

func (s *memorySyncLogStore) LogSync(log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = s.nextID
	s.nextID++
	s.logs = append(s.logs, *log)
	return nil
}

func (s *memorySyncLogStore) GetLatestStatus(tenantID uint, provider string) (*models.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].TenantID == tenantID && s.logs[i].Provider == provider {
			log := s.logs[i]
			return &log, nil
		}
	}
	return nil, nil
}

func (s *memorySyncLogStore) GetLogs(tenantID uint, provider string) ([]models.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.SyncLog
	for _, log := range s.logs {
		if log.TenantID == tenantID && log.Provider == provider {
			result = append(result, log)
		}
	}
	return result, nil
}

func (s *memorySyncLogStore) GetLogsPage(tenantID uint, provider string, offset, limit int) ([]models.SyncLog, int64, error) {
	all, _ := s.GetLogs(tenantID, provider)

	// 新的在前
	reversed := make([]models.SyncLog, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		reversed = append(reversed, all[i])
	}

	total := int64(len(reversed))
	if offset >= len(reversed) {
		return []models.SyncLog{}, total, nil
	}
	end := offset + limit
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[offset:end], total, nil
}
