package models

import (
	"time"
)

// Integration 第三方集成配置
// 一条记录对应一个 (租户, 集成方) 的OAuth连接
type Integration struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID uint   `gorm:"not null;index;uniqueIndex:idx_tenant_provider" json:"tenant_id"`
	Provider string `gorm:"size:50;not null;uniqueIndex:idx_tenant_provider" json:"provider"` // google/quickbooks/dropbox/clio
	Name     string `gorm:"size:100" json:"name"`                                             // 显示名称

	// 同步配置
	SyncEnabled bool       `gorm:"default:true" json:"sync_enabled"`          // 是否启用定时同步
	SyncCron    string     `gorm:"size:50;default:'*/5 * * * *'" json:"sync_cron"` // cron表达式
	LastSyncAt  *time.Time `json:"last_sync_at"`                              // 最后同步时间

	// 状态信息
	Status       string `gorm:"size:20;default:'connected'" json:"status"` // connected/disconnected/error
	ErrorMessage string `gorm:"type:text" json:"error_message"`            // 最近一次同步错误

	// 关联
	Tenant    *Tenant   `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名
func (Integration) TableName() string {
	return "integrations"
}

// 集成状态常量
const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)
