package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志
// 记录同步与健康检查的终态错误事件
type AuditLog struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Context  string `gorm:"size:50;not null;index" json:"context"` // sync_service/integration_health_check
	TenantID uint   `gorm:"index" json:"tenant_id"`
	Provider string `gorm:"size:50" json:"provider"`

	Error   string         `gorm:"type:text" json:"error"`
	Details datatypes.JSON `gorm:"type:jsonb" json:"details"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
