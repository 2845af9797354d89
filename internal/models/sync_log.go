package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncLog 同步日志
// 每次顶层同步调用（含内部重试）产生且仅产生一条记录，只追加不修改
type SyncLog struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID uint   `gorm:"not null;index:idx_sync_log_tenant_provider" json:"tenant_id"`
	Provider string `gorm:"size:50;not null;index:idx_sync_log_tenant_provider" json:"provider"`

	// 同步结果
	Status        string `gorm:"size:20;not null" json:"status"` // success/error
	RecordsSynced int    `json:"records_synced"`                 // 同步的记录数
	Conflicts     int    `json:"conflicts"`                      // 冲突数，冲突检测未实现，恒为0

	// 时间信息
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`

	// 错误信息：按发生顺序累积的各次尝试错误，成功时为空数组
	Errors datatypes.JSON `gorm:"type:jsonb" json:"errors"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 表名
func (SyncLog) TableName() string {
	return "sync_logs"
}

// 同步状态常量
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)
