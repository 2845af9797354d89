package services

import (
	"encoding/json"
	"fmt"

	"firmsync/internal/models"
	"firmsync/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogger 审计日志接口
// 记录同步与健康检查的终态错误，调用方不关心写入结果（fire-and-forget）
type AuditLogger interface {
	LogError(context string, details map[string]interface{})
}

// dbAuditLogger 审计日志默认实现：落库并同步输出到应用日志
type dbAuditLogger struct {
	db *gorm.DB
}

// NewAuditLogger 创建审计日志器
func NewAuditLogger(db *gorm.DB) AuditLogger {
	return &dbAuditLogger{db: db}
}

// LogError 记录一条错误事件
func (a *dbAuditLogger) LogError(context string, details map[string]interface{}) {
	log := logger.GetLogger()
	log.WithField("context", context).WithField("details", details).Error("审计事件")

	entry := &models.AuditLog{
		Context: context,
	}

	if tenantID, ok := details["tenant_id"].(uint); ok {
		entry.TenantID = tenantID
	}
	if provider, ok := details["provider"].(string); ok {
		entry.Provider = provider
	}
	if errMsg, ok := details["error"].(string); ok {
		entry.Error = errMsg
	}
	if data, err := json.Marshal(details); err == nil {
		entry.Details = datatypes.JSON(data)
	}

	if a.db == nil {
		return
	}
	if err := a.db.Create(entry).Error; err != nil {
		// 审计写入失败不向上传播
		log.WithError(err).Error(fmt.Sprintf("保存审计日志失败: context=%s", context))
	}
}
