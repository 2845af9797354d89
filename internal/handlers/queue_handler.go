package handlers

import (
	"firmsync/internal/database"
	"firmsync/internal/models"
	"firmsync/pkg/jwt"
	"firmsync/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// QueueHandler 同步队列处理器
type QueueHandler struct {
	db *gorm.DB
}

// NewQueueHandler 创建同步队列处理器
func NewQueueHandler(db *gorm.DB) *QueueHandler {
	return &QueueHandler{db: db}
}

// GetQueueStats 获取各集成队列的积压统计
func (h *QueueHandler) GetQueueStats(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	// 取当前租户已连接的集成方列表
	var providers []string
	err := h.db.Model(&models.Integration{}).
		Where("tenant_id = ? AND status = ?", userClaims.CurrentTenantID, models.IntegrationStatusConnected).
		Pluck("provider", &providers).Error
	if err != nil {
		response.ServerError(c, "获取集成列表失败")
		return
	}

	stats, err := database.GetRedisQueue().GetQueueStats(providers)
	if err != nil {
		response.ServerError(c, "获取队列统计失败")
		return
	}

	response.Success(c, stats)
}

// GetSyncRunStatus 按同步ID查询队列中的运行状态
func (h *QueueHandler) GetSyncRunStatus(c *gin.Context) {
	syncID := c.Param("sync_id")
	if syncID == "" {
		response.BadRequest(c, "同步ID不能为空")
		return
	}

	status, err := database.GetRedisQueue().GetSyncStatus(syncID)
	if err != nil {
		response.NotFound(c, "同步记录不存在")
		return
	}

	response.Success(c, status)
}

// ClearQueue 清空指定集成的队列（平台管理员）
func (h *QueueHandler) ClearQueue(c *gin.Context) {
	provider := c.Param("provider")
	if provider == "" {
		response.BadRequest(c, "集成方不能为空")
		return
	}

	if err := database.GetRedisQueue().ClearQueue(provider); err != nil {
		response.ServerError(c, "清空队列失败")
		return
	}

	response.SuccessWithMessage(c, "队列已清空", nil)
}
