package handlers

import (
	"fmt"

	"firmsync/internal/services"
	"firmsync/pkg/jwt"
	"firmsync/pkg/pagination"
	"firmsync/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// IntegrationHandler 集成处理器
type IntegrationHandler struct {
	integrationService *services.IntegrationService
	syncService        *services.SyncService
	healthCheck        *services.IntegrationHealthCheck
}

// NewIntegrationHandler 创建集成处理器
func NewIntegrationHandler(
	integrationService *services.IntegrationService,
	syncService *services.SyncService,
	healthCheck *services.IntegrationHealthCheck,
) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integrationService,
		syncService:        syncService,
		healthCheck:        healthCheck,
	}
}

// List 获取当前租户的集成列表
func (h *IntegrationHandler) List(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	params := pagination.ParsePageParams(c)
	integrations, total, err := h.integrationService.List(userClaims.CurrentTenantID, params.GetOffset(), params.GetLimit())
	if err != nil {
		response.ServerError(c, "获取集成列表失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, total)
	response.SuccessWithPage(c, integrations, pageInfo)
}

// Get 获取集成详情
func (h *IntegrationHandler) Get(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	integration, err := h.integrationService.Get(userClaims.CurrentTenantID, provider)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, integration)
}

// Connect 连接集成
func (h *IntegrationHandler) Connect(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	var req services.ConnectIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 解析验证错误，提供更友好的提示
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			errorMsg := "参数验证失败"
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "Provider":
					errorMsg = "集成方不能为空"
				case "AccessToken":
					errorMsg = "访问令牌不能为空"
				default:
					errorMsg = fmt.Sprintf("字段 %s 验证失败", fieldErr.Field())
				}
				break // 只返回第一个错误
			}
			response.BadRequest(c, errorMsg)
			return
		}
		response.BadRequest(c, "请求参数格式错误")
		return
	}

	integration, err := h.integrationService.Connect(userClaims.CurrentTenantID, req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "集成连接成功", integration)
}

// Update 更新集成同步配置
func (h *IntegrationHandler) Update(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")

	var req services.UpdateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数格式错误: "+err.Error())
		return
	}

	integration, err := h.integrationService.Update(userClaims.CurrentTenantID, provider, req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "集成更新成功", integration)
}

// Disconnect 断开集成
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	if err := h.integrationService.Disconnect(userClaims.CurrentTenantID, provider); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "集成已断开", nil)
}

// TriggerSync 实时触发一次同步
// 同步编排内部消化所有错误，结果统一以200返回，失败体现在 success/errors 字段
func (h *IntegrationHandler) TriggerSync(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	if provider == "" {
		response.BadRequest(c, "集成方不能为空")
		return
	}

	engine := services.GetGlobalSyncEngine()
	if engine == nil {
		response.ServerError(c, "同步引擎未启动")
		return
	}

	result := engine.TriggerRealTimeSync(c.Request.Context(), userClaims.CurrentTenantID, provider)
	response.Success(c, result)
}

// GetSyncStatus 查询最近一次同步结果
func (h *IntegrationHandler) GetSyncStatus(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	status, err := h.syncService.GetSyncStatus(userClaims.CurrentTenantID, provider)
	if err != nil {
		response.ServerError(c, "获取同步状态失败")
		return
	}
	if status == nil {
		response.NotFound(c, "暂无同步记录")
		return
	}

	response.Success(c, status)
}

// GetSyncLogs 分页查询同步历史
func (h *IntegrationHandler) GetSyncLogs(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	params := pagination.ParsePageParams(c)

	logs, total, err := h.syncService.GetSyncLogsPage(userClaims.CurrentTenantID, provider, params.GetOffset(), params.GetLimit())
	if err != nil {
		response.ServerError(c, "获取同步历史失败")
		return
	}

	pageInfo := pagination.NewPageInfo(params.Page, params.PageSize, total)
	response.SuccessWithPage(c, logs, pageInfo)
}

// CheckHealth 检查单个集成的健康状态
func (h *IntegrationHandler) CheckHealth(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	provider := c.Param("provider")
	result := h.healthCheck.CheckIntegrationHealth(c.Request.Context(), userClaims.CurrentTenantID, provider)
	response.Success(c, result)
}

// CheckAllHealth 检查当前租户所有已连接集成的健康状态
func (h *IntegrationHandler) CheckAllHealth(c *gin.Context) {
	claims, _ := c.Get("claims")
	userClaims := claims.(*jwt.JWTClaims)

	results := h.healthCheck.CheckAllIntegrations(c.Request.Context(), userClaims.CurrentTenantID)
	response.Success(c, results)
}
