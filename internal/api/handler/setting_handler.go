package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

// SettingHandler 系统设置 HTTP 处理器
type SettingHandler struct {
	settingSvc service.SettingService
}

// NewSettingHandler 创建 SettingHandler
func NewSettingHandler(settingSvc service.SettingService) *SettingHandler {
	return &SettingHandler{settingSvc: settingSvc}
}

// List 获取全部设置
// GET /api/v1/settings
func (h *SettingHandler) List(c *gin.Context) {
	settings, err := h.settingSvc.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, settings)
}

// Update 修改单个设置
// PUT /api/v1/settings/:key
func (h *SettingHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	setting, err := h.settingSvc.Update(c.Request.Context(), c.Param("key"), req.Value, callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, setting)
}

// Reset 恢复默认设置
// POST /api/v1/settings/reset
func (h *SettingHandler) Reset(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.settingSvc.Reset(c.Request.Context(), callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, settings)
}
