package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

// ActivityHandler 操作日志 HTTP 处理器
type ActivityHandler struct {
	activitySvc service.ActivityService
}

// NewActivityHandler 创建 ActivityHandler
func NewActivityHandler(activitySvc service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc}
}

// List 操作日志列表
// GET /api/v1/activity-logs
func (h *ActivityHandler) List(c *gin.Context) {
	var req dto.ActivityLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c)
		return
	}

	logs, total, err := h.activitySvc.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}
