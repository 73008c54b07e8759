package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

// LabSessionHandler 实验课模块 HTTP 处理器
type LabSessionHandler struct {
	sessionSvc service.LabSessionService
}

// NewLabSessionHandler 创建 LabSessionHandler
func NewLabSessionHandler(sessionSvc service.LabSessionService) *LabSessionHandler {
	return &LabSessionHandler{sessionSvc: sessionSvc}
}

// ────────────────────── 查询 ──────────────────────

// List 实验课列表
// GET /api/v1/lab-sessions
func (h *LabSessionHandler) List(c *gin.Context) {
	var req dto.LabSessionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c)
		return
	}

	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	sessions, total, err := h.sessionSvc.List(c.Request.Context(), &req, role)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, sessions, total, req.GetPage(), req.GetPageSize())
}

// Get 实验课详情
// GET /api/v1/lab-sessions/:id
func (h *LabSessionHandler) Get(c *gin.Context) {
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.GetByID(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, session)
}

// Stats 实验课统计
// GET /api/v1/lab-sessions/:id/stats
func (h *LabSessionHandler) Stats(c *gin.Context) {
	stats, err := h.sessionSvc.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, stats)
}

// RoomPlan 教室排布
// GET /api/v1/lab-sessions/room-plan
func (h *LabSessionHandler) RoomPlan(c *gin.Context) {
	var req dto.RoomPlanRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c)
		return
	}

	plan, err := h.sessionSvc.RoomPlan(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, plan)
}

// ────────────────────── 管理 ──────────────────────

// Create 创建实验课
// POST /api/v1/lab-sessions
func (h *LabSessionHandler) Create(c *gin.Context) {
	var req dto.CreateLabSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Create(c.Request.Context(), &req, callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, session)
}

// Update 更新实验课
// PUT /api/v1/lab-sessions/:id
func (h *LabSessionHandler) Update(c *gin.Context) {
	var req dto.UpdateLabSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, session)
}

// Delete 删除实验课（级联删除报名与记录）
// DELETE /api/v1/lab-sessions/:id
func (h *LabSessionHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.sessionSvc.Delete(c.Request.Context(), c.Param("id"), callerID, c.ClientIP()); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// Start 开始实验课
// POST /api/v1/lab-sessions/:id/start
func (h *LabSessionHandler) Start(c *gin.Context) {
	h.changeStatus(c, model.SessionOngoing)
}

// Complete 结束实验课
// POST /api/v1/lab-sessions/:id/complete
func (h *LabSessionHandler) Complete(c *gin.Context) {
	h.changeStatus(c, model.SessionCompleted)
}

// Cancel 取消实验课
// POST /api/v1/lab-sessions/:id/cancel
func (h *LabSessionHandler) Cancel(c *gin.Context) {
	h.changeStatus(c, model.SessionCancelled)
}

// RegenerateCode 重新生成签到码，可指定新码
// POST /api/v1/lab-sessions/:id/verification-code
func (h *LabSessionHandler) RegenerateCode(c *gin.Context) {
	var req dto.RegenerateCodeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.sessionSvc.RegenerateCode(c.Request.Context(), c.Param("id"), req.Code, callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// ── 内部辅助方法 ──

func (h *LabSessionHandler) changeStatus(c *gin.Context, to string) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.ChangeStatus(c.Request.Context(), c.Param("id"), to, callerID, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, session)
}
