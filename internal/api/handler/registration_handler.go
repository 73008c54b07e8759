package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

// RegistrationHandler 报名模块 HTTP 处理器
type RegistrationHandler struct {
	regSvc service.RegistrationService
}

// NewRegistrationHandler 创建 RegistrationHandler
func NewRegistrationHandler(regSvc service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{regSvc: regSvc}
}

// Register 报名实验课
// POST /api/v1/lab-sessions/:id/register
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.CreateRegistrationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reg, err := h.regSvc.Register(c.Request.Context(), userID, c.Param("id"), &req, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, reg)
}

// Cancel 取消本人报名
// DELETE /api/v1/registrations/:id
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.regSvc.Cancel(c.Request.Context(), userID, c.Param("id"), c.ClientIP()); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListMine 我的报名
// GET /api/v1/registrations/me
func (h *RegistrationHandler) ListMine(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	regs, total, err := h.regSvc.ListMine(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, regs, total, req.GetPage(), req.GetPageSize())
}

// ListBySession 实验课报名名单
// GET /api/v1/lab-sessions/:id/registrations
func (h *RegistrationHandler) ListBySession(c *gin.Context) {
	regs, err := h.regSvc.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, regs)
}

// UpdateStatus 管理员修改报名状态
// PUT /api/v1/registrations/:id/status
func (h *RegistrationHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateRegistrationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	reg, err := h.regSvc.UpdateStatus(c.Request.Context(), callerID, c.Param("id"), &req, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, reg)
}
