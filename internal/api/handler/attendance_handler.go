package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

// AttendanceHandler 签到与成绩 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// CheckIn 签到
// POST /api/v1/lab-sessions/:id/check-in
// 首次签到返回 201，重复签到返回 200 与已有记录
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.CheckIn(c.Request.Context(), userID, c.Param("id"), &req, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// Submit 提交实验结果
// POST /api/v1/entries/:id/submit
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req dto.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	entry, err := h.attendanceSvc.Submit(c.Request.Context(), userID, c.Param("id"), &req, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, entry)
}

// Grade 评分
// PUT /api/v1/entries/:id/grade
func (h *AttendanceHandler) Grade(c *gin.Context) {
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	graderID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	entry, err := h.attendanceSvc.Grade(c.Request.Context(), graderID, c.Param("id"), &req, c.ClientIP())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, entry)
}

// ListMine 我的实验记录
// GET /api/v1/entries/me
func (h *AttendanceHandler) ListMine(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	entries, total, err := h.attendanceSvc.ListMine(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, entries, total, req.GetPage(), req.GetPageSize())
}

// ListBySession 实验课的全部实验记录
// GET /api/v1/lab-sessions/:id/entries
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	entries, err := h.attendanceSvc.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, entries)
}
