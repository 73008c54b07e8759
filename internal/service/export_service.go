package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response。
// 工作簿包含两个 Sheet：「名单」逐行列出报名与签到情况，「统计」给出汇总。
type ExportService interface {
	// ExportRoster 导出实验课名单为 Excel，返回内容与建议文件名
	ExportRoster(ctx context.Context, sessionID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo     *repository.Repository
	settings SettingService
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, settings SettingService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, settings: settings, logger: logger}
}

var rosterHeaders = []string{"序号", "用户名", "姓名", "邮箱", "报名状态", "已确认", "签到时间", "提交状态", "成绩", "评语"}

var registrationStatusNames = map[string]string{
	model.RegistrationRegistered: "已报名",
	model.RegistrationAttended:   "已签到",
	model.RegistrationAbsent:     "缺席",
	model.RegistrationCancelled:  "已取消",
}

var submissionStatusNames = map[string]string{
	model.SubmissionNotSubmitted: "未提交",
	model.SubmissionSubmitted:    "已提交",
	model.SubmissionGraded:       "已评分",
}

func (s *exportService) ExportRoster(ctx context.Context, sessionID string) (*bytes.Buffer, string, error) {
	// 1. 查询实验课、报名与签到记录
	session, err := s.repo.LabSession.GetByID(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", apperr.NotFound("实验课", sessionID)
		}
		s.logger.Error("查询实验课失败", zap.Error(err))
		return nil, "", storageError(err)
	}

	regs, err := s.repo.Registration.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询报名列表失败", zap.Error(err))
		return nil, "", storageError(err)
	}
	entries, err := s.repo.Entry.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询签到记录失败", zap.Error(err))
		return nil, "", storageError(err)
	}

	entryByUser := make(map[string]*model.Entry, len(entries))
	for i := range entries {
		entryByUser[entries[i].UserID] = &entries[i]
	}

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "名单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	widths := []float64{6, 16, 14, 26, 10, 8, 22, 10, 8, 30}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	siteName := s.settings.String(ctx, SettingSiteName)
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s · %s（%s %s）",
		siteName, session.Title, session.Date.Format(dateLayout), session.Location))
	f.MergeCell(sheetName, "A1", cell(colName(len(rosterHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range rosterHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(rosterHeaders)-1), 2), headerStyle)

	// 数据行
	row := 3
	for i, reg := range regs {
		values := []interface{}{i + 1, "", "", "", registrationStatusNames[reg.Status], yesNo(reg.IsConfirmed), "-", "-", "-", ""}
		if reg.User != nil {
			values[1], values[2], values[3] = reg.User.Username, reg.User.FullName, reg.User.Email
		}
		if e, ok := entryByUser[reg.UserID]; ok {
			values[6] = formatTime(e.EntryTime)
			values[7] = submissionStatusNames[e.SubmissionStatus]
			if e.Score != nil {
				values[8] = *e.Score
			}
			values[9] = e.TeacherComment
		}
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), row), v)
		}
		row++
	}

	// 3. 统计 Sheet
	st := lifecycle.Summarize(session, regs, entries)
	statsSheet := "统计"
	f.NewSheet(statsSheet)
	f.SetColWidth(statsSheet, "A", "A", 16)
	f.SetColWidth(statsSheet, "B", "B", 12)
	stats := [][]interface{}{
		{"名额", session.MaxParticipants},
		{"已报名", st.Registered},
		{"已签到", st.Attended},
		{"缺席", st.Absent},
		{"已取消", st.Cancelled},
		{"剩余名额", st.Available},
		{"已提交", st.Submitted},
		{"已评分", st.Graded},
		{"完成率", fmt.Sprintf("%.1f%%", st.CompletionRate*100)},
		{"平均分", st.AverageScore},
	}
	for i, kv := range stats {
		f.SetCellValue(statsSheet, cell("A", i+1), kv[0])
		f.SetCellValue(statsSheet, cell("B", i+1), kv[1])
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("名单_%s_%s.xlsx", session.Title, session.Date.Format(dateLayout))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
