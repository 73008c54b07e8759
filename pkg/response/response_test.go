package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFromError_BusinessError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, apperr.ErrSessionFull.WithEntity("sess-1"))

	if w.Code != http.StatusConflict {
		t.Fatalf("期望 409，实际=%d", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Code != apperr.ErrSessionFull.Code {
		t.Errorf("期望 code=%d，实际=%d", apperr.ErrSessionFull.Code, resp.Code)
	}
	if resp.Details == nil || resp.Details.EntityID != "sess-1" {
		t.Errorf("期望 details.entity_id=sess-1，实际=%+v", resp.Details)
	}
}

func TestFromError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("期望 500，实际=%d", w.Code)
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:     http.StatusBadRequest,
		apperr.KindAuthorization:  http.StatusForbidden,
		apperr.KindNotFound:       http.StatusNotFound,
		apperr.KindConflict:       http.StatusConflict,
		apperr.KindState:          http.StatusUnprocessableEntity,
		apperr.KindInfrastructure: http.StatusServiceUnavailable,
		"":                        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusOf(kind); got != want {
			t.Errorf("StatusOf(%q)=%d，期望 %d", kind, got, want)
		}
	}
}

func TestOKPage_TotalPages(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OKPage(c, []int{1, 2}, 21, 1, 10)

	var resp struct {
		Data PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Pagination.TotalPages != 3 {
		t.Errorf("期望 total_pages=3，实际=%d", resp.Data.Pagination.TotalPages)
	}
}
