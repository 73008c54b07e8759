package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/dto"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/service"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/jwt"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult   *dto.TokenResponse
	loginErr      error
	registerErr   error
	refreshResult *dto.TokenResponse
	refreshErr    error
	refreshGot    string
	logoutErr     error
	logoutClaims  *jwt.Claims
	logoutToken   string
	meResult      *dto.UserResponse
	meErr         error
	changePassErr error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest, _ string) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Register(_ context.Context, req *dto.RegisterRequest, _ string) (*dto.UserResponse, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &dto.UserResponse{ID: "new-user", Username: req.Username, Role: model.RoleUser}, nil
}
func (m *mockAuthService) Refresh(_ context.Context, token string) (*dto.TokenResponse, error) {
	m.refreshGot = token
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims, token string) error {
	m.logoutClaims = claims
	m.logoutToken = token
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.meResult, m.meErr
}
func (m *mockAuthService) ChangePassword(_ context.Context, _ string, _ *dto.ChangePasswordRequest, _ string) error {
	return m.changePassErr
}

// ── Mock UserService ──

type mockUserService struct {
	listCalled bool
	deleteErr  error
}

func (m *mockUserService) List(_ context.Context, _ *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	m.listCalled = true
	return []dto.UserResponse{{ID: "u1"}}, 1, nil
}
func (m *mockUserService) GetByID(_ context.Context, id string) (*dto.UserResponse, error) {
	return &dto.UserResponse{ID: id}, nil
}
func (m *mockUserService) AssignRole(_ context.Context, _, targetID, role, _ string) (*dto.UserResponse, error) {
	return &dto.UserResponse{ID: targetID, Role: role}, nil
}
func (m *mockUserService) SetActive(_ context.Context, _, targetID string, active bool, _ string) (*dto.UserResponse, error) {
	return &dto.UserResponse{ID: targetID, IsActive: active}, nil
}
func (m *mockUserService) Delete(_ context.Context, _, _, _ string) error {
	return m.deleteErr
}

// ── Mock LabSessionService ──

type mockLabSessionService struct {
	viewerRole   string
	listPageSize int
	createCalled bool
	statusTo     string
	code         string
	err          error
}

func (m *mockLabSessionService) Create(_ context.Context, req *dto.CreateLabSessionRequest, _, _ string) (*dto.LabSessionResponse, error) {
	m.createCalled = true
	if m.err != nil {
		return nil, m.err
	}
	return &dto.LabSessionResponse{ID: "s1", Title: req.Title}, nil
}
func (m *mockLabSessionService) GetByID(_ context.Context, id, viewerRole string) (*dto.LabSessionResponse, error) {
	m.viewerRole = viewerRole
	if m.err != nil {
		return nil, m.err
	}
	return &dto.LabSessionResponse{ID: id}, nil
}
func (m *mockLabSessionService) List(_ context.Context, req *dto.LabSessionListRequest, viewerRole string) ([]dto.LabSessionResponse, int64, error) {
	m.viewerRole = viewerRole
	if req.PageSize == 0 {
		req.PageSize = m.listPageSize
	}
	return []dto.LabSessionResponse{{ID: "s1"}}, 25, m.err
}
func (m *mockLabSessionService) Update(_ context.Context, id string, _ *dto.UpdateLabSessionRequest, _, _ string) (*dto.LabSessionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.LabSessionResponse{ID: id}, nil
}
func (m *mockLabSessionService) Delete(_ context.Context, _, _, _ string) error { return m.err }
func (m *mockLabSessionService) ChangeStatus(_ context.Context, id, to, _, _ string) (*dto.LabSessionResponse, error) {
	m.statusTo = to
	if m.err != nil {
		return nil, m.err
	}
	return &dto.LabSessionResponse{ID: id, Status: to}, nil
}
func (m *mockLabSessionService) RegenerateCode(_ context.Context, _, code, _, _ string) (*dto.VerificationCodeResponse, error) {
	m.code = code
	if m.err != nil {
		return nil, m.err
	}
	if code == "" {
		code = "GEN123"
	}
	return &dto.VerificationCodeResponse{VerificationCode: code}, nil
}
func (m *mockLabSessionService) Stats(_ context.Context, _ string) (*dto.SessionStatsResponse, error) {
	return &dto.SessionStatsResponse{}, m.err
}
func (m *mockLabSessionService) RoomPlan(_ context.Context, _ *dto.RoomPlanRequest) ([]dto.RoomAssignmentResponse, error) {
	return nil, m.err
}

// ── Mock RegistrationService ──

type mockRegistrationService struct {
	notes  string
	called bool
	err    error
}

func (m *mockRegistrationService) Register(_ context.Context, userID, sessionID string, req *dto.CreateRegistrationRequest, _ string) (*dto.RegistrationResponse, error) {
	m.called = true
	m.notes = req.Notes
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RegistrationResponse{ID: "r1", UserID: userID, LabSessionID: sessionID, Notes: req.Notes, Status: model.RegistrationRegistered}, nil
}
func (m *mockRegistrationService) Cancel(context.Context, string, string, string) error { return m.err }
func (m *mockRegistrationService) ListMine(context.Context, string, *dto.PaginationRequest) ([]dto.RegistrationResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockRegistrationService) ListBySession(context.Context, string) ([]dto.RegistrationResponse, error) {
	return nil, m.err
}
func (m *mockRegistrationService) UpdateStatus(_ context.Context, _, id string, req *dto.UpdateRegistrationStatusRequest, _ string) (*dto.RegistrationResponse, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RegistrationResponse{ID: id, Status: req.Status}, nil
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	checkIn *dto.CheckInResponse
	err     error
}

func (m *mockAttendanceService) CheckIn(_ context.Context, _, _ string, _ *dto.CheckInRequest, _ string) (*dto.CheckInResponse, error) {
	return m.checkIn, m.err
}
func (m *mockAttendanceService) Submit(_ context.Context, _, entryID string, _ *dto.SubmitResultRequest, _ string) (*dto.EntryResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.EntryResponse{ID: entryID}, nil
}
func (m *mockAttendanceService) Grade(_ context.Context, _, entryID string, _ *dto.GradeRequest, _ string) (*dto.EntryResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.EntryResponse{ID: entryID}, nil
}
func (m *mockAttendanceService) ListMine(_ context.Context, _ string, _ *dto.PaginationRequest) ([]dto.EntryResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockAttendanceService) ListBySession(_ context.Context, _ string) ([]dto.EntryResponse, error) {
	return nil, m.err
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	unread  int64
	updated int64
}

func (m *mockNotificationService) Notify(context.Context, string, service.Notice)       {}
func (m *mockNotificationService) NotifyMany(context.Context, []string, service.Notice) {}
func (m *mockNotificationService) List(_ context.Context, _ string, _ *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	return nil, 0, nil
}
func (m *mockNotificationService) MarkRead(context.Context, string, string) error { return nil }
func (m *mockNotificationService) MarkAllRead(context.Context, string) (int64, error) {
	return m.updated, nil
}
func (m *mockNotificationService) UnreadCount(context.Context, string) (int64, error) {
	return m.unread, nil
}

// ── Mock Export / Calendar ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportRoster(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

type mockCalendarService struct {
	body string
	err  error
}

func (m *mockCalendarService) UserCalendar(_ context.Context, _ string) (string, error) {
	return m.body, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context, role string) {
	c.Set(CtxUserID, "test-user-id")
	c.Set(CtxRole, role)
	c.Set(CtxClaims, &jwt.Claims{UserID: "test-user-id", Role: role, TokenType: jwt.TokenTypeAccess})
}

// withAuth 模拟 JWTAuth 中间件注入身份
func withAuth(role string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c, role)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_SetsRefreshCookie(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900},
	}
	h := NewAuthHandler(mock, CookieConfig{MaxAge: 3600, Secure: true})

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := serve(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{Login: "alice", Password: "secret123"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	cookie := findCookie(w, "refresh_token")
	if cookie == nil {
		t.Fatal("expected refresh_token cookie to be set")
	}
	if cookie.Value != "refresh" || !cookie.HttpOnly || !cookie.Secure || cookie.MaxAge != 3600 {
		t.Errorf("unexpected cookie: %+v", cookie)
	}
	if cookie.Path != "/api/v1/auth" {
		t.Errorf("expected default cookie path, got %s", cookie.Path)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, CookieConfig{})

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := serve(r, "POST", "/auth/login", strings.NewReader("invalid json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
}

func TestAuthHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"InvalidCredentials", service.ErrInvalidCredentials, 401, 11001},
		{"AccountDisabled", service.ErrAccountDisabled, 403, 11004},
		{"Unavailable", apperr.Infrastructure(errors.New("db down")), 503, 50300},
		{"Unknown", errors.New("boom"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{loginErr: tt.err}, CookieConfig{})

			r := gin.New()
			r.POST("/auth/login", h.Login)
			w := serve(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{Login: "alice", Password: "x"}))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{registerErr: apperr.ErrUsernameTaken}, CookieConfig{})

	r := gin.New()
	r.POST("/auth/register", h.Register)
	w := serve(r, "POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "password123",
	}))

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11002 {
		t.Errorf("expected code 11002, got %d", resp.Code)
	}
}

func TestAuthHandler_Register_Created(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, CookieConfig{})

	r := gin.New()
	r.POST("/auth/register", h.Register)
	w := serve(r, "POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "password123",
	}))

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestAuthHandler_RefreshToken_FromCookie(t *testing.T) {
	mock := &mockAuthService{
		refreshResult: &dto.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh"},
	}
	h := NewAuthHandler(mock, CookieConfig{})

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.refreshGot != "cookie-refresh" {
		t.Errorf("expected token from cookie, got %q", mock.refreshGot)
	}
	if c := findCookie(w, "refresh_token"); c == nil || c.Value != "new-refresh" {
		t.Errorf("expected rotated cookie, got %+v", c)
	}
}

func TestAuthHandler_RefreshToken_BodyWinsOverCookie(t *testing.T) {
	mock := &mockAuthService{refreshResult: &dto.TokenResponse{RefreshToken: "r2"}}
	h := NewAuthHandler(mock, CookieConfig{})

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "body-refresh"}))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
	r.ServeHTTP(w, req)

	if mock.refreshGot != "body-refresh" {
		t.Errorf("expected body token, got %q", mock.refreshGot)
	}
}

func TestAuthHandler_RefreshToken_Missing(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, CookieConfig{})

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)
	w := serve(r, "POST", "/auth/refresh", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_RefreshToken_Invalid(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{refreshErr: service.ErrInvalidRefreshToken}, CookieConfig{})

	r := gin.New()
	r.POST("/auth/refresh", h.RefreshToken)
	w := serve(r, "POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "stale"}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock, CookieConfig{})

	r := gin.New()
	r.POST("/auth/logout", withAuth(model.RoleUser, h.Logout))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.logoutClaims == nil || mock.logoutClaims.UserID != "test-user-id" {
		t.Errorf("expected claims forwarded, got %+v", mock.logoutClaims)
	}
	if mock.logoutToken != "cookie-refresh" {
		t.Errorf("expected refresh token from cookie, got %q", mock.logoutToken)
	}
	if c := findCookie(w, "refresh_token"); c == nil || c.MaxAge >= 0 {
		t.Error("expected refresh_token cookie to be cleared")
	}
}

func TestAuthHandler_GetCurrentUser_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, CookieConfig{})

	r := gin.New()
	r.GET("/auth/me", h.GetCurrentUser)
	w := serve(r, "GET", "/auth/me", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_ChangePassword_WrongPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{changePassErr: service.ErrWrongPassword}, CookieConfig{})

	r := gin.New()
	r.PUT("/auth/password", withAuth(model.RoleUser, h.ChangePassword))
	w := serve(r, "PUT", "/auth/password", jsonBody(dto.ChangePasswordRequest{
		OldPassword: "oldpassword", NewPassword: "newpassword1",
	}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11005 {
		t.Errorf("expected code 11005, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// UserHandler Tests
// ═══════════════════════════════════════════════════════════

func TestUserHandler_List_RejectsUnknownRole(t *testing.T) {
	mock := &mockUserService{}
	h := NewUserHandler(mock)

	r := gin.New()
	r.GET("/users", withAuth(model.RoleAdmin, h.ListUsers))
	w := serve(r, "GET", "/users?role=guest", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if mock.listCalled {
		t.Error("service should not be called on invalid filter")
	}
}

func TestUserHandler_List_Paginated(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	r := gin.New()
	r.GET("/users", withAuth(model.RoleAdmin, h.ListUsers))
	w := serve(r, "GET", "/users?role=admin&page=1&page_size=10", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.Total != 1 || body.Data.Pagination.PageSize != 10 {
		t.Errorf("unexpected pagination: %+v", body.Data.Pagination)
	}
}

func TestUserHandler_SetActive_RequiresFlag(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	r := gin.New()
	r.PUT("/users/:id/active", withAuth(model.RoleAdmin, h.SetActive))
	w := serve(r, "PUT", "/users/u2/active", strings.NewReader(`{}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUserHandler_Delete_Self(t *testing.T) {
	h := NewUserHandler(&mockUserService{deleteErr: apperr.ErrSelfDelete})

	r := gin.New()
	r.DELETE("/users/:id", withAuth(model.RoleAdmin, h.DeleteUser))
	w := serve(r, "DELETE", "/users/test-user-id", nil)

	if resp := parseResponse(w); resp.Code != 12004 {
		t.Errorf("expected code 12004, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// LabSessionHandler Tests
// ═══════════════════════════════════════════════════════════

func createBody(code string) io.Reader {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return jsonBody(map[string]interface{}{
		"title":             "Optics",
		"start_time":        start,
		"end_time":          start.Add(2 * time.Hour),
		"max_participants":  20,
		"verification_code": code,
	})
}

func TestLabSessionHandler_Create_VerificationCodeFormat(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantStatus int
	}{
		{"自动生成", "", http.StatusCreated},
		{"合法签到码", "ABC123", http.StatusCreated},
		{"小写字母", "abc123", http.StatusBadRequest},
		{"长度不足", "AB12", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockLabSessionService{}
			h := NewLabSessionHandler(mock)

			r := gin.New()
			r.POST("/lab-sessions", withAuth(model.RoleAdmin, h.Create))
			w := serve(r, "POST", "/lab-sessions", createBody(tt.code))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if mock.createCalled != (tt.wantStatus == http.StatusCreated) {
				t.Errorf("unexpected createCalled=%v", mock.createCalled)
			}
		})
	}
}

func TestLabSessionHandler_List_UsesSettingPageSize(t *testing.T) {
	mock := &mockLabSessionService{listPageSize: 10}
	h := NewLabSessionHandler(mock)

	r := gin.New()
	r.GET("/lab-sessions", withAuth(model.RoleUser, h.List))
	w := serve(r, "GET", "/lab-sessions", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.viewerRole != model.RoleUser {
		t.Errorf("expected viewer role user, got %s", mock.viewerRole)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.PageSize != 10 || body.Data.Pagination.TotalPages != 3 {
		t.Errorf("unexpected pagination: %+v", body.Data.Pagination)
	}
}

func TestLabSessionHandler_List_InvalidStatus(t *testing.T) {
	h := NewLabSessionHandler(&mockLabSessionService{})

	r := gin.New()
	r.GET("/lab-sessions", withAuth(model.RoleUser, h.List))
	w := serve(r, "GET", "/lab-sessions?status=paused", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLabSessionHandler_StatusActions(t *testing.T) {
	mock := &mockLabSessionService{}
	h := NewLabSessionHandler(mock)

	r := gin.New()
	r.POST("/lab-sessions/:id/start", withAuth(model.RoleAdmin, h.Start))
	r.POST("/lab-sessions/:id/complete", withAuth(model.RoleAdmin, h.Complete))
	r.POST("/lab-sessions/:id/cancel", withAuth(model.RoleAdmin, h.Cancel))

	for action, want := range map[string]string{
		"start":    model.SessionOngoing,
		"complete": model.SessionCompleted,
		"cancel":   model.SessionCancelled,
	} {
		w := serve(r, "POST", "/lab-sessions/s1/"+action, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", action, w.Code)
		}
		if mock.statusTo != want {
			t.Errorf("%s: expected status %s, got %s", action, want, mock.statusTo)
		}
	}
}

func TestLabSessionHandler_RegenerateCode(t *testing.T) {
	mock := &mockLabSessionService{}
	h := NewLabSessionHandler(mock)

	r := gin.New()
	r.POST("/lab-sessions/:id/verification-code", withAuth(model.RoleAdmin, h.RegenerateCode))

	w := serve(r, "POST", "/lab-sessions/s1/verification-code", nil)
	if w.Code != http.StatusOK || mock.code != "" {
		t.Errorf("expected random code path, got status=%d code=%q", w.Code, mock.code)
	}

	w = serve(r, "POST", "/lab-sessions/s1/verification-code", jsonBody(dto.RegenerateCodeRequest{Code: "XYZ789"}))
	if w.Code != http.StatusOK || mock.code != "XYZ789" {
		t.Errorf("expected explicit code, got status=%d code=%q", w.Code, mock.code)
	}

	w = serve(r, "POST", "/lab-sessions/s1/verification-code", jsonBody(dto.RegenerateCodeRequest{Code: "bad"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed code, got %d", w.Code)
	}
}

func TestLabSessionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", apperr.NotFound("实验课", "s1"), 404, 10004},
		{"OptimisticLock", apperr.ErrOptimisticLock, 409, 10009},
		{"Transition", apperr.ErrInvalidStatusTransition, 422, 20002},
		{"Forbidden", apperr.ErrForbidden, 403, 10003},
		{"Unknown", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLabSessionHandler(&mockLabSessionService{err: tt.err})

			r := gin.New()
			r.GET("/lab-sessions/:id", withAuth(model.RoleAdmin, h.Get))
			w := serve(r, "GET", "/lab-sessions/s1", nil)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestLabSessionHandler_NotFoundCarriesEntity(t *testing.T) {
	h := NewLabSessionHandler(&mockLabSessionService{err: apperr.NotFound("实验课", "s1")})

	r := gin.New()
	r.GET("/lab-sessions/:id", withAuth(model.RoleUser, h.Get))
	w := serve(r, "GET", "/lab-sessions/s1", nil)

	resp := parseResponse(w)
	if resp.Details == nil || resp.Details.Kind != "not_found" || resp.Details.EntityID != "s1" {
		t.Errorf("unexpected details: %+v", resp.Details)
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestRegistrationHandler_Register_OptionalBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		chunked   bool
		wantNotes string
	}{
		{"NoBody", "", false, ""},
		{"EmptyChunked", "", true, ""},
		{"Chunked", `{"notes":"bring goggles"}`, true, "bring goggles"},
		{"Sized", `{"notes":"late by 5m"}`, false, "late by 5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRegistrationService{}
			h := NewRegistrationHandler(mock)
			r := gin.New()
			r.POST("/lab-sessions/:id/register", withAuth(model.RoleUser, h.Register))

			var body io.Reader
			if tt.body != "" || tt.chunked {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest("POST", "/lab-sessions/s1/register", body)
			req.Header.Set("Content-Type", "application/json")
			if tt.chunked {
				req.ContentLength = -1
				req.TransferEncoding = []string{"chunked"}
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
			}
			if mock.notes != tt.wantNotes {
				t.Errorf("expected notes %q, got %q", tt.wantNotes, mock.notes)
			}
		})
	}
}

func TestRegistrationHandler_Register_MalformedBody(t *testing.T) {
	mock := &mockRegistrationService{}
	h := NewRegistrationHandler(mock)
	r := gin.New()
	r.POST("/lab-sessions/:id/register", withAuth(model.RoleUser, h.Register))

	req := httptest.NewRequest("POST", "/lab-sessions/s1/register", strings.NewReader(`{"notes":`))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest || mock.called {
		t.Errorf("expected 400 without calling service, got %d called=%v", w.Code, mock.called)
	}
}

func TestRegistrationHandler_UpdateStatus_RejectsAttended(t *testing.T) {
	mock := &mockRegistrationService{}
	h := NewRegistrationHandler(mock)
	r := gin.New()
	r.PUT("/registrations/:id/status", withAuth(model.RoleAdmin, h.UpdateStatus))

	w := serve(r, "PUT", "/registrations/r1/status", jsonBody(dto.UpdateRegistrationStatusRequest{Status: model.RegistrationAttended}))
	if w.Code != http.StatusBadRequest || mock.called {
		t.Errorf("expected 400 for attended, got %d called=%v", w.Code, mock.called)
	}

	w = serve(r, "PUT", "/registrations/r1/status", jsonBody(dto.UpdateRegistrationStatusRequest{Status: model.RegistrationAbsent}))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for absent, got %d", w.Code)
	}

	mock.err = apperr.ErrRegistrationStatus
	w = serve(r, "PUT", "/registrations/r1/status", jsonBody(dto.UpdateRegistrationStatusRequest{Status: model.RegistrationRegistered}))
	if w.Code != http.StatusUnprocessableEntity || parseResponse(w).Code != 21007 {
		t.Errorf("expected 422/21007, got %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestAttendanceHandler_CheckIn_StatusByCreated(t *testing.T) {
	tests := []struct {
		name       string
		created    bool
		wantStatus int
	}{
		{"首次签到", true, http.StatusCreated},
		{"重复签到", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAttendanceService{checkIn: &dto.CheckInResponse{
				Entry:   dto.EntryResponse{ID: "e1"},
				Created: tt.created,
			}}
			h := NewAttendanceHandler(mock)

			r := gin.New()
			r.POST("/lab-sessions/:id/check-in", withAuth(model.RoleUser, h.CheckIn))
			w := serve(r, "POST", "/lab-sessions/s1/check-in", jsonBody(dto.CheckInRequest{VerificationCode: "ABC123"}))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestAttendanceHandler_CheckIn_WrongCode(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{err: apperr.ErrInvalidVerificationCode})

	r := gin.New()
	r.POST("/lab-sessions/:id/check-in", withAuth(model.RoleUser, h.CheckIn))
	w := serve(r, "POST", "/lab-sessions/s1/check-in", jsonBody(dto.CheckInRequest{VerificationCode: "ZZZ999"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 22003 {
		t.Errorf("expected code 22003, got %d", resp.Code)
	}
}

func TestAttendanceHandler_Grade_MissingScore(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{})

	r := gin.New()
	r.PUT("/entries/:id/grade", withAuth(model.RoleAdmin, h.Grade))
	w := serve(r, "PUT", "/entries/e1/grade", strings.NewReader(`{"comment":"ok"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// NotificationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler_Counts(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{unread: 3, updated: 2})

	r := gin.New()
	r.GET("/notifications/unread-count", withAuth(model.RoleUser, h.UnreadCount))
	r.PUT("/notifications/read-all", withAuth(model.RoleUser, h.MarkAllRead))

	w := serve(r, "GET", "/notifications/unread-count", nil)
	var unread struct {
		Data dto.UnreadCountResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &unread)
	if unread.Data.Count != 3 {
		t.Errorf("expected unread 3, got %d", unread.Data.Count)
	}

	w = serve(r, "PUT", "/notifications/read-all", nil)
	var all struct {
		Data dto.MarkAllReadResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &all)
	if all.Data.Updated != 2 {
		t.Errorf("expected updated 2, got %d", all.Data.Updated)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportRoster(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("excel content"), filename: "名单_Optics.xlsx"}
	h := NewExportHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.GET("/lab-sessions/:id/export", withAuth(model.RoleAdmin, h.ExportRoster))
	w := serve(r, "GET", "/lab-sessions/s1/export", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''") {
		t.Errorf("unexpected Content-Disposition: %s", cd)
	}
	if w.Body.String() != "excel content" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestExportHandler_ExportRoster_NotFound(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: apperr.NotFound("实验课", "s1")}, &mockCalendarService{})

	r := gin.New()
	r.GET("/lab-sessions/:id/export", withAuth(model.RoleAdmin, h.ExportRoster))
	w := serve(r, "GET", "/lab-sessions/s1/export", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExportHandler_Calendar(t *testing.T) {
	h := NewExportHandler(&mockExportService{}, &mockCalendarService{body: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"})

	r := gin.New()
	r.GET("/lab-sessions/calendar.ics", withAuth(model.RoleUser, h.Calendar))
	w := serve(r, "GET", "/lab-sessions/calendar.ics", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type: %s", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}
