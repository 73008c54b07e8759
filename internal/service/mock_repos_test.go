package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/HUYVESEA0/Lab-Manager-sub000/config"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/repository"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// ── 内存数据库 ──
//
// 各 mock 共享同一个 mockDB，以便模拟 Preload 与级联删除。
// 读取方法返回副本，写入方法保存副本，行为与真实数据库一致：
// 调用方修改返回值而不调用 Update 时不会影响存储。

type mockDB struct {
	mu  sync.Mutex
	seq int

	users         map[string]*model.User
	sessions      map[string]*model.LabSession
	registrations map[string]*model.Registration
	entries       map[string]*model.Entry
	settings      map[string]*model.SystemSetting
	logs          []model.ActivityLog
	notifications []*model.Notification

	// 每门实验课的行锁获取次数
	rowLocks map[string]int

	// 注入故障
	failLogCreate          error
	failNotificationCreate error
}

func newMockDB() *mockDB {
	return &mockDB{
		users:         make(map[string]*model.User),
		sessions:      make(map[string]*model.LabSession),
		registrations: make(map[string]*model.Registration),
		entries:       make(map[string]*model.Entry),
		settings:      make(map[string]*model.SystemSetting),
		rowLocks:      make(map[string]int),
	}
}

// repository 组装未绑定数据库的 Repository 聚合（BeginTx 返回 nil 事务）
func (m *mockDB) repository() *repository.Repository {
	return &repository.Repository{
		User:          &mockUserRepo{db: m},
		LabSession:    &mockLabSessionRepo{db: m},
		Registration:  &mockRegistrationRepo{db: m},
		Entry:         &mockEntryRepo{db: m},
		SystemSetting: &mockSystemSettingRepo{db: m},
		ActivityLog:   &mockActivityLogRepo{db: m},
		Notification:  &mockNotificationRepo{db: m},
	}
}

// next 生成 ID 与单调递增的创建时间
func (m *mockDB) next(prefix string) (string, time.Time) {
	m.seq++
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%s-%03d", prefix, m.seq), base.Add(time.Duration(m.seq) * time.Second)
}

func (m *mockDB) sessionCopy(id string) *model.LabSession {
	if s, ok := m.sessions[id]; ok {
		c := *s
		return &c
	}
	return nil
}

func (m *mockDB) userCopy(id string) *model.User {
	if u, ok := m.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ── Mock UserRepository ──

type mockUserRepo struct{ db *mockDB }

func (r *mockUserRepo) Create(_ context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == user.Username || u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	id, at := r.db.next("user")
	if user.UserID == "" {
		user.UserID = id
	}
	if user.Version == 0 {
		user.Version = 1
	}
	user.CreatedAt, user.UpdatedAt = at, at
	c := *user
	r.db.users[user.UserID] = &c
	return nil
}

func (r *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u := r.db.userCopy(id); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *mockUserRepo) GetByLogin(_ context.Context, login string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == login || u.Email == login })
}

func (r *mockUserRepo) Update(_ context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.users[user.UserID]
	if !ok || stored.Version != user.Version {
		return apperr.ErrOptimisticLock.WithEntity(user.UserID)
	}
	user.Version++
	c := *user
	r.db.users[user.UserID] = &c
	return nil
}

func (r *mockUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (r *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.users, id)
	return nil
}

func (r *mockUserRepo) ListWithFilters(_ context.Context, filters *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.User
	for _, u := range r.db.users {
		if filters != nil {
			if filters.Role != "" && u.Role != filters.Role {
				continue
			}
			if filters.IsActive != nil && u.IsActive != *filters.IsActive {
				continue
			}
			if kw := strings.ToLower(filters.Keyword); kw != "" &&
				!strings.Contains(strings.ToLower(u.Username), kw) &&
				!strings.Contains(strings.ToLower(u.Email), kw) &&
				!strings.Contains(strings.ToLower(u.FullName), kw) {
				continue
			}
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockUserRepo) CountByRole(_ context.Context) (map[string]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int64)
	for _, u := range r.db.users {
		counts[u.Role]++
	}
	return counts, nil
}

// ── Mock LabSessionRepository ──

type mockLabSessionRepo struct{ db *mockDB }

func (r *mockLabSessionRepo) Create(_ context.Context, session *model.LabSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	id, at := r.db.next("ls")
	if session.LabSessionID == "" {
		session.LabSessionID = id
	}
	if session.Version == 0 {
		session.Version = 1
	}
	if session.Status == "" {
		session.Status = model.SessionScheduled
	}
	session.CreatedAt, session.UpdatedAt = at, at
	c := *session
	r.db.sessions[session.LabSessionID] = &c
	return nil
}

func (r *mockLabSessionRepo) GetByID(_ context.Context, id string) (*model.LabSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s := r.db.sessionCopy(id); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockLabSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.LabSession, error) {
	r.db.mu.Lock()
	r.db.rowLocks[id]++
	r.db.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *mockLabSessionRepo) Update(_ context.Context, session *model.LabSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.sessions[session.LabSessionID]
	if !ok || stored.Version != session.Version {
		return apperr.ErrOptimisticLock.WithEntity(session.LabSessionID)
	}
	session.Version++
	c := *session
	r.db.sessions[session.LabSessionID] = &c
	return nil
}

func (r *mockLabSessionRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	for rid, reg := range r.db.registrations {
		if reg.LabSessionID == id {
			delete(r.db.registrations, rid)
		}
	}
	for eid, e := range r.db.entries {
		if e.LabSessionID == id {
			delete(r.db.entries, eid)
		}
	}
	return nil
}

func (r *mockLabSessionRepo) List(_ context.Context, filters *repository.LabSessionListFilters, offset, limit int) ([]model.LabSession, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.LabSession
	for _, s := range r.db.sessions {
		if filters != nil {
			if filters.Status != "" && s.Status != filters.Status {
				continue
			}
			if filters.ActiveOnly && !s.IsActive {
				continue
			}
			if filters.Keyword != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(filters.Keyword)) {
				continue
			}
			if filters.From != nil && s.StartTime.Before(*filters.From) {
				continue
			}
			if filters.To != nil && !s.StartTime.Before(*filters.To) {
				continue
			}
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockLabSessionRepo) ListInRange(_ context.Context, from, to *time.Time) ([]model.LabSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.LabSession
	for _, s := range r.db.sessions {
		if from != nil && s.StartTime.Before(*from) {
			continue
		}
		if to != nil && !s.StartTime.Before(*to) {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (r *mockLabSessionRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int64)
	for _, s := range r.db.sessions {
		counts[s.Status]++
	}
	return counts, nil
}

// ── Mock RegistrationRepository ──

type mockRegistrationRepo struct{ db *mockDB }

func (r *mockRegistrationRepo) Create(_ context.Context, reg *model.Registration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.registrations {
		if existing.UserID == reg.UserID && existing.LabSessionID == reg.LabSessionID && existing.IsActive() {
			return gorm.ErrDuplicatedKey
		}
	}
	id, at := r.db.next("reg")
	if reg.RegistrationID == "" {
		reg.RegistrationID = id
	}
	reg.CreatedAt, reg.UpdatedAt = at, at
	c := *reg
	c.User, c.LabSession = nil, nil
	r.db.registrations[reg.RegistrationID] = &c
	return nil
}

func (r *mockRegistrationRepo) GetByID(_ context.Context, id string) (*model.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reg, ok := r.db.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *reg
	c.LabSession = r.db.sessionCopy(reg.LabSessionID)
	return &c, nil
}

func (r *mockRegistrationRepo) GetActive(_ context.Context, userID, labSessionID string) (*model.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, reg := range r.db.registrations {
		if reg.UserID == userID && reg.LabSessionID == labSessionID && reg.IsActive() {
			c := *reg
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockRegistrationRepo) CountActive(_ context.Context, labSessionID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, reg := range r.db.registrations {
		if reg.LabSessionID == labSessionID && reg.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *mockRegistrationRepo) Update(_ context.Context, reg *model.Registration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.registrations[reg.RegistrationID]
	if !ok {
		return nil
	}
	stored.Notes = reg.Notes
	stored.Status = reg.Status
	stored.IsConfirmed = reg.IsConfirmed
	stored.ConfirmedAt = reg.ConfirmedAt
	stored.UpdatedBy = reg.UpdatedBy
	return nil
}

func (r *mockRegistrationRepo) sorted(match func(*model.Registration) bool) []model.Registration {
	var result []model.Registration
	for _, reg := range r.db.registrations {
		if match(reg) {
			result = append(result, *reg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (r *mockRegistrationRepo) ListBySession(_ context.Context, labSessionID string) ([]model.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := r.sorted(func(reg *model.Registration) bool { return reg.LabSessionID == labSessionID })
	sort.SliceStable(result, func(i, j int) bool { return result[i].Priority < result[j].Priority })
	for i := range result {
		result[i].User = r.db.userCopy(result[i].UserID)
	}
	return result, nil
}

func (r *mockRegistrationRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Registration, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := r.sorted(func(reg *model.Registration) bool { return reg.UserID == userID })
	// created_at DESC
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	page := paginate(result, offset, limit)
	for i := range page {
		page[i].LabSession = r.db.sessionCopy(page[i].LabSessionID)
	}
	return page, int64(len(result)), nil
}

func (r *mockRegistrationRepo) CountByStatus(_ context.Context, userID string) (map[string]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int64)
	for _, reg := range r.db.registrations {
		if userID == "" || reg.UserID == userID {
			counts[reg.Status]++
		}
	}
	return counts, nil
}

// ── Mock EntryRepository ──

type mockEntryRepo struct{ db *mockDB }

func (r *mockEntryRepo) Create(_ context.Context, entry *model.Entry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.entries {
		if e.UserID == entry.UserID && e.LabSessionID == entry.LabSessionID {
			return gorm.ErrDuplicatedKey
		}
	}
	id, at := r.db.next("entry")
	if entry.EntryID == "" {
		entry.EntryID = id
	}
	entry.CreatedAt, entry.UpdatedAt = at, at
	c := *entry
	c.User, c.LabSession = nil, nil
	r.db.entries[entry.EntryID] = &c
	return nil
}

func (r *mockEntryRepo) GetByID(_ context.Context, id string) (*model.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if e, ok := r.db.entries[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockEntryRepo) GetByUserAndSession(_ context.Context, userID, labSessionID string) (*model.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.entries {
		if e.UserID == userID && e.LabSessionID == labSessionID {
			c := *e
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockEntryRepo) Update(_ context.Context, entry *model.Entry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.entries[entry.EntryID]; ok {
		c := *entry
		c.User, c.LabSession = nil, nil
		r.db.entries[entry.EntryID] = &c
	}
	return nil
}

func (r *mockEntryRepo) Close(_ context.Context, entry *model.Entry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.entries[entry.EntryID]
	if !ok || stored.ExitTime != nil {
		return apperr.ErrSessionAlreadyEnded.WithEntity(entry.EntryID)
	}
	stored.ExitTime = entry.ExitTime
	stored.Result = entry.Result
	stored.SubmissionStatus = entry.SubmissionStatus
	return nil
}

func (r *mockEntryRepo) ListBySession(_ context.Context, labSessionID string) ([]model.Entry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.Entry
	for _, e := range r.db.entries {
		if e.LabSessionID == labSessionID {
			c := *e
			c.User = r.db.userCopy(e.UserID)
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EntryTime.Before(result[j].EntryTime) })
	return result, nil
}

func (r *mockEntryRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Entry, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.Entry
	for _, e := range r.db.entries {
		if e.UserID == userID {
			c := *e
			c.LabSession = r.db.sessionCopy(e.LabSessionID)
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EntryTime.After(result[j].EntryTime) })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockEntryRepo) CountBySubmissionStatus(_ context.Context) (map[string]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := make(map[string]int64)
	for _, e := range r.db.entries {
		counts[e.SubmissionStatus]++
	}
	return counts, nil
}

// ── Mock SystemSettingRepository ──

type mockSystemSettingRepo struct{ db *mockDB }

func (r *mockSystemSettingRepo) Get(_ context.Context, key string) (*model.SystemSetting, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s, ok := r.db.settings[key]; ok {
		c := *s
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSystemSettingRepo) List(_ context.Context) ([]model.SystemSetting, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.SystemSetting
	for _, s := range r.db.settings {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (r *mockSystemSettingRepo) Upsert(_ context.Context, settings []model.SystemSetting) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range settings {
		c := settings[i]
		r.db.settings[c.Key] = &c
	}
	return nil
}

func (r *mockSystemSettingRepo) DeleteAll(_ context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.settings = make(map[string]*model.SystemSetting)
	return nil
}

// ── Mock ActivityLogRepository ──

type mockActivityLogRepo struct{ db *mockDB }

func (r *mockActivityLogRepo) Create(_ context.Context, log *model.ActivityLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failLogCreate != nil {
		return r.db.failLogCreate
	}
	id, at := r.db.next("log")
	log.ActivityLogID = id
	log.CreatedAt = at
	r.db.logs = append(r.db.logs, *log)
	return nil
}

func (r *mockActivityLogRepo) List(_ context.Context, filters *repository.ActivityLogFilters, offset, limit int) ([]model.ActivityLog, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.ActivityLog
	for i := len(r.db.logs) - 1; i >= 0; i-- {
		l := r.db.logs[i]
		if filters != nil {
			if filters.Action != "" && l.Action != filters.Action {
				continue
			}
			if filters.ActorID != "" && (l.ActorID == nil || *l.ActorID != filters.ActorID) {
				continue
			}
		}
		result = append(result, l)
	}
	return paginate(result, offset, limit), int64(len(result)), nil
}

// actions 返回已记录的操作名（按写入顺序）
func (m *mockDB) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ db *mockDB }

func (r *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failNotificationCreate != nil {
		return r.db.failNotificationCreate
	}
	id, at := r.db.next("ntf")
	n.NotificationID = id
	n.CreatedAt = at
	c := *n
	r.db.notifications = append(r.db.notifications, &c)
	return nil
}

func (r *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var result []model.Notification
	for i := len(r.db.notifications) - 1; i >= 0; i-- {
		n := r.db.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, n := range r.db.notifications {
		if n.NotificationID == id && n.UserID == userID {
			if !n.IsRead {
				now := time.Now()
				n.IsRead, n.ReadAt = true, &now
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var count int64
	now := time.Now()
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &now
			count++
		}
	}
	return count, nil
}

func (r *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var count int64
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// notificationsFor 返回某用户收到的通知标题（按发送顺序）
func (m *mockDB) notificationsFor(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n.Title)
		}
	}
	return out
}

// ── Mock Cache ──

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	hits    int
	failGet error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *mockCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet != nil {
		return false, c.failGet
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *mockCache) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *mockCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mockCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *mockCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	mu   sync.Mutex
	jtis map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{jtis: make(map[string]time.Duration)}
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = ttl
	return nil
}

func (b *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jtis[jti]
	return ok, nil
}

// ── 测试环境 ──

type testEnv struct {
	db        *mockDB
	repo      *repository.Repository
	cfg       *config.Config
	cache     *mockCache
	activity  ActivityService
	settings  SettingService
	notifier  NotificationService
	dashboard DashboardService
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, BaseURL: "http://lab.test"},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Lab: config.LabConfig{
			Rooms:        []string{"Lab A", "Lab B"},
			CheckInGrace: 15 * time.Minute,
			Timezone:     "UTC",
		},
	}
}

func newTestEnv() *testEnv {
	db := newMockDB()
	repo := db.repository()
	cfg := testConfig()
	logger := zap.NewNop()
	cache := newMockCache()

	activity := NewActivityService(repo, logger)
	settings := NewSettingService(cfg, repo, activity, logger)
	notifier := NewNotificationService(repo, logger)
	dashboard := NewDashboardService(repo, settings, cache, logger)

	return &testEnv{
		db:        db,
		repo:      repo,
		cfg:       cfg,
		cache:     cache,
		activity:  activity,
		settings:  settings,
		notifier:  notifier,
		dashboard: dashboard,
	}
}

// ── 数据构造辅助 ──

func (e *testEnv) addUser(username, role string) *model.User {
	u := &model.User{
		Username: username,
		Email:    username + "@lab.test",
		FullName: strings.ToUpper(username[:1]) + username[1:],
		Role:     role,
		IsActive: true,
	}
	_ = e.repo.User.Create(context.Background(), u)
	return u
}

// addSession 创建一门 [start, start+2h) 的实验课
func (e *testEnv) addSession(title string, start time.Time, capacity int, mutate ...func(*model.LabSession)) *model.LabSession {
	s := &model.LabSession{
		Title:            title,
		Date:             time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:        start,
		EndTime:          start.Add(2 * time.Hour),
		Location:         "Room 101",
		MaxParticipants:  capacity,
		IsActive:         true,
		VerificationCode: "AB12CD",
		Status:           model.SessionScheduled,
		AutoApprove:      true,
	}
	for _, fn := range mutate {
		fn(s)
	}
	_ = e.repo.LabSession.Create(context.Background(), s)
	return s
}

// setStatus 直接修改存储中的实验课状态
func (e *testEnv) setStatus(id, status string) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.db.sessions[id].Status = status
}
