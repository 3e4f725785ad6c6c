package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
)

const testSecret = "test-secret"

// ── Mock UserStore ──

type mockUsers struct {
	users map[string]*domain.User
}

func (m *mockUsers) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (m *mockUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

// ── Mock ParticipationService ──

type mockService struct {
	err        error
	lastFilter domain.VolunteerShiftFilter
	lastPage   domain.Page
	lastActor  int64
	lastReview float64
	lastOut    participation.Transition
}

func (m *mockService) record(id int64) (*domain.VolunteerShift, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.VolunteerShift{ID: id, Status: domain.VolunteerShiftApproved}, nil
}

func (m *mockService) SignUp(_ context.Context, accountID, shiftID int64, _ bool) (*domain.VolunteerShift, error) {
	m.lastActor = accountID
	return m.record(shiftID)
}

func (m *mockService) Decide(_ context.Context, recordID, actorID int64, outcome participation.Transition) (*domain.VolunteerShift, error) {
	m.lastActor, m.lastOut = actorID, outcome
	return m.record(recordID)
}

func (m *mockService) Withdraw(_ context.Context, recordID, actorID int64, outcome participation.Transition) (*domain.VolunteerShift, error) {
	m.lastActor, m.lastOut = actorID, outcome
	return m.record(recordID)
}

func (m *mockService) Remove(_ context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	m.lastActor = actorID
	return m.record(recordID)
}

func (m *mockService) CheckIn(_ context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	m.lastActor = actorID
	return m.record(recordID)
}

func (m *mockService) CheckOut(_ context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	m.lastActor = actorID
	return m.record(recordID)
}

func (m *mockService) Review(_ context.Context, recordID, actorID int64, completion float64, _ *string) (*domain.VolunteerShift, error) {
	m.lastActor, m.lastReview = actorID, completion
	return m.record(recordID)
}

func (m *mockService) RunReconciliationSweep(context.Context) (int, error) {
	return 3, m.err
}

func (m *mockService) GetShift(_ context.Context, shiftID int64) (*domain.Shift, error) {
	if m.err != nil {
		return nil, m.err
	}
	start := time.Now().Add(time.Hour)
	return &domain.Shift{ID: shiftID, StartTime: start, EndTime: start.Add(2 * time.Hour)}, nil
}

func (m *mockService) ViewParticipation(_ context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	m.lastActor = actorID
	return m.record(recordID)
}

func (m *mockService) ListParticipation(_ context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error) {
	m.lastFilter, m.lastPage = filter, page
	return []*domain.VolunteerShift{}, m.err
}

func (m *mockService) ListProfileSkills(context.Context, int64) ([]domain.ProfileSkill, error) {
	return nil, m.err
}

func (m *mockService) RebuildProfileSkills(_ context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	return []domain.ProfileSkill{{ProfileID: profileID, SkillID: 1, Hours: 2}}, m.err
}

func (m *mockService) CheckProfileSkills(context.Context, int64) ([]domain.SkillDrift, error) {
	return nil, m.err
}

// ── 测试辅助 ──

func setupHandler(t *testing.T) (*Handler, *mockService) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Expiration = 1

	hash, err := bcrypt.GenerateFromPassword([]byte("volunteer"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUsers{users: map[string]*domain.User{
		"zhangsan": {ID: 7, Username: "zhangsan", PasswordHash: string(hash), Role: domain.RoleVolunteer, IsActive: true},
	}}

	svc := &mockService{}
	h, err := NewHandler(cfg, users, svc, zap.NewNop())
	require.NoError(t, err)
	h.RegisterRoutes()
	return h, svc
}

func tokenFor(t *testing.T, id int64, role domain.Role) *http.Cookie {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Subject:   strconv.FormatInt(id, 10),
		},
	})
	ss, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return &http.Cookie{Name: tokenCookieName, Value: ss}
}

func do(t *testing.T, h *Handler, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

// ════════════════════════════════════════════════════════════
// 认证
// ════════════════════════════════════════════════════════════

func TestAuth_RequiresCookie(t *testing.T) {
	h, _ := setupHandler(t)

	rec, resp := do(t, h, http.MethodGet, "/participations/1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = do(t, h, http.MethodGet, "/participations/1", nil, &http.Cookie{Name: tokenCookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	h, _ := setupHandler(t)

	rec, resp := do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan", "password": "volunteer"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, tokenCookieName, rec.Result().Cookies()[0].Name)

	rec, _ = do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ════════════════════════════════════════════════════════════
// 错误映射
// ════════════════════════════════════════════════════════════

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrVolunteerShiftNotFound, http.StatusNotFound, "VolunteerShiftNotFound"},
		{domain.ErrNotManager, http.StatusForbidden, "NotManager"},
		{domain.ErrShiftNotStarted, http.StatusUnprocessableEntity, "ShiftNotStarted"},
		{domain.ErrShiftIsFull, http.StatusConflict, "ShiftIsFull"},
		{domain.ErrVolunteerShiftModified, http.StatusConflict, "VolunteerShiftModified"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h, svc := setupHandler(t)
			svc.err = tt.err

			rec, resp := do(t, h, http.MethodPut, "/participations/5/check-in", nil, tokenFor(t, 7, domain.RoleVolunteer))
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

// ════════════════════════════════════════════════════════════
// 参数校验
// ════════════════════════════════════════════════════════════

func TestDecide_Validation(t *testing.T) {
	h, svc := setupHandler(t)
	cookie := tokenFor(t, 100, domain.RoleOrganizer)

	rec, _ := do(t, h, http.MethodPost, "/participations/5/decision", map[string]string{"outcome": "leave"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := do(t, h, http.MethodPost, "/participations/5/decision", map[string]string{"outcome": "approve"}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(100), svc.lastActor)
	assert.Equal(t, participation.TransitionApprove, svc.lastOut)

	rec, _ = do(t, h, http.MethodPost, "/participations/abc/decision", map[string]string{"outcome": "approve"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReview_Validation(t *testing.T) {
	h, svc := setupHandler(t)
	cookie := tokenFor(t, 100, domain.RoleOrganizer)

	rec, _ := do(t, h, http.MethodPost, "/participations/5/review", map[string]any{"completion": 150}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/participations/5/review", map[string]any{}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/participations/5/review", map[string]any{"completion": 0}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.lastReview)

	rec, _ = do(t, h, http.MethodPost, "/participations/5/review", map[string]any{"completion": 80, "reviewNote": "good"}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 80.0, svc.lastReview)
}

func TestListParticipations(t *testing.T) {
	h, svc := setupHandler(t)

	rec, _ := do(t, h, http.MethodGet, "/participations?status=pending,approved&shiftId=3&after=10&limit=5", nil, tokenFor(t, 100, domain.RoleOrganizer))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastFilter.ShiftID)
	assert.Equal(t, int64(3), *svc.lastFilter.ShiftID)
	assert.Nil(t, svc.lastFilter.AccountID)
	assert.Equal(t, []domain.VolunteerShiftStatus{domain.VolunteerShiftPending, domain.VolunteerShiftApproved}, svc.lastFilter.Statuses)
	assert.Equal(t, domain.Page{After: 10, Limit: 5}, svc.lastPage)

	// 志愿者只能看到自己的记录
	rec, _ = do(t, h, http.MethodGet, "/participations?accountId=99", nil, tokenFor(t, 7, domain.RoleVolunteer))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastFilter.AccountID)
	assert.Equal(t, int64(7), *svc.lastFilter.AccountID)
	assert.Equal(t, defaultPageLimit, svc.lastPage.Limit)

	for _, bad := range []string{"status=unknown", "limit=0", "limit=101", "after=-1", "shiftId=x"} {
		rec, _ = do(t, h, http.MethodGet, "/participations?"+bad, nil, tokenFor(t, 100, domain.RoleOrganizer))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

// ════════════════════════════════════════════════════════════
// 权限
// ════════════════════════════════════════════════════════════

func TestAdminOnlyRoutes(t *testing.T) {
	h, _ := setupHandler(t)

	rec, _ := do(t, h, http.MethodPost, "/reconciliation/sweeps", nil, tokenFor(t, 7, domain.RoleVolunteer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := do(t, h, http.MethodPost, "/reconciliation/sweeps", nil, tokenFor(t, 1, domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"count": float64(3)}, resp.Data)

	rec, _ = do(t, h, http.MethodPost, "/profiles/7/skills/rebuild", nil, tokenFor(t, 100, domain.RoleOrganizer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/profiles/7/skills/rebuild", nil, tokenFor(t, 1, domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/profiles/7/skills/consistency", nil, tokenFor(t, 1, domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, resp.Data)
}

func TestMyInfoRoutes(t *testing.T) {
	h, svc := setupHandler(t)
	cookie := tokenFor(t, 7, domain.RoleVolunteer)

	rec, resp := do(t, h, http.MethodGet, "/my-info", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zhangsan", resp.Data.(map[string]any)["username"])

	rec, _ = do(t, h, http.MethodGet, "/my-info/participations", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), *svc.lastFilter.AccountID)

	rec, resp = do(t, h, http.MethodGet, "/my-info/skills", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, resp.Data)

	rec, _ = do(t, h, http.MethodGet, "/my-info", nil, tokenFor(t, 404, domain.RoleVolunteer))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignUpAndShift(t *testing.T) {
	h, svc := setupHandler(t)
	cookie := tokenFor(t, 7, domain.RoleVolunteer)

	rec, _ := do(t, h, http.MethodPost, "/shifts/3/participations", map[string]bool{"attendant": true}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), svc.lastActor)

	rec, resp := do(t, h, http.MethodGet, "/shifts/3", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, string(domain.ShiftStatusUpcoming), data["status"])
	assert.InDelta(t, 2.0, data["durationHours"], 1e-9)

	svc.err = domain.ErrAlreadyJoined
	rec, resp = do(t, h, http.MethodPost, "/shifts/3/participations", map[string]bool{"attendant": false}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "AlreadyJoined", resp.Code)
}

func TestGetParticipation_PassesActor(t *testing.T) {
	h, svc := setupHandler(t)

	rec, resp := do(t, h, http.MethodGet, "/participations/5", nil, tokenFor(t, 7, domain.RoleVolunteer))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(7), svc.lastActor)

	// 查看他人的报名记录
	svc.err = domain.ErrNotManager
	rec, resp = do(t, h, http.MethodGet, "/participations/5", nil, tokenFor(t, 8, domain.RoleVolunteer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NotManager", resp.Code)
	assert.Equal(t, int64(8), svc.lastActor)
}

func TestRecoverer(t *testing.T) {
	h, _ := setupHandler(t)
	h.Mux.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("oops") })

	rec, resp := do(t, h, http.MethodGet, "/panic", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
}
