package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trendlens/trendlens-api/api/middleware"
	"github.com/trendlens/trendlens-api/internal/users"
	"github.com/trendlens/trendlens-api/pkg/clerk"
	"github.com/trendlens/trendlens-api/pkg/db/models"
	"github.com/trendlens/trendlens-api/pkg/logger"
)

type directoryStub map[string]*clerk.UserData

func (d directoryStub) GetUser(_ context.Context, id string) (*clerk.UserData, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("clerk: user %s not found", id)
}

func newUserService(t *testing.T, dir users.ProfileSource) (*users.Service, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	svc, err := users.NewService(users.ServiceParams{
		Repo:      users.NewRepository(conn),
		Directory: dir,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return svc, conn
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), id))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	env := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
}

func TestCurrentUserProvisionsFromDirectory(t *testing.T) {
	first := "Ada"
	primary := "e1"
	svc, _ := newUserService(t, directoryStub{"user_1": {
		ID:                    "user_1",
		FirstName:             &first,
		PrimaryEmailAddressID: &primary,
		EmailAddresses:        []clerk.EmailAddress{{ID: "e1", EmailAddress: "ada@x.com"}},
	}})

	rec := httptest.NewRecorder()
	CurrentUser(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), "user_1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto users.UserDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, "user_1", dto.ID)
	assert.Equal(t, "ada@x.com", dto.Email)
	assert.True(t, dto.IsActive)
}

func TestCurrentUserRequiresAuth(t *testing.T) {
	svc, _ := newUserService(t, nil)
	rec := httptest.NewRecorder()
	CurrentUser(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateCurrentUserMergesPreferences(t *testing.T) {
	svc, _ := newUserService(t, nil)

	body := `{"fullName":"Grace Hopper","preferences":{"theme":"dark"}}`
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/v1/me", strings.NewReader(body)), "user_2")
	rec := httptest.NewRecorder()
	UpdateCurrentUser(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto users.UserDTO
	decodeData(t, rec, &dto)
	require.NotNil(t, dto.FullName)
	assert.Equal(t, "Grace Hopper", *dto.FullName)
	assert.Equal(t, "dark", dto.Preferences.Theme)
	assert.Equal(t, "zh", dto.Preferences.Language)
}

func TestUpdateCurrentUserRejectsUnknownPreference(t *testing.T) {
	svc, _ := newUserService(t, nil)

	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/v1/me", strings.NewReader(`{"preferences":{"currency":"EUR"}}`)), "user_3")
	rec := httptest.NewRecorder()
	UpdateCurrentUser(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "preferences.currency")
}

func TestSyncCurrentUserWithoutDirectory(t *testing.T) {
	svc, _ := newUserService(t, nil)
	rec := httptest.NewRecorder()
	SyncCurrentUser(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/me/sync", nil), "user_4"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIGURATION_ERROR")
}

func TestAuthStatus(t *testing.T) {
	svc, conn := newUserService(t, directoryStub{})

	rec := httptest.NewRecorder()
	AuthStatus(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var anon authStatus
	decodeData(t, rec, &anon)
	assert.False(t, anon.IsAuthenticated)
	assert.Nil(t, anon.User)

	// directory lookup fails for an unknown id; the caller is still authenticated
	rec = httptest.NewRecorder()
	AuthStatus(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil), "ghost"))
	require.Equal(t, http.StatusOK, rec.Code)
	var ghost authStatus
	decodeData(t, rec, &ghost)
	assert.True(t, ghost.IsAuthenticated)
	assert.Nil(t, ghost.User)

	require.NoError(t, conn.Create(&models.User{ID: "admin_1", Email: "root@x.com", IsActive: true, IsAdmin: true}).Error)
	rec = httptest.NewRecorder()
	AuthStatus(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil), "admin_1"))
	var admin authStatus
	decodeData(t, rec, &admin)
	assert.True(t, admin.IsAdmin)
	require.NotNil(t, admin.User)
	assert.Equal(t, "admin_1", admin.User.ID)
}

func TestAdminListUsers(t *testing.T) {
	svc, conn := newUserService(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Create(&models.User{ID: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@x.com", i), IsActive: true}).Error)
	}

	rec := httptest.NewRecorder()
	AdminListUsers(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/users?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []users.UserDTO
	decodeData(t, rec, &list)
	assert.Len(t, list, 2)

	rec = httptest.NewRecorder()
	AdminListUsers(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/users?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
