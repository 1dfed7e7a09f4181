package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"compliance_flow_app_go/db"
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "handlers-test-secret-0123456789abcdef"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique shared memory name isolates tests
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	migrate := []interface{}{
		&models.User{}, &models.Role{}, &models.Case{},
		&models.AuditEntry{}, &models.ExpiryRecord{}, &models.RenewalConfig{},
	}
	migrate = append(migrate, services.StageModels()...)
	require.NoError(t, testDB.AutoMigrate(migrate...))
	require.NoError(t, services.SeedRoles(testDB))
	require.NoError(t, services.SeedRenewalConfigs(testDB))

	// Set global DB
	db.DB = testDB
	return testDB
}

// setupServer wires engines and routes the way cmd/server does
func setupServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()
	database := setupTestDB(t)

	authorizer := services.NewRoleAuthorizer()
	audit := services.NewAuditLogger(database)
	storage := services.NewLocalStorage(t.TempDir())
	expiry, err := services.NewExpiryEngine(database, authorizer, audit, nil)
	require.NoError(t, err)
	Init(services.NewWorkflowEngine(database, authorizer, audit, storage), expiry)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	api := e.Group("/api", middleware.AuditContext(), middleware.RequireCaller(database, testSecret))
	noLimit := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	RegisterAPIRoutes(api, noLimit)
	return e, database
}

type testUser struct {
	ID    string
	Token string
}

func createUser(t *testing.T, database *gorm.DB, roles ...string) testUser {
	t.Helper()
	user := &models.User{
		Name:     "User " + uuid.New().String()[:4],
		Email:    uuid.New().String()[:8] + "@example.com",
		Password: "hash",
		IsActive: true,
	}
	require.NoError(t, database.Create(user).Error)
	if len(roles) > 0 {
		require.NoError(t, services.AssignRoles(database, user, roles...))
	}
	token, err := services.IssueCallerToken(testSecret, user.ID, time.Hour, time.Now())
	require.NoError(t, err)
	return testUser{ID: user.ID, Token: token}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, e *echo.Echo, method, path, token, contentType string, body io.Reader) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get(echo.HeaderContentType) == echo.MIMEApplicationJSON ||
		bytes.HasPrefix(rec.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	return doRequest(t, e, method, path, token, echo.MIMEApplicationJSON, reader)
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}
