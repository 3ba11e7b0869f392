package router

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bossboard/bossboard/app/controllers"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/middleware"
	"github.com/bossboard/bossboard/internal/pkg/plans"
)

const testSecret = "router-test-secret"

func newTestApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	catalog, err := plans.Load("")
	require.NoError(t, err)

	repos := &repository.Repositories{}
	app := fiber.New()
	InstallRouter(app, Dependencies{
		DB:      db,
		Catalog: catalog,
		JWT:     middleware.JWTConfig{Secret: testSecret, AdminEmail: "owner@example.com"},
		AI:      controllers.NewAIController(repos, nil, catalog, nil, nil),
		Billing: controllers.NewBillingController(nil, ""),
		Admin:   controllers.NewAdminController(repos, nil, nil),
		Contact: controllers.NewContactController(nil, ""),
	})
	return app, mock
}

func bearer(t *testing.T, req *http.Request, userID, email string) {
	t.Helper()
	token, err := middleware.SignToken(testSecret, userID, email, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestHealthz(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectPing()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestPublicPlans(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/plans", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/ai/review-reply", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/admin/overview", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/api/admin/overview", nil)
	bearer(t, req, "u1", "someone@example.com")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestApiRateLimit(t *testing.T) {
	app, _ := newTestApp(t)

	var last int
	for i := 0; i < apiRateLimit+1; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/api/", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.4")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		last = resp.StatusCode
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last)

	// another client is unaffected
	req := httptest.NewRequest(fiber.MethodGet, "/api/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.5")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
