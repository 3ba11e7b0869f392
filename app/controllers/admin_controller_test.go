package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/billing"
	"github.com/bossboard/bossboard/internal/pkg/middleware"
	"github.com/bossboard/bossboard/internal/pkg/plans"
)

type adminFixture struct {
	app       *fiber.App
	profiles  *fakeProfiles
	overrider *fakeOverrider
	stats     *fakeStats
	now       time.Time
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	f := &adminFixture{
		profiles:  newFakeProfiles(models.Profile{ID: "u1", PlanID: "free"}, models.Profile{ID: "u2", PlanID: "pro"}),
		overrider: &fakeOverrider{},
		stats:     &fakeStats{},
		now:       time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	ctrl := NewAdminController(&repository.Repositories{Profile: f.profiles}, f.overrider, f.stats)
	ctrl.now = func() time.Time { return f.now }

	f.app = fiber.New()
	f.app.Use(withUser)
	admin := f.app.Group("/api/admin", middleware.RequireAdmin)
	admin.Patch("/users", ctrl.HandleUpdateUser)
	admin.Get("/users", ctrl.HandleListUsers)
	admin.Get("/overview", ctrl.HandleOverview)
	admin.Get("/revenue", ctrl.HandleRevenue)
	admin.Get("/usage", ctrl.HandleUsage)
	return f
}

func adminRequest(method, path, body string) *http.Request {
	req := jsonRequest(method, path, body, "admin-1")
	req.Header.Set("X-Test-Email", "owner@example.com")
	req.Header.Set("X-Test-Admin", "1")
	return req
}

func (f *adminFixture) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode, readBody(t, resp)
}

func TestAdminRequiresAdmin(t *testing.T) {
	f := newAdminFixture(t)

	code, body := f.do(t, jsonRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u1","action":"ban"}`, "u1"))
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, body)

	code, _ = f.do(t, jsonRequest(fiber.MethodGet, "/api/admin/overview", "", ""))
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Nil(t, f.profiles.profiles["u1"].BannedUntil)
}

func TestAdminUpdateUserValidation(t *testing.T) {
	f := newAdminFixture(t)

	tests := []struct {
		body string
		want string
	}{
		{`{"action":"ban"}`, `{"error":"userId and action are required"}`},
		{`{"userId":"u1"}`, `{"error":"userId and action are required"}`},
		{`{"userId":"u1","action":"change_plan"}`, `{"error":"plan_id is required"}`},
		{`{"userId":"u1","action":"delete"}`, `{"error":"Unknown action"}`},
		{`{`, `{"error":"Invalid JSON"}`},
	}
	for _, tt := range tests {
		code, body := f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", tt.body))
		assert.Equal(t, fiber.StatusBadRequest, code, tt.body)
		assert.JSONEq(t, tt.want, body, tt.body)
	}
	assert.Empty(t, f.overrider.calls)
}

func TestAdminChangePlan(t *testing.T) {
	f := newAdminFixture(t)

	code, body := f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u1","action":"change_plan","plan_id":"business"}`))
	assert.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{"success":true}`, body)
	assert.Equal(t, [][2]string{{"u1", "business"}}, f.overrider.calls)
	assert.Equal(t, 1, f.stats.invalidated)

	f.overrider.err = fmt.Errorf("%w: %q", plans.ErrUnknownPlan, "platinum")
	code, body = f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u1","action":"change_plan","plan_id":"platinum"}`))
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"Unknown plan"}`, body)

	f.overrider.err = billing.ErrProfileNotFound
	code, _ = f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"ghost","action":"change_plan","plan_id":"pro"}`))
	assert.Equal(t, fiber.StatusNotFound, code)

	f.overrider.err = errors.New("lock wait timeout")
	code, _ = f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u1","action":"change_plan","plan_id":"pro"}`))
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, 1, f.stats.invalidated)
}

func TestAdminBanAndUnban(t *testing.T) {
	f := newAdminFixture(t)

	code, _ := f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u2","action":"ban"}`))
	assert.Equal(t, fiber.StatusOK, code)
	banned := f.profiles.profiles["u2"].BannedUntil
	require.NotNil(t, banned)
	assert.True(t, banned.After(f.now.AddDate(99, 0, 0)))

	code, _ = f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"u2","action":"unban"}`))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Nil(t, f.profiles.profiles["u2"].BannedUntil)

	code, body := f.do(t, adminRequest(fiber.MethodPatch, "/api/admin/users", `{"userId":"ghost","action":"ban"}`))
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"User not found"}`, body)
}

func TestAdminListUsers(t *testing.T) {
	f := newAdminFixture(t)

	code, body := f.do(t, adminRequest(fiber.MethodGet, "/api/admin/users?page=1&limit=1", ""))
	assert.Equal(t, fiber.StatusOK, code)

	var out struct {
		Users []models.Profile `json:"users"`
		Total int64            `json:"total"`
		Page  int              `json:"page"`
		Limit int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Len(t, out.Users, 1)
	assert.Equal(t, int64(2), out.Total)
	assert.Equal(t, 1, out.Limit)

	code, body = f.do(t, adminRequest(fiber.MethodGet, "/api/admin/users?page=0&limit=5000", ""))
	assert.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, defaultUsersPerPage, out.Limit)
}

func TestAdminAggregates(t *testing.T) {
	f := newAdminFixture(t)

	code, body := f.do(t, adminRequest(fiber.MethodGet, "/api/admin/overview", ""))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body, `"planDistribution":{"free":2,"pro":1}`)

	code, body = f.do(t, adminRequest(fiber.MethodGet, "/api/admin/revenue", ""))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body, `"arr":239.88`)

	code, body = f.do(t, adminRequest(fiber.MethodGet, "/api/admin/usage", ""))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, body, `"totalCredits":6`)

	f.stats.err = errors.New("redis down and db down")
	code, body = f.do(t, adminRequest(fiber.MethodGet, "/api/admin/revenue", ""))
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.JSONEq(t, `{"error":"Failed to load revenue"}`, body)
}
