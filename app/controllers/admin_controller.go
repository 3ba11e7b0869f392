package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/billing"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"github.com/bossboard/bossboard/internal/pkg/statistics"
	"github.com/bossboard/bossboard/internal/pkg/usercontext"
)

const (
	actionChangePlan = "change_plan"
	actionBan        = "ban"
	actionUnban      = "unban"

	banDuration = 876000 * time.Hour

	defaultUsersPerPage = 20
	maxUsersPerPage     = 100
)

// PlanOverrider applies manual plan changes.
type PlanOverrider interface {
	OverridePlan(ctx context.Context, userID, planID string) error
}

// AdminStatistics provides the cached dashboard aggregates.
type AdminStatistics interface {
	Overview(ctx context.Context) (*statistics.Overview, error)
	Revenue(ctx context.Context) (*statistics.Revenue, error)
	Usage(ctx context.Context) (*statistics.Usage, error)
	Invalidate()
}

// AdminController handles the back-office API using repository pattern
type AdminController struct {
	repos *repository.Repositories
	plans PlanOverrider
	stats AdminStatistics
	now   func() time.Time
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories, overrider PlanOverrider, stats AdminStatistics) *AdminController {
	return &AdminController{
		repos: repos,
		plans: overrider,
		stats: stats,
		now:   time.Now,
	}
}

type adminUserAction struct {
	UserID string `json:"userId" validate:"required"`
	Action string `json:"action" validate:"required"`
	PlanID string `json:"plan_id"`
}

// HandleUpdateUser applies change_plan, ban or unban to one profile.
func (ac *AdminController) HandleUpdateUser(c *fiber.Ctx) error {
	var req adminUserAction
	if err := bindJSON(c, &req); err != nil {
		if errors.Is(err, errInvalidBody) {
			return jsonError(c, fiber.StatusBadRequest, "Invalid JSON")
		}
		return jsonError(c, fiber.StatusBadRequest, "userId and action are required")
	}

	ctx := c.UserContext()
	admin := usercontext.GetEmail(c)

	switch req.Action {
	case actionChangePlan:
		if req.PlanID == "" {
			return jsonError(c, fiber.StatusBadRequest, "plan_id is required")
		}
		if err := ac.plans.OverridePlan(ctx, req.UserID, req.PlanID); err != nil {
			switch {
			case errors.Is(err, plans.ErrUnknownPlan):
				return jsonError(c, fiber.StatusBadRequest, "Unknown plan")
			case errors.Is(err, billing.ErrProfileNotFound):
				return jsonError(c, fiber.StatusNotFound, "User not found")
			}
			log.Errorf("[Admin] Plan change for %s failed: %v", req.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, err.Error())
		}
		ac.stats.Invalidate()

	case actionBan, actionUnban:
		var until *time.Time
		if req.Action == actionBan {
			t := ac.now().Add(banDuration)
			until = &t
		}
		found, err := ac.repos.Profile.SetBannedUntil(ctx, req.UserID, until)
		if err != nil {
			log.Errorf("[Admin] %s for %s failed: %v", req.Action, req.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, err.Error())
		}
		if !found {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}

	default:
		return jsonError(c, fiber.StatusBadRequest, "Unknown action")
	}

	log.Infof("[Admin] %s applied %s to %s", admin, req.Action, req.UserID)
	return c.JSON(fiber.Map{"success": true})
}

// HandleListUsers returns one page of profiles, newest first.
func (ac *AdminController) HandleListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultUsersPerPage)
	if limit < 1 || limit > maxUsersPerPage {
		limit = defaultUsersPerPage
	}

	ctx := c.UserContext()
	users, err := ac.repos.Profile.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return ac.handleError(c, "Failed to list users", err)
	}
	total, err := ac.repos.Profile.Count(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to count users", err)
	}
	if users == nil {
		users = []models.Profile{}
	}

	return c.JSON(fiber.Map{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (ac *AdminController) HandleOverview(c *fiber.Ctx) error {
	out, err := ac.stats.Overview(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load overview", err)
	}
	return c.JSON(out)
}

func (ac *AdminController) HandleRevenue(c *fiber.Ctx) error {
	out, err := ac.stats.Revenue(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load revenue", err)
	}
	return c.JSON(out)
}

func (ac *AdminController) HandleUsage(c *fiber.Ctx) error {
	out, err := ac.stats.Usage(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load usage", err)
	}
	return c.JSON(out)
}

// handleError is a helper method for consistent error handling
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
