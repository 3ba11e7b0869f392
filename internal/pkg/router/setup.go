package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/bossboard/bossboard/app/controllers"
	"github.com/bossboard/bossboard/internal/pkg/middleware"
	"github.com/bossboard/bossboard/internal/pkg/plans"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired services the routes hand requests to.
type Dependencies struct {
	DB      *gorm.DB
	Catalog *plans.Catalog
	JWT     middleware.JWTConfig

	// RateLimitStorage backs the /api limiter; nil keeps counters in memory.
	RateLimitStorage fiber.Storage

	AI      *controllers.AIController
	Billing *controllers.BillingController
	Admin   *controllers.AdminController
	Contact *controllers.ContactController
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// system routes stay outside the /api limiter and auth
	setup(app, NewSystemRouter(deps.DB), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
