package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/bossboard/bossboard/app/controllers"
	"github.com/bossboard/bossboard/internal/pkg/middleware"
)

const (
	apiRateLimit       = 60
	apiRateLimitWindow = time.Minute
	webhookPath        = "/api/paddle/webhook"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		// webhooks are exempt
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == webhookPath
		},
		Max:          apiRateLimit,
		Expiration:   apiRateLimitWindow,
		KeyGenerator: controllers.ClientIP,
		Storage:      h.deps.RateLimitStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}), middleware.JWTAuth(h.deps.JWT))

	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// public
	api.Get("/plans", controllers.HandlePlans(h.deps.Catalog))
	api.Post("/contact", h.deps.Contact.HandleContact)
	api.Post("/paddle/webhook", h.deps.Billing.HandlePaddleWebhook)

	// metered generation
	ai := api.Group("/ai", middleware.RequireAuth)
	ai.Post("/review-reply", h.deps.AI.HandleReviewReply)
	ai.Post("/caption", h.deps.AI.HandleCaption)
	ai.Post("/email-marketing", h.deps.AI.HandleEmailMarketing)
	ai.Post("/script", h.deps.AI.HandleScript)
	ai.Post("/translate", h.deps.AI.HandleTranslate)
	ai.Post("/chat", h.deps.AI.HandleChat)
	ai.Post("/review-insights", h.deps.AI.HandleReviewInsights)
	ai.Get("/usage", h.deps.AI.HandleUsage)

	// back-office
	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.Patch("/users", h.deps.Admin.HandleUpdateUser)
	admin.Get("/users", h.deps.Admin.HandleListUsers)
	admin.Get("/overview", h.deps.Admin.HandleOverview)
	admin.Get("/revenue", h.deps.Admin.HandleRevenue)
	admin.Get("/usage", h.deps.Admin.HandleUsage)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
