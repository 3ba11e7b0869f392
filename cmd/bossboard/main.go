package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bossboard/bossboard/app/controllers"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/billing"
	"github.com/bossboard/bossboard/internal/pkg/cache"
	"github.com/bossboard/bossboard/internal/pkg/credits"
	"github.com/bossboard/bossboard/internal/pkg/database"
	"github.com/bossboard/bossboard/internal/pkg/env"
	"github.com/bossboard/bossboard/internal/pkg/jobqueue"
	"github.com/bossboard/bossboard/internal/pkg/llm"
	"github.com/bossboard/bossboard/internal/pkg/mail"
	"github.com/bossboard/bossboard/internal/pkg/middleware"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"github.com/bossboard/bossboard/internal/pkg/router"
	"github.com/bossboard/bossboard/internal/pkg/statistics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app, manager := NewApplication()
	manager.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Errorf("Server shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	manager.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	loc, err := credits.LoadLocation(env.GetEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		log.Fatalf("[Env] Invalid APP_TIMEZONE: %v", err)
	}
	catalog := plans.MustLoad(env.GetEnv("PLANS_CONFIG", "config/plans.yml"))

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	ledger := credits.NewLedgerFromDB(db, catalog, loc)
	billingSvc := billing.NewServiceFromDB(db, catalog)
	stats := statistics.NewService(db, catalog, loc)

	// background work: usage records and webhook replays
	queue := jobqueue.NewQueue(cache.GetClient(), env.GetEnvInt("USAGE_WORKERS", 3))
	queue.Register(jobqueue.JobTypeRecordUsage, jobqueue.NewUsageHandler(ledger))
	queue.Register(jobqueue.JobTypeWebhookReplay, jobqueue.NewWebhookReplayHandler(billingSvc))
	manager, err := jobqueue.NewManager(queue, billingSvc, env.GetEnv("WEBHOOK_REPLAY_SCHEDULE", jobqueue.DefaultReplaySchedule))
	if err != nil {
		log.Fatalf("[JobQueue Manager] %v", err)
	}

	generator := llm.NewClient(llm.Config{
		APIKey:     env.GetEnv("ANTHROPIC_API_KEY", ""),
		BaseURL:    env.GetEnv("ANTHROPIC_BASE_URL", ""),
		Model:      env.GetEnv("ANTHROPIC_MODEL", ""),
		MaxRetries: env.GetEnvInt("ANTHROPIC_MAX_RETRIES", llm.DefaultMaxRetries),
	})
	if env.GetEnv("ANTHROPIC_API_KEY", "") == "" {
		log.Warn("[AI] ANTHROPIC_API_KEY is not set, generation requests will fail")
	}

	var sender mail.Sender
	if smtpCfg := mail.ConfigFromEnv(); smtpCfg.Configured() {
		sender = mail.NewSMTPMailer(smtpCfg)
	} else {
		log.Info("[Mail] SMTP not configured, contact submissions are only logged")
	}

	app := fiber.New(fiber.Config{
		AppName:   "BossBoard",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if basePath := findBasePath(); basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	} else {
		log.Warn("public/docs/v1/openapi.yml not found, API docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		DB:               db,
		Catalog:          catalog,
		JWT:              middleware.JWTConfig{Secret: env.GetEnv("JWT_SECRET", ""), AdminEmail: env.GetEnv("ADMIN_EMAIL", "")},
		RateLimitStorage: cache.NewFiberStorage(cache.LimiterDatabase),
		AI:               controllers.NewAIController(repos, ledger, catalog, generator, jobqueue.NewUsageDispatcher(queue, ledger)),
		Billing:          controllers.NewBillingController(billingSvc, env.GetEnv("PADDLE_WEBHOOK_SECRET", "")),
		Admin:            controllers.NewAdminController(repos, billingSvc, stats),
		Contact:          controllers.NewContactController(sender, env.GetEnv("CONTACT_RECIPIENT", "")),
	})

	return app, manager
}

func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	return ""
}
