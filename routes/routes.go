package routes

import (
	"log"
	"os"

	controller "coldreach/controllers"
	"coldreach/middleware"
	"coldreach/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, reconciler *worker.Reconciler) {
	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	authController := controller.NewAuthController(db, log.New(os.Stdout, "AUTH: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	mailboxController := controller.NewMailboxController(db, log.New(os.Stdout, "MAILBOX: ", log.LstdFlags))
	analyticsController := controller.NewAnalyticsController(db, log.New(os.Stdout, "ANALYTICS: ", log.LstdFlags))
	trackingController := controller.NewTrackingController(db, reconciler, log.New(os.Stdout, "TRACKING: ", log.LstdFlags))
	webhookController := controller.NewWebhookController(db, reconciler, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))

	// Public auth endpoints
	auth := app.Group("/auth", requestLog)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.Refresh)
	auth.Get("/me", middleware.Protected(), authController.Me)

	// Protected API group with versioning
	api := app.Group("/api/v1", middleware.Protected(), requestLog)

	leads := api.Group("/leads")
	leads.Post("/", leadController.Create)
	leads.Get("/", leadController.List)
	leads.Post("/import", leadController.BulkImport)
	leads.Get("/:id", leadController.Get)
	leads.Put("/:id", leadController.Update)
	leads.Delete("/:id", leadController.Delete)

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignController.Create)
	campaigns.Get("/", campaignController.List)
	campaigns.Get("/:id", campaignController.Get)
	campaigns.Put("/:id", campaignController.Update)
	campaigns.Patch("/:id/status", campaignController.UpdateStatus)
	campaigns.Post("/:id/steps", campaignController.AddStep)
	campaigns.Get("/:id/steps", campaignController.ListSteps)
	campaigns.Post("/:id/leads", campaignController.EnrollLeads)
	campaigns.Get("/:id/leads", campaignController.ListEnrollments)
	campaigns.Get("/:id/stats", analyticsController.CampaignStats)

	mailboxes := api.Group("/mailboxes")
	mailboxes.Post("/", mailboxController.Create)
	mailboxes.Get("/", mailboxController.List)
	mailboxes.Get("/:id", mailboxController.Get)
	mailboxes.Put("/:id", mailboxController.Update)
	mailboxes.Delete("/:id", mailboxController.Delete)
	mailboxes.Post("/:id/test", mailboxController.Test)

	api.Get("/analytics/overview", analyticsController.Overview)

	// Public tracking endpoints hit from recipient mail clients
	tracking := app.Group("/tracking")
	tracking.Get("/open/:token", trackingController.Open)
	tracking.Get("/click/:token", trackingController.Click)
	tracking.Get("/unsubscribe/:token", trackingController.Unsubscribe)

	// Inbound event webhook for external reply/bounce detection services
	app.Post("/webhooks/events", requestLog, webhookController.HandleEvent)

	// Public lead capture for embedded forms, rate limited per IP
	app.Post("/widget/:userID/leads", middleware.CaptureRateLimiter(), leadController.Capture)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
