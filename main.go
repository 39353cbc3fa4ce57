package main

import (
	"context"

	"coldreach/config"
	"coldreach/middleware"
	"coldreach/routes"
	"coldreach/utils"
	"coldreach/worker"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if config.AppConfig.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Campaign execution engine: dispatcher + reconciler behind one poll loop
	mailer := utils.NewSMTPMailer(config.AppConfig.Scheduler.SendTimeout)
	poller := utils.NewIMAPPoller(config.AppConfig.Scheduler.PollTimeout)
	scheduler := worker.NewScheduler(
		config.DB, mailer, poller, logger,
		config.AppConfig.AppURL,
		config.AppConfig.Scheduler.PollInterval,
		config.AppConfig.Scheduler.BatchSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	// Midnight quota reset for every mailbox
	resetCron, err := worker.StartDailyReset(config.DB, logger)
	if err != nil {
		logger.Fatalf("Failed to start daily reset job: %v", err)
	}
	defer resetCron.Stop()

	// Setup routes
	routes.SetupRoutes(app, config.DB, scheduler.Reconciler)

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
