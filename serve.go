package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskhub/config"
	"taskhub/middleware"
	"taskhub/routes"
	"taskhub/store"
	"taskhub/utils"
)

var ServeCommand = cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:         config.AppConfig.SentryDSN,
				Environment: config.AppConfig.Environment,
			}); err != nil {
				logrus.WithError(err).Warn("Sentry initialization failed")
			}
			defer sentry.Flush(2 * time.Second)
		}

		if err := config.ConnectDB(); err != nil {
			return err
		}
		if err := config.MigrateDB(); err != nil {
			return err
		}

		s := store.NewGormStore(config.DB, store.WithReadOptions(config.ReadTxOptions()))

		app := fiber.New(fiber.Config{
			AppName:      "taskhub",
			ErrorHandler: utils.ErrorHandler,
		})
		app.Use(recover.New())
		app.Use(middleware.CORS(middleware.DefaultCORSConfig(config.AppConfig.CORSAllowedOrigins...)))

		storage := middleware.RateLimitStorage(config.AppConfig.Redis)
		if storage != nil {
			defer storage.Close()
		}

		routes.SetupRoutes(app, s, routes.Options{
			LoginRateLimit:   config.AppConfig.RateLimitLogin,
			RateLimitStorage: storage,
			AccessLog:        true,
		})

		go func() {
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			logrus.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(ctx); err != nil {
				logrus.WithError(err).Error("Graceful shutdown failed")
			}
		}()

		logrus.Infof("Server starting on port %s", config.AppConfig.ServerPort)
		return app.Listen(":" + config.AppConfig.ServerPort)
	},
}
