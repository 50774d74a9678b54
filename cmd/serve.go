package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clubware/ms-go-memberships/app/controller"
	"github.com/clubware/ms-go-memberships/app/repository"
	"github.com/clubware/ms-go-memberships/app/service"
	"github.com/clubware/ms-go-memberships/config"

	_ "github.com/go-sql-driver/mysql"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the memberships service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	templateRepo := repository.NewTemplateRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	renewalRepo := repository.NewRenewalRepository(db)
	membershipService := service.NewMembershipService(templateRepo, subscriptionRepo, usageRepo, renewalRepo)
	membershipController := controller.NewMembershipController(membershipService)

	e := setupHTTPServer(membershipController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(membershipController *controller.MembershipController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))

	e.GET("/health", membershipController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	templates := e.Group("/templates")
	templates.POST("", membershipController.CreateTemplate)
	templates.GET("", membershipController.ListTemplates)
	templates.GET("/:id", membershipController.GetTemplate)

	subscriptions := e.Group("/subscriptions")
	subscriptions.POST("", membershipController.CreateSubscription)
	subscriptions.GET("", membershipController.ListSubscriptions)
	subscriptions.POST("/validate", membershipController.ValidateSubscription)
	subscriptions.POST("/use", membershipController.UseSubscription)
	subscriptions.GET("/code/:code", membershipController.GetSubscriptionByCode)
	subscriptions.GET("/:id", membershipController.GetSubscription)
	subscriptions.POST("/:id/renew", membershipController.RenewSubscription)
	subscriptions.POST("/:id/pause", membershipController.PauseSubscription)
	subscriptions.POST("/:id/cancel", membershipController.CancelSubscription)
	subscriptions.GET("/:id/usages", membershipController.ListUsages)
	subscriptions.GET("/:id/renewals", membershipController.ListRenewals)

	e.GET("/stats", membershipController.GetStats)

	return e
}
