package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clubware/ms-go-memberships/app/repository"
	"github.com/clubware/ms-go-memberships/app/service"
	"github.com/clubware/ms-go-memberships/config"

	_ "github.com/go-sql-driver/mysql"
)

var expireWorker bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background processing commands",
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark past-end-date active subscriptions as expired",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire",
			expireWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirationCheckInterval },
			func(s *service.MembershipService, ctx context.Context) error {
				return s.RunExpirationSweep(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(expireCmd)

	expireCmd.Flags().BoolVar(&expireWorker, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.MembershipService, ctx context.Context) error,
) {
	cfg, membershipService, cleanup := mustCreateMembershipService()
	defer cleanup()

	if worker {
		runWorker(name, intervalResolver(cfg), membershipService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(membershipService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	membershipService *service.MembershipService,
	fn func(s *service.MembershipService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(membershipService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(membershipService, ctx) })
		}
	}
}

func mustCreateMembershipService() (*config.Config, *service.MembershipService, func()) {
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

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	templateRepo := repository.NewTemplateRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	renewalRepo := repository.NewRenewalRepository(db)
	membershipService := service.NewMembershipService(templateRepo, subscriptionRepo, usageRepo, renewalRepo)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, membershipService, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
