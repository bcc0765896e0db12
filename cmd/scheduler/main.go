package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/loan-engine/internal/app"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/logging"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 30 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.New("error", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With("component", "scheduler")
	logger.Info("starting loan scheduler")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	// Initialize cron scheduler in the business timezone
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if err := setupCronJobs(c, cfg, a, logger); err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		_ = a.Close()
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	logger.Info("scheduler started",
		"penalty_sweep", cfg.Scheduler.PenaltySweepSpec,
		"reminders", cfg.Scheduler.ReminderSpec,
		"timezone", cfg.Business.Timezone,
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, a *app.App, logger *slog.Logger) error {
	// Daily penalty accrual on overdue installments
	if _, err := c.AddFunc(cfg.Scheduler.PenaltySweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		logger.Info("running penalty sweep")
		if _, err := a.Loans.RunPenaltySweep(ctx); err != nil {
			logger.Error("penalty sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}

	// Daily reminders for installments falling due soon
	if _, err := c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		logger.Info("sending payment reminders", "days_ahead", cfg.Scheduler.ReminderDays)
		if _, err := a.Loans.SendDueReminders(ctx); err != nil {
			logger.Error("payment reminders failed", "error", err)
		}
	}); err != nil {
		return err
	}

	return nil
}
