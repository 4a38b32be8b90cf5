package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"dailybrief/internal/app"
	"dailybrief/internal/config"
	"dailybrief/internal/domain"
	"dailybrief/internal/logging"
)

func main() {
	daemon := flag.Bool("daemon", false, "run on the configured cron schedule instead of once")
	addUser := flag.String("add-user", "", "register or update a recipient by email, then exit")
	userName := flag.String("name", "", "recipient name (with -add-user)")
	userBackground := flag.String("background", "", "recipient background (with -add-user)")
	userInterests := flag.String("interests", "", "recipient interests (with -add-user)")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *addUser != "" {
		profile, err := application.UpsertUser(ctx, domain.UserProfile{
			Email:      *addUser,
			Name:       *userName,
			Background: *userBackground,
			Interests:  *userInterests,
		})
		if err != nil {
			logger.Error("user registration failed", "email", *addUser, "error", err)
			os.Exit(1)
		}
		logger.Info("user registered", "email", profile.Email, "id", profile.ID)
		return
	}

	if *daemon {
		logger.Info("starting scheduler", "cron", cfg.Scheduler.CronExpression, "timezone", cfg.Scheduler.Timezone)
		if err := application.RunDaemon(ctx); err != nil {
			logger.Error("scheduler stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := application.RunOnce(ctx); err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}
