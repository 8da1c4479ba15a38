// Command api is the athletics reminder service: it runs the hourly
// notification scheduler, the schedule-sync listener and the admin API.
//
// Usage:
//
//	athletics-api
//	API_PORT=8080 athletics-api

// @title Athletics Notify Admin API
// @version 1.0
// @description Game reminder delivery: manual passes and ledger reporting.
// @BasePath /
// @schemes http https
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/athletics-notify/internal/api"
	"github.com/albapepper/athletics-notify/internal/api/handler"
	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/cache"
	"github.com/albapepper/athletics-notify/internal/claim"
	"github.com/albapepper/athletics-notify/internal/config"
	"github.com/albapepper/athletics-notify/internal/db"
	"github.com/albapepper/athletics-notify/internal/delivery"
	"github.com/albapepper/athletics-notify/internal/eligibility"
	"github.com/albapepper/athletics-notify/internal/email"
	"github.com/albapepper/athletics-notify/internal/ledger"
	"github.com/albapepper/athletics-notify/internal/listener"
	"github.com/albapepper/athletics-notify/internal/maintenance"
	"github.com/albapepper/athletics-notify/internal/push"
	"github.com/albapepper/athletics-notify/internal/scheduler"

	_ "github.com/albapepper/athletics-notify/docs" // swagger docs
	_ "time/tzdata"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	store := ledger.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure ledger schema", "error", err)
		os.Exit(1)
	}

	loc := cfg.Location()
	claims := claim.New(store, claim.WithStaleAfter(cfg.StaleAfter), claim.WithLogger(logger))

	// Assign senders only when configured: a typed nil would not disable
	// the channel.
	var emailSender delivery.EmailSender
	if s := email.NewSender(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
		SiteURL:  cfg.SiteURL,
	}, loc, logger); s != nil {
		emailSender = s
	} else {
		logger.Info("Email reminders disabled (no SMTP_HOST)")
	}

	var pushSender delivery.PushSender
	fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile, logger)
	switch {
	case err != nil:
		logger.Error("Failed to initialize FCM", "error", err)
		os.Exit(1)
	case fcm != nil:
		pushSender = fcm
	default:
		logger.Info("Push reminders disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	orch := delivery.New(athletics.NewRepository(pool), claims, emailSender, pushSender, delivery.Options{
		Location: loc,
		Workers:  cfg.DeliveryWorkers,
		Logger:   logger,
	})

	sched, err := scheduler.New(scheduler.Options{
		Spec:     cfg.ScheduleSpec,
		Location: loc,
		Quiet:    eligibility.QuietHours{Start: cfg.QuietStartHour, End: cfg.QuietEndHour},
		Run:      orch.RunPass,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	if cfg.SchedulerOn {
		sched.Start()
	} else {
		logger.Info("Notification scheduler disabled (SCHEDULER_ENABLED=false)")
	}

	if cfg.ListenerEnabled {
		l := listener.New(listener.PgxDialer(cfg.DatabaseURL), sched, listener.Options{
			Channel: config.ScheduleSyncChannel,
			Logger:  logger,
		})
		go l.Run(ctx)
	}

	go maintenance.Start(ctx, store, maintenance.Config{
		Interval:   cfg.MaintenanceInterval,
		StaleAfter: cfg.StaleAfter,
	}, logger)

	appCache := cache.New(cfg.CacheEnabled, 5*time.Minute)
	defer appCache.Close()

	router := api.NewRouter(handler.Deps{
		DB:         pool,
		Runner:     sched,
		Ledger:     store,
		Cache:      appCache,
		StaleAfter: cfg.StaleAfter,
		SummaryTTL: cfg.LedgerCacheTTL,
		RunTimeout: 4 * time.Minute,
		Logger:     logger,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting athletics notify API",
			"addr", addr,
			"environment", cfg.Environment,
			"timezone", loc.String(),
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler stop error", "error", err)
	}
	logger.Info("Server stopped")
}
