package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cvcwebsolutions/scheduling-api/internal/api/router"
	"github.com/cvcwebsolutions/scheduling-api/internal/appointments"
	"github.com/cvcwebsolutions/scheduling-api/internal/availability"
	"github.com/cvcwebsolutions/scheduling-api/internal/calendar"
	appconfig "github.com/cvcwebsolutions/scheduling-api/internal/config"
	"github.com/cvcwebsolutions/scheduling-api/internal/notify"
	"github.com/cvcwebsolutions/scheduling-api/internal/observability/metrics"
	"github.com/cvcwebsolutions/scheduling-api/internal/slotlock"
	"github.com/cvcwebsolutions/scheduling-api/internal/zoom"
	"github.com/cvcwebsolutions/scheduling-api/pkg/logging"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.MeetingTimezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", "timezone", cfg.MeetingTimezone)
		loc = time.UTC
	}
	duration := time.Duration(cfg.MeetingDurationMinutes) * time.Minute

	// Appointment store: Postgres when configured, otherwise in-memory.
	var store appointments.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := appointments.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("using postgres appointment store")
	} else {
		store = appointments.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, appointments are stored in memory")
	}

	// Redis backs the slot lock and webhook dedup; both degrade to in-process
	// implementations when Redis is absent.
	var (
		locks slotlock.Locker = slotlock.NewMemoryLocker()
		dedup zoom.Deduper    = zoom.NewMemoryDeduper(cfg.WebhookDedupTTL)
	)
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, using in-process slot lock and dedup", "error", err)
		} else {
			locks = slotlock.NewRedisLocker(rdb)
			dedup = zoom.NewRedisDeduper(rdb, cfg.WebhookDedupTTL)
			logger.Info("redis connected", "addr", cfg.RedisAddr)
		}
	}

	zoomClient := zoom.NewClient(zoom.Config{
		AccountID:    cfg.ZoomAccountID,
		ClientID:     cfg.ZoomClientID,
		ClientSecret: cfg.ZoomClientSecret,
	}, logger)
	if !zoomClient.IsConfigured() {
		logger.Warn("zoom credentials not set, meetings disabled")
	}

	calClient, err := calendar.New(ctx, calendar.Config{
		ClientEmail: cfg.GoogleClientEmail,
		PrivateKey:  cfg.GooglePrivateKey,
		CalendarID:  cfg.GoogleCalendarID,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize google calendar", "error", err)
		os.Exit(1)
	}

	// Availability merges busy windows from Zoom, Google Calendar, and the
	// store's own bookings.
	providers := []availability.Provider{
		zoomClient,
		calClient,
		appointments.NewStoreProvider(store, duration, loc),
	}
	checker := availability.NewChecker(providers, loc, logger)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails are logged only")
	}
	notifier := notify.NewService(sender, cfg.HostNotifyEmail, cfg.PublicBaseURL, loc, logger)

	schedMetrics := metrics.NewSchedulingMetrics(nil)

	svc := appointments.NewService(appointments.ServiceConfig{
		Store:           store,
		Checker:         checker,
		Meetings:        zoomClient,
		Events:          calClient,
		Notifier:        notifier,
		Locks:           locks,
		Metrics:         schedMetrics,
		Logger:          logger,
		MeetingDuration: duration,
		Timezone:        cfg.MeetingTimezone,
	})

	if cfg.ZoomWebhookSecretToken == "" {
		logger.Warn("ZOOM_WEBHOOK_SECRET_TOKEN not set, webhook signatures are not verified")
	}
	webhook := zoom.NewWebhookHandler(cfg.ZoomWebhookSecretToken, svc, dedup, schedMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Appointments:       appointments.NewHandler(svc, logger),
		Manage:             appointments.NewManageHandler(svc, logger),
		Admin:              appointments.NewAdminHandler(svc, logger),
		ZoomWebhook:        webhook,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		BookingRateLimit:   cfg.BookingRateLimit,
		BookingRateBurst:   cfg.BookingRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
