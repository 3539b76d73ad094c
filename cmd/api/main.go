package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medlink/telehealth-platform/cmd/mainconfig"
	"github.com/medlink/telehealth-platform/internal/api/router"
	"github.com/medlink/telehealth-platform/internal/audit"
	"github.com/medlink/telehealth-platform/internal/availability"
	"github.com/medlink/telehealth-platform/internal/booking"
	appconfig "github.com/medlink/telehealth-platform/internal/config"
	"github.com/medlink/telehealth-platform/internal/credits"
	"github.com/medlink/telehealth-platform/internal/dispatch"
	"github.com/medlink/telehealth-platform/internal/doctors"
	"github.com/medlink/telehealth-platform/internal/notify"
	"github.com/medlink/telehealth-platform/internal/observability/metrics"
	"github.com/medlink/telehealth-platform/internal/patients"
	"github.com/medlink/telehealth-platform/internal/video"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage. Without a database URL everything runs in memory, which is
	// enough for local development and demos.
	var (
		pool         *pgxpool.Pool
		bookingRepo  booking.Repository
		windowRepo   availability.Repository
		creditStore  credits.Store
		doctorRepo   booking.DoctorDirectory
		patientRepo  booking.PatientDirectory
		notifyDocs   notify.DoctorDirectory
		notifyPats   notify.PatientDirectory
		auditService *audit.Service
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}

		bookingRepo = booking.NewPostgresRepository(pool)
		windowRepo = availability.NewPostgresRepository(pool)
		creditStore = credits.NewPostgresStore(pool)
		docs := doctors.NewPostgresRepository(pool)
		pats := patients.NewPostgresRepository(pool)
		doctorRepo, patientRepo = docs, pats
		notifyDocs, notifyPats = docs, pats
		auditService = audit.NewService(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		bookingRepo = booking.NewInMemoryRepository()
		windowRepo = availability.NewInMemoryRepository()
		creditStore = credits.NewInMemoryStore()
		docs := doctors.NewInMemoryRepository()
		pats := patients.NewInMemoryRepository()
		doctorRepo, patientRepo = docs, pats
		notifyDocs, notifyPats = docs, pats
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	// Side-effect queue: SQS in deployment, in-memory locally.
	var queuePublisher *dispatch.Publisher
	var worker *dispatch.Worker
	emailSender := buildEmailSender(ctx, cfg, logger)
	notifyService := notify.NewService(emailSender, notifyDocs, notifyPats, logger.Component("notify"))

	workerOpts := []dispatch.WorkerOption{
		dispatch.WithWorkerCount(cfg.WorkerCount),
		dispatch.WithTaskTimeout(cfg.SideEffectTimeout),
		dispatch.WithMetrics(bookingMetrics),
	}
	if cfg.UseMemoryQueue || cfg.SideEffectQueueURL == "" {
		queue := dispatch.NewMemoryQueue(256)
		queuePublisher = dispatch.NewPublisher(queue, logger.Component("dispatch"))
		worker = dispatch.NewWorker(queue, notifyService, logger.Component("dispatch"), workerOpts...)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SideEffectQueueURL)
		queuePublisher = dispatch.NewPublisher(queue, logger.Component("dispatch"))
		worker = dispatch.NewWorker(queue, notifyService, logger.Component("dispatch"), workerOpts...)
	}
	worker.Start(ctx)

	// Booking coordinator.
	serviceOpts := []booking.ServiceOption{
		booking.WithPublisher(queuePublisher),
		booking.WithMetrics(bookingMetrics),
	}
	if auditService != nil {
		serviceOpts = append(serviceOpts, booking.WithAuditor(auditService))
	}
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, slot cache disabled", "error", err)
		} else {
			serviceOpts = append(serviceOpts, booking.WithSlotCache(booking.NewSlotCache(redisClient, cfg.SlotCacheTTL)))
		}
	}
	if cfg.VideoAPIBaseURL != "" && cfg.VideoAPIKey != "" {
		provider := video.NewHTTPProvider(cfg.VideoAPIKey, cfg.VideoAPIBaseURL, logger.Component("video"))
		serviceOpts = append(serviceOpts, booking.WithVideoProvider(provider))
	}

	bookingService := booking.NewService(
		bookingRepo,
		windowRepo,
		creditStore,
		doctorRepo,
		patientRepo,
		booking.Options{
			GranularityMinutes:   cfg.SlotGranularityMinutes,
			DurationMinutes:      cfg.DefaultDurationMinutes,
			LowBalanceThreshold:  cfg.LowBalanceThreshold,
			CancelRefundLeadTime: cfg.CancelRefundLeadTime,
			ConsultationTypes:    cfg.ConsultationTypes,
			VideoTimeout:         cfg.VideoTimeout,
		},
		logger.Component("booking"),
		serviceOpts...,
	)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(bookingService, logger.Component("booking")),
		ScheduleHandler:    availability.NewHandler(windowRepo, logger.Component("availability")),
		MetricsHandler:     promhttp.Handler(),
		AuthSecret:         cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop consuming side effects after the HTTP surface is drained.
	cancel()
	worker.Wait()

	logger.Info("server stopped")
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger.Component("notify"))
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but not configured, falling back to stub sender")
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Warn("SES selected but AWS config failed, falling back to stub sender", "error", err)
			break
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger.Component("notify"))
		if sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger.Component("notify"))
}
