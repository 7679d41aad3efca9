package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classbook/internal/booking"
	"classbook/internal/calendar"
	"classbook/internal/capacity"
	"classbook/internal/classsession"
	"classbook/internal/config"
	"classbook/internal/db"
	"classbook/internal/events"
	"classbook/internal/logger"
	"classbook/internal/member"
	"classbook/internal/noshow"
	"classbook/internal/notification"
	"classbook/internal/obs"
	"classbook/internal/outbox"
	"classbook/internal/payment"
	"classbook/internal/server"
	"classbook/internal/user"
	"classbook/internal/waitlist"

	"github.com/redis/go-redis/v9"
)

// @title Classbook API
// @version 1.0
// @description Class capacity, waitlist and attendance engine for studios.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting Classbook application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, "classbook", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Fatalf("Failed to init tracer: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable; notifications will queue once it recovers", "error", err)
	}

	var sender notification.Sender
	switch cfg.EmailProvider {
	case "resend":
		sender = notification.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	default:
		sender = notification.NewSMTPSender(cfg.EmailFrom, cfg.EmailFromName, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	}
	notifications := notification.New(rdb, sender)
	defer notifications.Close()
	go notifications.Start(ctx)
	logger.Info("Notification service initialized", "provider", cfg.EmailProvider)

	sinks := []outbox.Sink{outbox.NewNotificationSink(notifications)}
	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		sinks = append(sinks, outbox.NewPublisherSink(publisher))
		logger.Info("Publishing domain events", "exchange", cfg.EventsExchange)
	}
	dispatcher := outbox.NewDispatcher(database, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts, cfg.OutboxPollInterval, sinks...)
	go dispatcher.Start(ctx)

	paymentLedger := payment.NewLedger(database)
	var gateway payment.Gateway = payment.NewLedgerGateway(paymentLedger)
	if cfg.PaymentProvider == "omise" {
		client, err := payment.NewOmiseClient(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			logger.Fatalf("Failed to create Omise client: %v", err)
		}
		gateway = payment.NewOmiseGateway(client, paymentLedger)
	}

	ledger := capacity.NewLedger()
	queue := waitlist.NewQueue()
	eventStore := outbox.NewStore()
	members := member.NewRepository(database)
	settings := noshow.NewSettingsRepository(database, cfg.NoShowGraceMinutes)

	bookings := booking.NewService(database, booking.NewRepository(database), ledger, queue, eventStore, members, settings)

	busy := calendar.NewStore(database)
	detector := calendar.NewDetector(database)
	sessions := classsession.NewService(database, classsession.NewRepository(database), ledger, detector, bookings)

	reconciler := noshow.NewReconciler(
		database,
		noshow.NewStore(database),
		settings,
		ledger,
		members,
		members,
		gateway,
		eventStore,
		cfg.NoShowLookback,
	)
	scheduler := noshow.NewScheduler(reconciler, settings, rdb, cfg.NoShowSweepInterval)
	go scheduler.Start(ctx)
	logger.Info("No-show reconciler scheduled", "interval", cfg.NoShowSweepInterval.String(), "default_grace", cfg.NoShowGraceWindow().String())

	users := user.NewService(database, user.NewRepository(database), cfg.JWTSecret)

	srv := server.New(cfg, server.Handlers{
		Users:    user.NewHandler(users),
		Sessions: classsession.NewHandler(sessions),
		Bookings: booking.NewHandler(bookings),
		NoShows:  noshow.NewHandler(reconciler, settings, noshow.NewAnalytics(database)),
		Calendar: calendar.NewHandler(busy, detector),
		Passes:   member.NewHandler(members),
		Queue:    notifications,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("Error flushing traces: %v", err)
	}

	logger.Info("Server stopped")
}
