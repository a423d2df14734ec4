package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"parksync/internal/api"
	"parksync/internal/app"
	"parksync/internal/auth"
	"parksync/internal/config"
	"parksync/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		app.NewLogger(&config.Config{LogLevel: "info"}).Fatalf("invalid configuration: %v", err)
	}
	logger := app.NewLogger(cfg)

	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeStore()

	tokens := auth.NewTokenMaker(cfg.JWT.Secret, cfg.JWT.TokenTTL)

	var email service.EmailTransport
	if cfg.SendGrid.Enabled() {
		email = service.NewSendGridMailer(cfg.SendGrid)
	}
	var sms service.SMSTransport
	if cfg.Twilio.Enabled() {
		sms = service.NewTwilioTexter(cfg.Twilio)
	}
	var notifier service.Notifier = service.NoopNotifier{}
	var sender *service.SenderService
	if email != nil || sms != nil {
		sender = service.NewSenderService(email, sms, cfg.Currency, logger)
		notifier = sender
	} else {
		logger.Info("notifications disabled: no SendGrid or Twilio credentials")
	}

	var gateway service.PaymentGateway
	var stripeSvc *service.StripeService
	if cfg.Stripe.Enabled() {
		stripeSvc = service.NewStripeService(cfg.Stripe)
		gateway = stripeSvc
	} else {
		logger.Info("online payment disabled: STRIPE_SECRET_KEY not set")
	}

	authSvc := service.NewAuthService(store, tokens, logger)
	reservations := service.NewReservationService(store, notifier, logger, nil)
	payments := service.NewPaymentService(store, gateway, cfg.Currency, logger, nil)
	lots := service.NewLotService(store, logger, nil)
	reports := service.NewReportService(store, logger, nil)

	var stripeHandler *api.StripeWebhookHandler
	if stripeSvc != nil {
		stripeHandler = api.NewStripeWebhookHandler(stripeSvc, payments, logger)
	}

	if cfg.Admin.Password != "" {
		if _, err := authSvc.EnsureAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Fatalf("failed to ensure admin account: %v", err)
		}
	}

	jobs := service.NewJobService(store, notifier, cfg.Jobs.DueReminderAfter, logger, nil)
	if err := jobs.Start(cfg.Jobs.SnapshotBackfillSchedule, cfg.Jobs.DueReminderSchedule); err != nil {
		logger.Fatalf("failed to schedule jobs: %v", err)
	}

	router := api.NewRouter(api.Handlers{
		Auth:   api.NewAuthHandler(authSvc),
		User:   api.NewUserHandler(reservations, payments, nil),
		Admin:  api.NewAdminHandler(lots, reports, reservations, nil),
		Stripe: stripeHandler,
	}, tokens, store)

	var handler http.Handler = router
	handler = handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Stripe-Signature"}),
	)(handler)
	handler = handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(cfg.IsDevelopment()))(handler)
	accessLog := logger.Writer()
	defer accessLog.Close()
	handler = handlers.CombinedLoggingHandler(accessLog, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
	jobs.Stop(ctx)
	if sender != nil {
		sender.Wait()
	}
}
