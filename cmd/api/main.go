package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/kickoffclub/hq-backend/api/controllers"
	"github.com/kickoffclub/hq-backend/api/routes"
	"github.com/kickoffclub/hq-backend/internal/analytics"
	"github.com/kickoffclub/hq-backend/internal/billing"
	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/internal/courses"
	"github.com/kickoffclub/hq-backend/internal/email"
	"github.com/kickoffclub/hq-backend/internal/profiles"
	stripewebhook "github.com/kickoffclub/hq-backend/internal/webhooks/stripe"
	"github.com/kickoffclub/hq-backend/pkg/bigquery"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/db"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/metrics"
	"github.com/kickoffclub/hq-backend/pkg/migrate"
	"github.com/kickoffclub/hq-backend/pkg/redis"
	"github.com/kickoffclub/hq-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	profileRepo := profiles.NewRepository(dbClient.DB())

	couponService, err := coupons.NewService(coupons.ServiceParams{
		Repo:    coupons.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Billing: billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		StripeClient: billing.NewStripeClient(stripeClient),
		ProfileRepo:  profileRepo,
		Coupons:      couponService,
		Config:       cfg.Stripe,
		Logger:       logg,
		Billing:      billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	var sender email.Sender
	if cfg.Sendgrid.APIKey != "" {
		sender, err = email.NewSendgridSender(cfg.Sendgrid)
		if err != nil {
			logg.Error(context.Background(), "failed to create email sender", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "sendgrid api key not set, transactional email disabled")
	}

	courseService, err := courses.NewService(courses.ServiceParams{
		Repo:        courses.NewRepository(dbClient.DB()),
		ProfileRepo: profileRepo,
		Tx:          dbClient,
		Notifier:    sender,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create course service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		ProfileRepo:       profileRepo,
		Coupons:           couponService,
		StripeClient:      stripewebhook.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Notifier:          sender,
		Config:            cfg.Stripe,
		Logger:            logg,
		Billing:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.EventDedupTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	deps := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	var analyticsService analytics.Service
	if cfg.FeatureFlags.AnalyticsEnable && cfg.GCP.ProjectID != "" {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		writer, err := analytics.NewWriter(bqClient, analytics.WriterConfig{
			VitalsTable: cfg.BigQuery.WebVitalsTable,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics writer", err)
			os.Exit(1)
		}
		analyticsService, err = analytics.NewService(analytics.ServiceParams{
			Writer: writer,
			Logger: logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics service", err)
			os.Exit(1)
		}
		deps["bigquery"] = bqClient
	} else {
		logg.Warn(context.Background(), "web vitals reporting disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			deps,
			redisClient,
			prometheus.DefaultGatherer,
			couponService,
			billingService,
			courseService,
			analyticsService,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown(shutdownCtx))
	if analyticsService != nil {
		shutdownErr = multierr.Append(shutdownErr, analyticsService.Flush(shutdownCtx))
	}
	if shutdownErr != nil {
		logg.Error(ctx, "shutdown finished with errors", shutdownErr)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
