package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"schoolsite-app/config"
	"schoolsite-app/database"
	routes "schoolsite-app/internal/app/http"
	"schoolsite-app/internal/app/http/middleware"
	authapi "schoolsite-app/internal/api/auth"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/billing"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/cache"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/metrics"
	"schoolsite-app/internal/infra/stripe"
	"schoolsite-app/internal/jobs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	log := logger.New(logger.Config{
		Level:       config.LOG_LEVEL,
		Development: !config.IsProduction(),
		ServiceName: "schoolsite-app",
	})
	logger.Init(log)
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database.InitDB(config.DB_URL, log)
	defer database.Close()

	subs := subscriptions.NewGormStore(database.DB)
	schools := tenants.NewGormStore(database.DB)

	resolver := tenants.NewResolver(schools, tenants.ResolverConfig{
		BaseDomains:        config.BASE_DOMAINS,
		ReservedSubdomains: config.RESERVED_SUBDOMAINS,
		CacheTTL:           config.TENANT_CACHE_TTL,
	}, log)
	if config.REDIS_URL != "" {
		tc, err := cache.New(ctx, config.REDIS_URL)
		if err != nil {
			// resolution still works against the database
			log.Warn("tenant cache disabled", zap.Error(err))
		} else {
			defer tc.Close()
			resolver.WithCache(tc)
		}
	}

	engine := features.NewEngine(features.DefaultCatalog())
	consent := access.GuardConfig{
		PrivacyVersion: config.PRIVACY_VERSION,
		TermsVersion:   config.TERMS_VERSION,
	}
	events := bookings.NewGormStore(database.DB)
	comms := communications.NewGormStore(database.DB)
	sweeper := jobs.NewSweeper(comms, subs, log)

	deps := routes.Deps{
		Users:          users.NewGormStore(database.DB),
		Schools:        schools,
		Subscriptions:  subs,
		Plans:          plans.NewGormStore(database.DB),
		Events:         events,
		Communications: comms,
		BillingEvents:  billing.NewGormEventLog(database.DB),

		Resolver:  resolver,
		Engine:    engine,
		Guard:     access.NewGuard(engine, consent),
		Consent:   consent,
		Allocator: bookings.NewAllocator(events),
		Sweeper:   sweeper,

		Auth: authapi.Config{
			TrialDays:          config.TRIAL_DAYS,
			MaxSchools:         config.DEFAULT_MAX_SCHOOLS,
			ReservedSubdomains: config.RESERVED_SUBDOMAINS,
			Google: authapi.GoogleConfig{
				ClientID:         config.GOOGLE_CLIENT_ID,
				ClientSecret:     config.GOOGLE_CLIENT_SECRET,
				RedirectURL:      config.GOOGLE_REDIRECT_URL,
				FrontendRedirect: config.GOOGLE_FRONTEND_REDIRECT,
				SecureCookies:    config.IsProduction(),
			},
		},
		AuthTx:              authapi.NewGormTransactor(database.DB),
		StripeProductID:     config.STRIPE_PRODUCT_ID,
		StripeWebhookSecret: config.STRIPE_WEBHOOK_SECRET,
		CronSecret:          config.CRON_SECRET,
	}
	if config.STRIPE_SECRET_KEY != "" {
		deps.Prices = stripe.NewAPIPriceSource(config.STRIPE_SECRET_KEY)
	}

	if config.SWEEP_INTERVAL > 0 {
		sched, err := jobs.NewScheduler(sweeper, config.SWEEP_INTERVAL, log)
		if err != nil {
			log.Fatal("failed to create scheduler", zap.Error(err))
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), metrics.Middleware())

	// CORS goes BEFORE the routes
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, middleware.ForwardedPathHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
