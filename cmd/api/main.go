package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"callout-engine/internal/accounts"
	"callout-engine/internal/audit"
	"callout-engine/internal/auth"
	"callout-engine/internal/batchops"
	"callout-engine/internal/callflow"
	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/config"
	"callout-engine/internal/contacts"
	"callout-engine/internal/httpapi"
	"callout-engine/internal/metrics"
	"callout-engine/internal/participation"
	"callout-engine/internal/reporting"
	"callout-engine/internal/targeting"
	"callout-engine/internal/telephony"
	"callout-engine/internal/webhooks"
	"callout-engine/pkg/logger"
	"callout-engine/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// A misconfigured default flow must fail at boot, not on the first call.
	if _, err := callflow.New(cfg.Engine.DefaultCallFlowLogic); err != nil {
		log.Error("default call flow not registered", "flow", cfg.Engine.DefaultCallFlowLogic, "registered", callflow.Registered())
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Blocking queue consumers need a client without a read deadline.
	queueClient, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), ReadTimeout: -1})
	if err != nil {
		log.Error("redis queue client init failed", "err", err)
		os.Exit(1)
	}
	defer queueClient.Close()

	dialer, err := buildDialer(cfg.Telephony)
	if err != nil {
		log.Error("telephony init failed", "err", err)
		os.Exit(1)
	}

	// Stores
	accountRepo := accounts.NewMemoryRepo()
	contactRepo := contacts.NewMemoryRepo()
	calloutRepo := callout.NewMemoryRepo()
	partRepo := participation.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	eventRepo := calls.NewMemoryEventRepo()
	batchRepo := batchops.NewMemoryRepo()

	// Services
	calloutSvc := callout.NewService(calloutRepo, partRepo, batchRepo)
	partSvc := participation.NewService(partRepo, callRepo)
	var targetStore targeting.Store = targeting.NewMemoryStore(partRepo, callRepo)
	if cfg.Engine.TargetingStore == "postgres" {
		targetStore = targeting.NewPostgresStore(db)
	}
	targetEngine := targeting.NewEngine(targetStore)
	reportingSvc := reporting.NewService(calloutRepo, partRepo, callRepo)

	retryStatuses := make([]calls.Status, 0, len(cfg.Engine.DefaultRetryStatuses))
	for _, s := range cfg.Engine.DefaultRetryStatuses {
		retryStatuses = append(retryStatuses, calls.Status(s))
	}
	batchDeps := batchops.Deps{
		Callouts:             calloutRepo,
		Contacts:             contactRepo,
		Participations:       partRepo,
		Calls:                callRepo,
		Targeting:            targetEngine,
		Dialer:               dialer,
		Logger:               logger.Component(log, "batchops"),
		Limiter:              batchops.NewRedisDispatchLimiter(rdb, cfg.Engine.CalloutDispatchCap),
		DefaultRetryStatuses: retryStatuses,
		DefaultMaxCalls:      cfg.Engine.DefaultMaxCalls,
		StatusCallbackURL:    cfg.Engine.StatusCallbackURL,
	}
	batchSvc := batchops.NewService(batchRepo, batchDeps)

	queue := batchops.NewRedisQueue(queueClient, cfg.Engine.QueueKey)
	relay := batchops.NewRelay(batchRepo, queue, logger.Component(log, "outbox-relay"))
	worker := batchops.NewWorker(batchRepo, queue, batchDeps, logger.Component(log, "worker"))

	webhookSvc := webhooks.NewService(
		accountRepo, contactRepo, partRepo, calloutRepo, callRepo, eventRepo,
		cfg.Engine.DefaultCallFlowLogic,
		logger.Component(log, "webhooks"),
	)

	handlers := httpapi.Handlers{
		Auth:           authManager,
		Accounts:       accountRepo,
		Contacts:       contactRepo,
		Callouts:       calloutSvc,
		Participations: partSvc,
		BatchOps:       batchSvc,
		Reporting:      reportingSvc,
		Audit:          audit.NewService(audit.NewMemoryRepo()),
	}

	// Background engine: one relay, N workers.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(rootCtx)
	}()
	for i := 0; i < cfg.Engine.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(rootCtx)
		}()
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	registerRoutes(r, db, handlers, webhookSvc, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "workers", cfg.Engine.WorkerCount)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
}

func buildDialer(cfg config.TelephonyConfig) (telephony.Client, error) {
	switch cfg.Provider {
	case "twilio":
		return telephony.NewTwilioClient(telephony.TwilioConfig{
			BaseURL:    cfg.TwilioBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
		})
	default:
		return telephony.NewFakeClient(), nil
	}
}
