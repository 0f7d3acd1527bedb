package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/audit"
	"outreach-platform/internal/auth"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/config"
	"outreach-platform/internal/events"
	"outreach-platform/internal/httpapi"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/pipeline"
	"outreach-platform/internal/qualify"
	"outreach-platform/internal/realtime"
	"outreach-platform/internal/reporting"
	"outreach-platform/pkg/logger"
	"outreach-platform/pkg/utils"

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

	// Repositories and services.
	callRepo := calls.NewPostgresRepo(db)
	leadRepo := leads.NewPostgresRepo(db)
	// TODO: move audit onto Postgres once the append-only audit_events table lands.
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	bus := events.NewRedisBus(rdb)
	publisher := events.NewPublisher(bus)

	materializer := leads.NewMaterializer(leadRepo, callRepo)
	engine := qualify.NewEngine(callRepo, materializer, publisher)
	engine.SetAuditor(auditSvc)
	reportingSvc := reporting.NewService(callRepo, leadRepo)
	analyzer := analysis.NewAnalyzer(analysis.NewLLMClient(cfg.LLM))
	processor := pipeline.NewProcessor(
		callRepo, leadRepo, analyzer, engine, reportingSvc, publisher,
		rdb, cfg.Pipeline.MaxConcurrentAnalysesPerOrg,
	)

	// Realtime registry: event fan-out plus dashboard queries.
	registry := realtime.NewRegistry(cfg.Realtime, bus)
	registry.SetQueries(&httpapi.RealtimeQueries{
		Calls:     callRepo,
		Leads:     leadRepo,
		Reporting: reportingSvc,
		Audit:     auditSvc,
		Publisher: publisher,
	})
	registry.SetSnapshot(func(ctx context.Context, organizationID, topic string) (string, any, bool) {
		campaignID, ok := realtime.CampaignFromTopic(topic)
		if !ok {
			return "", nil, false
		}
		m, err := reportingSvc.CampaignMetrics(ctx, organizationID, campaignID)
		if err != nil {
			return "", nil, false
		}
		return events.TypeCampaignMetrics, m, true
	})
	if err := registry.Open(rootCtx); err != nil {
		log.Error("realtime registry init failed", "err", err)
		os.Exit(1)
	}

	wsHandler := realtime.NewHandler(registry, authManager)

	handlers := httpapi.Handlers{
		Auth:      authManager,
		Calls:     callRepo,
		Leads:     leadRepo,
		Reporting: reportingSvc,
		Audit:     auditSvc,
		Publisher: publisher,
		Processor: processor,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, wsHandler, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	// Drain websocket sessions before the HTTP listener goes away.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
