package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/valinor-ai/airlock/internal/audit"
	"github.com/valinor-ai/airlock/internal/auth"
	"github.com/valinor-ai/airlock/internal/dlp"
	"github.com/valinor-ai/airlock/internal/llm"
	"github.com/valinor-ai/airlock/internal/orchestrator"
	"github.com/valinor-ai/airlock/internal/pipeline"
	"github.com/valinor-ai/airlock/internal/platform/config"
	"github.com/valinor-ai/airlock/internal/platform/middleware"
	"github.com/valinor-ai/airlock/internal/platform/server"
	"github.com/valinor-ai/airlock/internal/platform/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load("config.yaml", ".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("airlock starting",
		"port", cfg.Server.Port,
		"audit_engine", cfg.Audit.Engine,
		"router_mode", cfg.Router.Mode,
	)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openAuditStore(ctx, cfg.Audit, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	modelClient := llm.NewClient(llm.ClientConfig{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Timeout: cfg.Model.Timeout,
	})

	rt, err := buildRouter(cfg.Router, modelClient)
	if err != nil {
		return err
	}

	policies, verifier, err := buildTribunal(cfg.Tribunal)
	if err != nil {
		return err
	}

	invoker := llm.NewInvoker(modelClient, invokerConfig(cfg.Model))
	p := pipeline.New(buildSanitizer(cfg.NER), rt, invoker, verifier)

	manager := orchestrator.NewManager(p, store, orchestrator.ManagerConfig{
		Workers:        cfg.Jobs.Workers,
		QueueSize:      cfg.Jobs.QueueSize,
		MaxInputTokens: cfg.Jobs.MaxInputTokens,
		AuditTimeout:   cfg.Jobs.AuditTimeout,
	})

	keys := cfg.Auth.AllKeys()
	if len(keys) == 0 {
		slog.Warn("no api keys configured, accepting the default development key")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.PerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
	}

	addr := cfg.Server.Addr()
	srv := server.New(addr, server.Dependencies{
		Store:              store,
		Keys:               auth.NewKeys(keys),
		JobHandler:         orchestrator.NewHandler(manager),
		AuditHandler:       audit.NewHandler(store),
		RateLimiter:        limiter,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(gctx)
	})
	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx)
		})
	}
	if cfg.Tribunal.WatchPolicy && policies != nil && cfg.Tribunal.PolicyFile != "" {
		g.Go(func() error {
			if err := policies.Watch(gctx); err != nil {
				// Hot reload is optional; the loaded rules stay in force.
				slog.Warn("policy watch disabled", "path", cfg.Tribunal.PolicyFile, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return srv.Start(gctx)
	})

	slog.Info("server ready", "addr", addr, "workers", cfg.Jobs.Workers)
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("airlock stopped", "unfinished_jobs", manager.Pending())
	return nil
}

// buildSanitizer returns the redaction engine, with the NER sidecar when enabled.
func buildSanitizer(cfg config.NERConfig) *dlp.Engine {
	return dlp.NewEngine(dlp.WithRecognizer(recognizerFor(cfg)))
}
