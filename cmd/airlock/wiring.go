package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valinor-ai/airlock/internal/audit"
	"github.com/valinor-ai/airlock/internal/dlp"
	"github.com/valinor-ai/airlock/internal/dlp/ner"
	"github.com/valinor-ai/airlock/internal/llm"
	"github.com/valinor-ai/airlock/internal/platform/config"
	"github.com/valinor-ai/airlock/internal/platform/database"
	"github.com/valinor-ai/airlock/internal/policy"
	"github.com/valinor-ai/airlock/internal/router"
	"github.com/valinor-ai/airlock/internal/tribunal"
)

// openAuditStore opens the configured audit backend and ensures its schema.
// The returned func releases the underlying connection.
func openAuditStore(ctx context.Context, acfg config.AuditConfig, dcfg config.DatabaseConfig) (audit.Store, func(), error) {
	switch acfg.Engine {
	case "", "sqlite":
		db, err := database.OpenSQLite(ctx, acfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit database: %w", err)
		}
		store := audit.NewSQLiteStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("creating audit schema: %w", err)
		}
		slog.Info("audit store ready", "engine", "sqlite", "path", acfg.SQLitePath)
		return store, func() { db.Close() }, nil

	case "postgres":
		if dcfg.URL == "" {
			return nil, nil, fmt.Errorf("audit engine postgres requires database.url")
		}
		pool, err := database.Connect(ctx, dcfg.URL, dcfg.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to audit database: %w", err)
		}
		store := audit.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("creating audit schema: %w", err)
		}
		slog.Info("audit store ready", "engine", "postgres")
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit engine %q", acfg.Engine)
	}
}

// buildRouter picks the classifier for cfg.Mode.
func buildRouter(cfg config.RouterConfig, embedder router.Embedder) (*router.Router, error) {
	rcfg := router.Config{
		FastSavings:      cfg.FastSavings,
		SmartDepartments: cfg.SmartDepartments,
	}
	switch cfg.Mode {
	case "", "keyword":
		return router.New(rcfg, router.NewKeywordClassifier(cfg.Keywords)), nil
	case "embedding":
		return router.New(rcfg, router.NewEmbeddingClassifier(embedder, cfg.EmbeddingModel, nil)), nil
	default:
		return nil, fmt.Errorf("unknown router mode %q", cfg.Mode)
	}
}

// buildTribunal loads the policy file and, when enabled, the LLM validator.
// A disabled tribunal still runs the refusal and leak checks.
func buildTribunal(cfg config.TribunalConfig) (*policy.Store, *tribunal.Tribunal, error) {
	policies, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading policies: %w", err)
	}

	var validator tribunal.Validator
	if cfg.Enabled {
		client := llm.NewClient(llm.ClientConfig{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
		validator = tribunal.NewLLMValidator(client, tribunal.LLMConfig{
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}
	slog.Info("tribunal configured", "validator", cfg.Enabled, "departments", policies.Departments())
	return policies, tribunal.New(policies, validator), nil
}

func recognizerFor(cfg config.NERConfig) dlp.EntityRecognizer {
	if !cfg.Enabled || cfg.URL == "" {
		return dlp.NopRecognizer{}
	}
	return ner.New(cfg.URL, cfg.Timeout)
}

func invokerConfig(cfg config.ModelConfig) llm.InvokerConfig {
	models := llm.DefaultModels()
	if cfg.FastModel != "" {
		models[router.TierFast] = cfg.FastModel
	}
	if cfg.SmartModel != "" {
		models[router.TierSmart] = cfg.SmartModel
	}
	return llm.InvokerConfig{
		Models:      models,
		CallTimeout: cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		MinBackoff:  cfg.MinBackoff,
		MaxBackoff:  cfg.MaxBackoff,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}
