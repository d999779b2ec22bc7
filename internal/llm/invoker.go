package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/valinor-ai/airlock/internal/router"
)

// InvokerConfig controls model selection and retry behavior.
type InvokerConfig struct {
	Models      map[router.Tier]string
	CallTimeout time.Duration
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultModels maps tiers onto the default model names.
func DefaultModels() map[router.Tier]string {
	return map[router.Tier]string{
		router.TierFast:  "gpt-4o-mini",
		router.TierSmart: "gpt-4o",
	}
}

// Invoker calls the model for a tier, retrying transient failures with
// exponential backoff.
type Invoker struct {
	completer Completer
	cfg       InvokerConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an invoker with safe defaults.
func NewInvoker(completer Completer, cfg InvokerConfig) *Invoker {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return &Invoker{
		completer: completer,
		cfg:       cfg,
		sleep:     sleepContext,
	}
}

// Model returns the model name configured for tier.
func (i *Invoker) Model(tier router.Tier) string {
	return i.cfg.Models[tier]
}

// Invoke sends messages to the model for tier and returns the model name and
// the completion. Errors wrap ErrModelUnavailable or ErrModelTimeout; a
// cancelled parent context is returned as its own error.
func (i *Invoker) Invoke(ctx context.Context, tier router.Tier, messages []Message) (string, string, error) {
	model, ok := i.cfg.Models[tier]
	if !ok || model == "" {
		return "", "", fmt.Errorf("%w: no model configured for tier %q", ErrModelUnavailable, tier)
	}

	req := CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: i.cfg.Temperature,
		MaxTokens:   i.cfg.MaxTokens,
	}

	var lastErr error
	timedOut := false
	for attempt := 1; attempt <= i.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := i.sleep(ctx, i.retryDelay(attempt-1)); err != nil {
				return model, "", err
			}
		}

		text, err := i.call(ctx, req)
		if err == nil {
			return model, text, nil
		}
		if ctx.Err() != nil {
			return model, "", ctx.Err()
		}
		if IsPermanentError(err) {
			return model, "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}

		lastErr = err
		timedOut = isTimeout(err)
		slog.Warn("model call failed",
			"model", model,
			"attempt", attempt,
			"max_attempts", i.cfg.MaxAttempts,
			"error", err,
		)
	}

	if timedOut {
		return model, "", fmt.Errorf("%w after %d attempts: %w", ErrModelTimeout, i.cfg.MaxAttempts, lastErr)
	}
	return model, "", fmt.Errorf("%w after %d attempts: %w", ErrModelUnavailable, i.cfg.MaxAttempts, lastErr)
}

func (i *Invoker) call(ctx context.Context, req CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	defer cancel()

	text, err := i.completer.Complete(callCtx, req)
	if err != nil && callCtx.Err() == context.DeadlineExceeded && !isTimeout(err) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return text, err
}

// retryDelay returns min(MaxBackoff, MinBackoff*2^(n-1)) for the n-th retry.
func (i *Invoker) retryDelay(retry int) time.Duration {
	if retry <= 0 {
		retry = 1
	}
	multiplier := math.Pow(2, float64(retry-1))
	delay := time.Duration(float64(i.cfg.MinBackoff) * multiplier)
	if delay > i.cfg.MaxBackoff || delay <= 0 {
		delay = i.cfg.MaxBackoff
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
