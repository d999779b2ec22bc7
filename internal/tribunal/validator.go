package tribunal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valinor-ai/airlock/internal/llm"
)

// LLMConfig configures the LLM validator.
type LLMConfig struct {
	Model         string        // default: "llama3.2"
	Timeout       time.Duration // default: 10s
	MaxDraftRunes int           // default: 4000
}

// LLMValidator asks a model to judge a draft against policy rules.
type LLMValidator struct {
	completer llm.Completer
	cfg       LLMConfig
}

// NewLLMValidator creates an LLM-backed validator.
func NewLLMValidator(completer llm.Completer, cfg LLMConfig) *LLMValidator {
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxDraftRunes <= 0 {
		cfg.MaxDraftRunes = 4000
	}
	return &LLMValidator{completer: completer, cfg: cfg}
}

const validatorSystemPrompt = `You are a compliance auditor. Check the content against every policy. Answer with exactly one line: PASS, or FAIL: <reason>.`

// Validate returns the model's judgment. An empty judgment is an error.
func (v *LLMValidator) Validate(ctx context.Context, draft string, rules []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	judgment, err := v.completer.Complete(ctx, llm.CompletionRequest{
		Model: v.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: validatorSystemPrompt},
			{Role: "user", Content: buildPrompt(truncateRunes(draft, v.cfg.MaxDraftRunes), rules)},
		},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("validator call: %w", err)
	}
	judgment = strings.TrimSpace(judgment)
	if judgment == "" {
		return "", errors.New("validator returned an empty judgment")
	}
	return judgment, nil
}

func buildPrompt(draft string, rules []string) string {
	var b strings.Builder
	b.WriteString("POLICIES:\n")
	if len(rules) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, r := range rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("CONTENT:\n")
	b.WriteString(draft)
	b.WriteString("\nReturn 'PASS' or 'FAIL: <Reason>'.")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
