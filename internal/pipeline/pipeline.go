// Package pipeline runs one governance pass over a chat request: redact the
// prompt, pick a model tier, call the model and validate its answer.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/valinor-ai/airlock/internal/dlp"
	"github.com/valinor-ai/airlock/internal/llm"
	"github.com/valinor-ai/airlock/internal/router"
	"github.com/valinor-ai/airlock/internal/tribunal"
)

const (
	// ModelBlocked is reported as the model of a blocked request.
	ModelBlocked = "BLOCKED"
	// OutputBlockedCredentials is returned when the prompt carried secrets.
	OutputBlockedCredentials = "BLOCKED: Active credentials detected."
)

// ErrNoMessages is carried by an errored result for an empty request.
var ErrNoMessages = errors.New("no messages to process")

// Sanitizer redacts prompt text.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string) dlp.Result
}

// Router picks the model tier.
type Router interface {
	Route(ctx context.Context, text, department string) router.Decision
}

// Invoker calls the model for a tier.
type Invoker interface {
	Invoke(ctx context.Context, tier router.Tier, messages []llm.Message) (model, text string, err error)
}

// Verifier validates model output.
type Verifier interface {
	Verify(ctx context.Context, draft, department string) tribunal.Verdict
}

// Pipeline holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	sanitizer Sanitizer
	router    Router
	invoker   Invoker
	verifier  Verifier
}

// New creates a Pipeline from its stages.
func New(sanitizer Sanitizer, router Router, invoker Invoker, verifier Verifier) *Pipeline {
	return &Pipeline{
		sanitizer: sanitizer,
		router:    router,
		invoker:   invoker,
		verifier:  verifier,
	}
}

// Process runs the governance stages over messages. The last message is the
// active prompt. messages is never modified.
func (p *Pipeline) Process(ctx context.Context, messages []llm.Message, department string) Result {
	if len(messages) == 0 {
		return Errored("", ErrNoMessages)
	}

	last := len(messages) - 1
	scan := p.sanitizer.Sanitize(ctx, messages[last].Content)
	if scan.RiskLevel == dlp.RiskHigh {
		return Result{
			Outcome:       OutcomeBlocked,
			Output:        OutputBlockedCredentials,
			ModelUsed:     ModelBlocked,
			Verdict:       tribunal.Fail("Active credentials detected: " + strings.Join(highLabels(scan.Findings), ", ")),
			PIIScrubbed:   scan.Scrubbed,
			EntitiesFound: scan.EntitiesFound,
		}
	}

	safe := make([]llm.Message, len(messages))
	copy(safe, messages)
	safe[last].Content = scan.SafeText

	decision := p.router.Route(ctx, scan.SafeText, department)
	model, draft, err := p.invoker.Invoke(ctx, decision.Tier, safe)
	if err != nil {
		res := Errored(model, err)
		res.Tier = decision.Tier
		res.PIIScrubbed = scan.Scrubbed
		res.EntitiesFound = scan.EntitiesFound
		return res
	}

	verdict := p.verifier.Verify(ctx, draft, department)
	output := draft
	if !verdict.Passed() {
		output = "BLOCKED: " + firstIssue(verdict)
	}

	return Result{
		Outcome:       OutcomeCompleted,
		Output:        output,
		ModelUsed:     model,
		Tier:          decision.Tier,
		Verdict:       verdict,
		PIIScrubbed:   scan.Scrubbed,
		EntitiesFound: scan.EntitiesFound,
		Savings:       decision.EstimatedSavings,
	}
}

// Errored builds the result for a run that could not produce model output.
func Errored(model string, err error) Result {
	return Result{
		Outcome:       OutcomeErrored,
		Output:        "LLM Error: " + err.Error(),
		ModelUsed:     model,
		Verdict:       tribunal.Verdict{Issues: []string{err.Error()}},
		EntitiesFound: []string{},
		Err:           err,
	}
}

func highLabels(findings []dlp.Finding) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, f := range findings {
		if f.Severity == dlp.SeverityHigh && !seen[f.Label] {
			seen[f.Label] = true
			labels = append(labels, f.Label)
		}
	}
	return labels
}

func firstIssue(v tribunal.Verdict) string {
	if len(v.Issues) == 0 {
		return "Policy violation"
	}
	return v.Issues[0]
}
