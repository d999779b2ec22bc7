// Package router picks the model tier for a sanitized prompt.
package router

import (
	"context"
	"log/slog"
	"strings"
)

// Tier is a model capability class.
type Tier string

const (
	TierFast  Tier = "FAST"
	TierSmart Tier = "SMART"
)

// DefaultFastSavings is the per-request saving credited to FAST routing.
const DefaultFastSavings = 0.027

// Decision is the routing outcome.
type Decision struct {
	Tier             Tier
	EstimatedSavings float64
}

// Classifier decides whether a prompt needs the SMART tier.
type Classifier interface {
	NeedsSmart(ctx context.Context, text string) (bool, error)
}

// Config configures a Router.
type Config struct {
	FastSavings float64
	// SmartDepartments always route to SMART. Compared case-insensitively.
	SmartDepartments []string
}

// Router holds no per-call state and is safe for concurrent use.
type Router struct {
	classifier Classifier
	fallback   Classifier
	savings    float64
	smartDepts map[string]bool
}

// New creates a Router. classifier may be nil, in which case the keyword
// heuristic is used directly.
func New(cfg Config, classifier Classifier) *Router {
	if cfg.FastSavings <= 0 {
		cfg.FastSavings = DefaultFastSavings
	}
	if len(cfg.SmartDepartments) == 0 {
		cfg.SmartDepartments = []string{"engineering"}
	}
	depts := make(map[string]bool, len(cfg.SmartDepartments))
	for _, d := range cfg.SmartDepartments {
		depts[strings.ToLower(strings.TrimSpace(d))] = true
	}

	keywords := NewKeywordClassifier(nil)
	if classifier == nil {
		classifier = keywords
	}
	return &Router{
		classifier: classifier,
		fallback:   keywords,
		savings:    cfg.FastSavings,
		smartDepts: depts,
	}
}

// Route returns SMART for configured departments and for prompts the
// classifier flags, FAST with the savings constant otherwise.
func (r *Router) Route(ctx context.Context, text, department string) Decision {
	if r.smartDepts[strings.ToLower(strings.TrimSpace(department))] {
		return Decision{Tier: TierSmart}
	}

	smart, err := r.classifier.NeedsSmart(ctx, text)
	if err != nil {
		slog.Warn("router: classifier failed, using keyword heuristic", "error", err)
		smart, _ = r.fallback.NeedsSmart(ctx, text)
	}
	if smart {
		return Decision{Tier: TierSmart}
	}
	return Decision{Tier: TierFast, EstimatedSavings: r.savings}
}
