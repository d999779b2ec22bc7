package dlp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// Engine runs the detectors and applies redaction. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	patterns   []Pattern
	recognizer EntityRecognizer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecognizer enables best-effort entity recognition.
func WithRecognizer(r EntityRecognizer) Option {
	return func(e *Engine) {
		if r != nil {
			e.recognizer = r
		}
	}
}

// WithPatterns replaces the default detector set.
func WithPatterns(patterns []Pattern) Option {
	return func(e *Engine) {
		e.patterns = patterns
	}
}

// NewEngine creates an Engine with DefaultPatterns and no entity recognizer.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		patterns:   DefaultPatterns(),
		recognizer: NopRecognizer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sanitize detects findings in text, resolves overlaps and redacts every
// retained span with a <LABEL_REDACTED> placeholder. It never fails.
func (e *Engine) Sanitize(ctx context.Context, text string) Result {
	var findings []Finding
	for _, p := range e.patterns {
		findings = append(findings, p.Find(text)...)
	}
	findings = append(findings, e.recognize(ctx, text)...)

	accepted := ResolveOverlaps(findings)
	return Result{
		SafeText:      Redact(text, accepted),
		Scrubbed:      len(accepted) > 0,
		EntitiesFound: entityLabels(accepted),
		RiskLevel:     riskOf(accepted),
		Findings:      accepted,
	}
}

// recognize runs the entity recognizer, dropping errors, panics and spans
// that do not fit the text.
func (e *Engine) recognize(ctx context.Context, text string) (out []Finding) {
	if text == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("dlp: entity recognizer panicked, skipping", "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	spans, err := e.recognizer.Recognize(ctx, text)
	if err != nil {
		slog.Warn("dlp: entity recognizer failed, skipping", "error", err)
		return nil
	}

	for _, f := range spans {
		if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			continue
		}
		if !utf8.RuneStart(text[f.Start]) || (f.End < len(text) && !utf8.RuneStart(text[f.End])) {
			continue
		}
		if f.Severity == "" {
			f.Severity = SeverityMedium
		}
		out = append(out, f)
	}
	return out
}

// ResolveOverlaps returns a non-overlapping subset of findings. Findings are
// ordered by start ascending and, on equal start, longest first; a sweep then
// keeps a finding only when it begins at or after the end of the last kept
// one. Identical spans keep their input order, so the first registered
// detector wins regardless of severity.
func ResolveOverlaps(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Len() > sorted[j].Len()
	})

	out := []Finding{sorted[0]}
	current := sorted[0]
	for _, f := range sorted[1:] {
		if f.Start >= current.End {
			out = append(out, f)
			current = f
		}
	}
	return out
}

// Redact replaces each finding span with <LABEL_REDACTED>. Findings must not
// overlap. Replacement runs from the highest start down so earlier offsets
// stay valid.
func Redact(text string, findings []Finding) string {
	if len(findings) == 0 {
		return text
	}
	desc := make([]Finding, len(findings))
	copy(desc, findings)
	sort.SliceStable(desc, func(i, j int) bool {
		return desc[i].Start > desc[j].Start
	})

	out := text
	for _, f := range desc {
		out = out[:f.Start] + Placeholder(f.Label) + out[f.End:]
	}
	return out
}

// Placeholder returns the redaction token for label.
func Placeholder(label string) string {
	return "<" + strings.ToUpper(label) + "_REDACTED>"
}

func riskOf(findings []Finding) RiskLevel {
	if len(findings) == 0 {
		return RiskLow
	}
	for _, f := range findings {
		if f.Severity == SeverityHigh {
			return RiskHigh
		}
	}
	return RiskMedium
}

func entityLabels(findings []Finding) []string {
	if len(findings) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(findings))
	labels := make([]string, 0, len(findings))
	for _, f := range findings {
		if seen[f.Label] {
			continue
		}
		seen[f.Label] = true
		labels = append(labels, f.Label)
	}
	sort.Strings(labels)
	return labels
}
