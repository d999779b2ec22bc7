// Package tribunal validates model output before it is returned to the
// caller. Canned refusals pass, leaked credentials fail, and everything else
// is judged by an external validator against the department's policy rules.
// When the validator is unavailable the tribunal fails open.
package tribunal

import (
	"context"
	"log/slog"
	"strings"
)

// Outcome is the tribunal decision.
type Outcome string

const (
	OutcomePass Outcome = "PASS"
	OutcomeFail Outcome = "FAIL"
)

const (
	// IssueCredentials is reported when the draft leaks a credential.
	IssueCredentials = "Output contains credentials"
	// IssueSkipped is reported when the validator could not be reached.
	IssueSkipped = "Tribunal skipped: validator unavailable"
)

// Verdict is the result of verifying a draft. Issues is empty on a plain
// PASS and holds IssueSkipped on a fail-open PASS.
type Verdict struct {
	Outcome Outcome
	Issues  []string
}

// Passed reports whether the draft may be returned as-is.
func (v Verdict) Passed() bool {
	return v.Outcome == OutcomePass
}

// Pass returns a clean PASS verdict.
func Pass() Verdict {
	return Verdict{Outcome: OutcomePass, Issues: []string{}}
}

// Fail returns a FAIL verdict with the given issues.
func Fail(issues ...string) Verdict {
	return Verdict{Outcome: OutcomeFail, Issues: issues}
}

// Validator judges a draft against policy rules and returns the raw judgment.
type Validator interface {
	Validate(ctx context.Context, draft string, rules []string) (string, error)
}

// RuleSource supplies the rules for a department.
type RuleSource interface {
	Rules(department string) []string
}

// Tribunal chains the refusal whitelist and the leak check (fast, first) with
// the external validator (slow, last). It is safe for concurrent use.
type Tribunal struct {
	refusals  *PatternMatcher
	leaks     *PatternMatcher
	policies  RuleSource
	validator Validator // may be nil to skip the external check
}

// New creates a Tribunal with the default refusal and leak patterns.
func New(policies RuleSource, validator Validator) *Tribunal {
	return &Tribunal{
		refusals:  NewPatternMatcher(RefusalPatterns()),
		leaks:     NewPatternMatcher(LeakPatterns()),
		policies:  policies,
		validator: validator,
	}
}

// Verify runs the checks in order and stops at the first decisive one. It
// never returns an error: validator failures yield a PASS carrying
// IssueSkipped.
func (t *Tribunal) Verify(ctx context.Context, draft, department string) Verdict {
	if _, ok := t.refusals.Match(draft); ok {
		return Pass()
	}

	if name, ok := t.leaks.Match(draft); ok {
		slog.Warn("tribunal blocked credential leak", "pattern", name, "department", department)
		return Fail(IssueCredentials)
	}

	if t.validator == nil {
		return Pass()
	}

	var rules []string
	if t.policies != nil {
		rules = t.policies.Rules(department)
	}

	judgment, err := t.validator.Validate(ctx, draft, rules)
	if err != nil {
		slog.Warn("tribunal validator failed, failing open", "department", department, "error", err)
		return Verdict{Outcome: OutcomePass, Issues: []string{IssueSkipped}}
	}

	if IsFailJudgment(judgment) {
		return Fail(strings.TrimSpace(judgment))
	}
	return Pass()
}
