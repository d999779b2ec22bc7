package tribunal

import (
	"regexp"

	"github.com/valinor-ai/airlock/internal/dlp"
)

// Pattern is a named detector over model output.
type Pattern struct {
	Name  string
	Match func(text string) bool
}

// PatternMatcher reports the first pattern that matches a draft.
type PatternMatcher struct {
	patterns []Pattern
}

// NewPatternMatcher creates a PatternMatcher from patterns, checked in order.
func NewPatternMatcher(patterns []Pattern) *PatternMatcher {
	return &PatternMatcher{patterns: patterns}
}

// Match returns the name of the first matching pattern.
func (pm *PatternMatcher) Match(text string) (string, bool) {
	for _, p := range pm.patterns {
		if p.Match(text) {
			return p.Name, true
		}
	}
	return "", false
}

func regexpPattern(name, expr string) Pattern {
	re := regexp.MustCompile(expr)
	return Pattern{Name: name, Match: re.MatchString}
}

// RefusalPatterns match canonical model refusals. Each pattern is anchored
// to the whole draft so a refusal embedded in a longer answer does not
// bypass validation.
func RefusalPatterns() []Pattern {
	const (
		apos   = `['’]`
		cannot = `(?:cannot|can not|can` + apos + `t|am unable to|won` + apos + `t)`
		tail   = `(?:help|assist)(?: you)? with (?:that|this)(?: request)?\s*[.!]?\s*$`
	)
	raw := []struct {
		name    string
		pattern string
	}{
		{"refusal_plain", `(?i)^\s*i ` + cannot + ` ` + tail},
		{"refusal_apology", `(?i)^\s*(?:i` + apos + `m|i am) sorry,? (?:but )?i ` + cannot + ` ` + tail},
	}

	patterns := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, regexpPattern(r.name, r.pattern))
	}
	return patterns
}

// LeakPatterns detect credentials in model output: every secret detector
// from the dlp package plus explicit credential assignments.
func LeakPatterns() []Pattern {
	secrets := dlp.SecretPatterns()
	patterns := make([]Pattern, 0, len(secrets)+1)
	for _, s := range secrets {
		patterns = append(patterns, Pattern{
			Name:  s.Label,
			Match: func(text string) bool { return len(s.Find(text)) > 0 },
		})
	}
	patterns = append(patterns, regexpPattern(
		"credential_assignment",
		`(?i)(?:password|passwd|pwd|secret|api[_-]?key|token)\s*[:=]\s*["']?[^\s"'<>]+`,
	))
	return patterns
}

// failJudgment matches FAIL, FAILED, FAILS or UNSAFE as a whole word anywhere
// in the judgment.
var failJudgment = regexp.MustCompile(`(?i)\b(?:fail(?:ed|s)?|unsafe)\b`)

// IsFailJudgment reports whether a validator judgment is a failure.
func IsFailJudgment(judgment string) bool {
	return failJudgment.MatchString(judgment)
}
