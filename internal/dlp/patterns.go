package dlp

import "regexp"

// Pattern is a named regex detector.
type Pattern struct {
	Label    string
	Severity Severity
	Regexp   *regexp.Regexp
	// Adjacent, when set, rejects a match whose neighbouring byte on either
	// side satisfies it. RE2 has no lookaround, so boundaries are checked here.
	Adjacent func(b byte) bool
	// Validate, when set, must accept the matched text for the finding to be kept.
	Validate func(match string) bool
}

// SecretPatterns returns the credential detectors. Every match is HIGH.
// The order is the registration order used to break ties between identical spans.
func SecretPatterns() []Pattern {
	raw := []struct {
		label    string
		pattern  string
		adjacent func(byte) bool
	}{
		{"AWS_KEY", `AKIA[0-9A-Z]{16}`, isUpperAlnum},
		{"STRIPE_KEY", `(?:sk|pk)_(?:test|live)_[0-9a-zA-Z]{24}`, nil},
		{"ANTHROPIC_KEY", `sk-ant-[A-Za-z0-9_\-]{20,}`, nil},
		{"OPENAI_KEY", `sk-[A-Za-z0-9_\-]{20,}`, nil},
		{"GITHUB_TOKEN", `gh[pousr]_[A-Za-z0-9]{36,}`, nil},
		{"SLACK_TOKEN", `xox[baprs]-[A-Za-z0-9\-]{10,}`, nil},
		{"JWT", `eyJ[A-Za-z0-9_\-]*\.eyJ[A-Za-z0-9_\-]*\.[A-Za-z0-9_\-]*`, nil},
		{"PRIVATE_KEY", `-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`, nil},
	}

	patterns := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, Pattern{
			Label:    r.label,
			Severity: SeverityHigh,
			Regexp:   regexp.MustCompile(r.pattern),
			Adjacent: r.adjacent,
		})
	}
	return patterns
}

// PIIPatterns returns the personal-data detectors. Every match is MEDIUM.
func PIIPatterns() []Pattern {
	return []Pattern{
		{
			Label:    "CREDIT_CARD",
			Severity: SeverityMedium,
			Regexp:   regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`),
			Validate: LuhnValid,
		},
		{
			Label:    "US_SSN",
			Severity: SeverityMedium,
			Regexp:   regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		},
		{
			Label:    "EMAIL",
			Severity: SeverityMedium,
			Regexp:   regexp.MustCompile(`[a-zA-Z0-9_.+\-]+@[a-zA-Z0-9\-]+\.[a-zA-Z0-9\-.]+`),
		},
		{
			Label:    "PHONE",
			Severity: SeverityMedium,
			Regexp:   regexp.MustCompile(`(?:\+[0-9]{1,3}[ .\-]?)?(?:\([0-9]{3}\)|\b[0-9]{3})[ .\-]?[0-9]{3}[ .\-][0-9]{4}\b`),
		},
	}
}

// DefaultPatterns returns secret patterns followed by PII patterns.
func DefaultPatterns() []Pattern {
	return append(SecretPatterns(), PIIPatterns()...)
}

// Find returns every accepted match of p in text.
func (p Pattern) Find(text string) []Finding {
	var out []Finding
	for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start >= end {
			continue
		}
		if p.Adjacent != nil {
			if start > 0 && p.Adjacent(text[start-1]) {
				continue
			}
			if end < len(text) && p.Adjacent(text[end]) {
				continue
			}
		}
		if p.Validate != nil && !p.Validate(text[start:end]) {
			continue
		}
		out = append(out, Finding{Start: start, End: end, Label: p.Label, Severity: p.Severity})
	}
	return out
}

func isUpperAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
