// Package dlp finds secrets and personal data in prompt text and produces a
// redacted copy together with a risk classification.
//
// Detection is deterministic: a fixed, ordered set of regular expressions
// runs over the input, credit-card candidates are filtered with the Luhn
// checksum, and an optional entity recognizer contributes PERSON and LOCATION
// spans on a best-effort basis. Offsets are byte offsets into the UTF-8 text.
package dlp

import "context"

// Severity classifies a single finding.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// RiskLevel is the aggregate classification of a sanitized text.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Finding is a located, labeled match within the original text.
// The span is half-open: [Start, End).
type Finding struct {
	Start    int
	End      int
	Label    string
	Severity Severity
}

// Len returns the span length in bytes.
func (f Finding) Len() int {
	return f.End - f.Start
}

// Result is the outcome of sanitizing one text.
type Result struct {
	SafeText      string
	Scrubbed      bool
	EntitiesFound []string // sorted, unique labels of retained findings
	RiskLevel     RiskLevel
	Findings      []Finding // retained findings, ascending by Start
}

// EntityRecognizer is the optional named-entity capability. Implementations
// may fail; the engine swallows every failure and continues with pattern
// findings only.
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]Finding, error)
}

// NopRecognizer finds nothing. Use it to disable entity recognition.
type NopRecognizer struct{}

func (NopRecognizer) Recognize(context.Context, string) ([]Finding, error) {
	return nil, nil
}
