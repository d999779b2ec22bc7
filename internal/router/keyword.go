package router

import (
	"context"
	"strings"
)

// DefaultKeywords mark prompts that need the SMART tier.
var DefaultKeywords = []string{"code", "debug", "algorithm", "function", "script"}

// KeywordClassifier flags prompts containing any keyword as a
// case-insensitive substring.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier uses DefaultKeywords when keywords is empty.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordClassifier{keywords: lowered}
}

func (k *KeywordClassifier) NeedsSmart(_ context.Context, text string) (bool, error) {
	lower := strings.ToLower(text)
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true, nil
		}
	}
	return false, nil
}
