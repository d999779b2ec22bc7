package audit

import (
	"encoding/json"
	"fmt"
)

// Column order shared by every SELECT and INSERT.
const recordColumns = `id, "timestamp", model, savings, verdict, output, status, department, pii_scrubbed, entities, issues`

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

// encodeLists returns the JSON text for a record's entity and issue lists.
func encodeLists(rec Record) (string, string, error) {
	entities, err := encodeList(rec.Entities)
	if err != nil {
		return "", "", err
	}
	issues, err := encodeList(rec.Issues)
	if err != nil {
		return "", "", err
	}
	return entities, issues, nil
}
