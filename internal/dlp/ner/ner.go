// Package ner provides a dlp.EntityRecognizer backed by an HTTP NER sidecar.
// Only person and location entities are reported.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valinor-ai/airlock/internal/dlp"
)

// Client calls the sidecar's /classify endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New creates a Client for the sidecar at baseURL (e.g. "http://ner:8001").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + "/classify",
		http: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spans []struct {
		Start int    `json:"start"`
		End   int    `json:"end"`
		Label string `json:"label"`
	} `json:"spans"`
}

// entityLabels maps sidecar labels onto the two kinds the gateway redacts.
var entityLabels = map[string]string{
	"PER":      "PERSON",
	"PERSON":   "PERSON",
	"LOC":      "LOCATION",
	"GPE":      "LOCATION",
	"LOCATION": "LOCATION",
}

// Recognize sends text to the sidecar. Transport and decode failures are
// returned; the dlp engine treats them as "no entities".
func (c *Client) Recognize(ctx context.Context, text string) ([]dlp.Finding, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner: unexpected status %d", resp.StatusCode)
	}

	var result classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	findings := make([]dlp.Finding, 0, len(result.Spans))
	for _, s := range result.Spans {
		label, ok := entityLabels[strings.ToUpper(s.Label)]
		if !ok {
			continue
		}
		findings = append(findings, dlp.Finding{
			Start:    s.Start,
			End:      s.End,
			Label:    label,
			Severity: dlp.SeverityMedium,
		})
	}
	return findings, nil
}
