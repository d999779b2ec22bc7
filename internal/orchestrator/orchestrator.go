// Package orchestrator accepts governance jobs, runs them on a worker pool
// and answers status queries from memory or the audit store.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/valinor-ai/airlock/internal/llm"
	"github.com/valinor-ai/airlock/internal/pipeline"
)

// Job status constants. State machine:
// [QUEUED] → [PROCESSING] → [COMPLETED | ERROR]
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = pipeline.StatusCompleted
	StatusError      = pipeline.StatusError
)

// Error sentinels.
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrInputTooLarge  = errors.New("input exceeds token budget")
	ErrInvalidRequest = errors.New("invalid request")
	ErrQueueFull      = errors.New("job queue is full")
)

// Processor runs the governance pipeline for one job.
type Processor interface {
	Process(ctx context.Context, messages []llm.Message, department string) pipeline.Result
}

// SubmitRequest is a chat request awaiting governance.
type SubmitRequest struct {
	Messages   []llm.Message `json:"messages"`
	Department string        `json:"department"`
}

// Job is the orchestrator's view of a submission.
type Job struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Department  string    `json:"department"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusView is what a status query returns. Only Status is set while the
// job is queued or running.
type StatusView struct {
	Status        string   `json:"status"`
	Output        string   `json:"output,omitempty"`
	Model         string   `json:"model,omitempty"`
	Verdict       string   `json:"verdict,omitempty"`
	Savings       float64  `json:"savings"`
	PIIScrubbed   bool     `json:"pii_scrubbed"`
	EntitiesFound []string `json:"entities_found"`
	Issues        []string `json:"issues"`
}

// Terminal reports whether the view carries a final result.
func (v StatusView) Terminal() bool {
	return v.Status == StatusCompleted || v.Status == StatusError
}
