// Package audit persists one immutable record per finished job and derives
// the gateway's aggregate metrics from those records.
package audit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("audit record not found")
	ErrDuplicate = errors.New("audit record already exists")
)

// Record is the durable outcome of one processed job.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model"`
	Savings     float64   `json:"savings"`
	Verdict     string    `json:"verdict"`
	Output      string    `json:"output"`
	Status      string    `json:"status"`
	Department  string    `json:"department"`
	PIIScrubbed bool      `json:"pii_scrubbed"`
	Entities    []string  `json:"entities_found"`
	Issues      []string  `json:"issues"`
}

// Totals are aggregates over every stored record.
type Totals struct {
	TotalSavings float64 `json:"total_savings"`
	TotalQueries int64   `json:"total_queries"`
}

// Store is the audit persistence contract. Records are insert-only and keyed
// by ID; inserting an existing ID returns ErrDuplicate.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Totals(ctx context.Context) (Totals, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
