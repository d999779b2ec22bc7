package pipeline

import (
	"github.com/valinor-ai/airlock/internal/router"
	"github.com/valinor-ai/airlock/internal/tribunal"
)

// Outcome tags how a pipeline run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeErrored   Outcome = "errored"
)

const (
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"

	VerdictError = "ERROR"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Outcome       Outcome
	Output        string
	ModelUsed     string
	Tier          router.Tier // empty when blocked before routing
	Verdict       tribunal.Verdict
	PIIScrubbed   bool
	EntitiesFound []string
	Savings       float64
	Err           error // set when Outcome is OutcomeErrored
}

// Status maps the outcome onto the job status. A blocked request is a
// designed outcome and completes normally.
func (r Result) Status() string {
	if r.Outcome == OutcomeErrored {
		return StatusError
	}
	return StatusCompleted
}

// VerdictLabel is PASS or FAIL for completed and blocked runs, ERROR otherwise.
func (r Result) VerdictLabel() string {
	if r.Outcome == OutcomeErrored {
		return VerdictError
	}
	return string(r.Verdict.Outcome)
}
