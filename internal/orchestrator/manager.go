package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/valinor-ai/airlock/internal/audit"
	"github.com/valinor-ai/airlock/internal/llm"
	"github.com/valinor-ai/airlock/internal/pipeline"
)

// ManagerConfig holds orchestrator configuration.
type ManagerConfig struct {
	Workers        int
	QueueSize      int
	MaxInputTokens int
	AuditTimeout   time.Duration
}

// Manager owns the job table and the work queue. Submit never waits for a
// job to run; Run drains the queue on a fixed pool of workers.
type Manager struct {
	pipeline Processor
	store    audit.Store
	cfg      ManagerConfig
	queue    chan queuedJob
	now      func() time.Time
	newID    func() string

	mu   sync.Mutex // protects jobs
	jobs map[string]*jobEntry
}

type jobEntry struct {
	job    Job
	result *pipeline.Result
}

type queuedJob struct {
	job      Job
	messages []llm.Message
}

func NewManager(p Processor, store audit.Store, cfg ManagerConfig) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 4000
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = 5 * time.Second
	}
	return &Manager{
		pipeline: p,
		store:    store,
		cfg:      cfg,
		queue:    make(chan queuedJob, cfg.QueueSize),
		now:      time.Now,
		newID:    uuid.NewString,
		jobs:     make(map[string]*jobEntry),
	}
}

// Submit validates req, records a QUEUED job and enqueues it.
func (m *Manager) Submit(_ context.Context, req SubmitRequest) (Job, error) {
	if len(req.Messages) == 0 {
		return Job{}, fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}

	messages := make([]llm.Message, len(req.Messages))
	chars := 0
	for i, msg := range req.Messages {
		if msg.Role == "" {
			msg.Role = "user"
		}
		messages[i] = msg
		chars += utf8.RuneCountInString(msg.Content)
	}
	// Roughly four characters per token; any remainder counts against the budget.
	if chars > 4*m.cfg.MaxInputTokens {
		return Job{}, fmt.Errorf("%w: ~%.2f tokens, limit %d", ErrInputTooLarge, float64(chars)/4, m.cfg.MaxInputTokens)
	}

	job := Job{
		ID:          m.newID(),
		Status:      StatusQueued,
		Department:  strings.TrimSpace(req.Department),
		SubmittedAt: m.now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = &jobEntry{job: job}
	m.mu.Unlock()

	select {
	case m.queue <- queuedJob{job: job, messages: messages}:
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return Job{}, ErrQueueFull
	}

	slog.Info("job queued", "job_id", job.ID, "department", job.Department, "messages", len(messages))
	return job, nil
}

// Run starts the worker pool. Blocks until ctx is canceled; jobs already
// running finish first, jobs still queued are abandoned.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < m.cfg.Workers; i++ {
		g.Go(func() error {
			m.worker(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-m.queue:
			m.execute(ctx, qj)
		}
	}
}

// execute runs one job to a terminal state. The job is detached from ctx
// cancellation so shutdown does not abort it midway.
func (m *Manager) execute(ctx context.Context, qj queuedJob) {
	ctx = context.WithoutCancel(ctx)
	id := qj.job.ID

	m.setStatus(id, StatusProcessing)
	started := m.now()

	res := m.process(ctx, qj)

	m.mu.Lock()
	if e, ok := m.jobs[id]; ok {
		e.job.Status = res.Status()
		e.result = &res
	}
	m.mu.Unlock()

	rec := audit.Record{
		ID:          id,
		Timestamp:   m.now().UTC(),
		Model:       res.ModelUsed,
		Savings:     res.Savings,
		Verdict:     res.VerdictLabel(),
		Output:      res.Output,
		Status:      res.Status(),
		Department:  qj.job.Department,
		PIIScrubbed: res.PIIScrubbed,
		Entities:    res.EntitiesFound,
		Issues:      res.Verdict.Issues,
	}

	auditCtx, cancel := context.WithTimeout(ctx, m.cfg.AuditTimeout)
	err := m.store.Insert(auditCtx, rec)
	cancel()
	if err != nil {
		slog.Error("audit write failed, keeping result in memory", "job_id", id, "error", err)
		return
	}

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	slog.Info("job finished",
		"job_id", id,
		"status", rec.Status,
		"verdict", rec.Verdict,
		"model", rec.Model,
		"duration_ms", m.now().Sub(started).Milliseconds(),
	)
}

func (m *Manager) process(ctx context.Context, qj queuedJob) (res pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panicked", "job_id", qj.job.ID, "panic", fmt.Sprint(r))
			res = pipeline.Errored("", fmt.Errorf("internal error: %v", r))
		}
	}()
	return m.pipeline.Process(ctx, qj.messages, qj.job.Department)
}

func (m *Manager) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.jobs[id]; ok {
		e.job.Status = status
	}
}

// Status returns the terminal projection of a job, a PROCESSING placeholder
// while it is queued or running, or ErrJobNotFound.
func (m *Manager) Status(ctx context.Context, id string) (StatusView, error) {
	m.mu.Lock()
	e, ok := m.jobs[id]
	var result *pipeline.Result
	if ok {
		result = e.result
	}
	m.mu.Unlock()

	if ok {
		if result == nil {
			return processingView(), nil
		}
		return viewFromResult(*result), nil
	}

	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, audit.ErrNotFound) {
		return StatusView{}, ErrJobNotFound
	}
	if err != nil {
		return StatusView{}, fmt.Errorf("loading job %s: %w", id, err)
	}
	return viewFromRecord(rec), nil
}

// Metrics returns totals derived from the audit store.
func (m *Manager) Metrics(ctx context.Context) (audit.Totals, error) {
	totals, err := m.store.Totals(ctx)
	if err != nil {
		return audit.Totals{}, fmt.Errorf("loading metrics: %w", err)
	}
	return totals, nil
}

// Pending returns the number of jobs held in memory.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func processingView() StatusView {
	return StatusView{Status: StatusProcessing}
}

func viewFromResult(res pipeline.Result) StatusView {
	return StatusView{
		Status:        res.Status(),
		Output:        res.Output,
		Model:         res.ModelUsed,
		Verdict:       res.VerdictLabel(),
		Savings:       res.Savings,
		PIIScrubbed:   res.PIIScrubbed,
		EntitiesFound: nonNil(res.EntitiesFound),
		Issues:        nonNil(res.Verdict.Issues),
	}
}

func viewFromRecord(rec audit.Record) StatusView {
	return StatusView{
		Status:        rec.Status,
		Output:        rec.Output,
		Model:         rec.Model,
		Verdict:       rec.Verdict,
		Savings:       rec.Savings,
		PIIScrubbed:   rec.PIIScrubbed,
		EntitiesFound: nonNil(rec.Entities),
		Issues:        nonNil(rec.Issues),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
