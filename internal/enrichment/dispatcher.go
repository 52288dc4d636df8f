// Package enrichment runs crime-type and escalation classification for
// committed reports on a bounded worker pool.
//
// Jobs are best effort. A job that cannot finish within its budget is
// dropped and the field it would have written stays absent until someone
// re-triggers it.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"crimewatch/internal/enrichment/metrics"
	"crimewatch/internal/platform/tracing"
	"crimewatch/internal/predictor"
	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

// unknownCrimeType is sent to the escalation predictor when the report has
// no crime classification yet.
const unknownCrimeType = "Unknown"

type ReportStore interface {
	Get(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	PatchCrimeClassification(ctx context.Context, reportID id.ReportID, c models.CrimeClassification) error
	PatchEscalation(ctx context.Context, reportID id.ReportID, e models.Escalation) error
}

// LocalWriter learns about enrichment results this process wrote before
// the snapshot feed catches up.
type LocalWriter interface {
	RecordLocal(ctx context.Context, patch models.Patch)
}

type Config struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	JobTimeout     time.Duration
	AttemptTimeout time.Duration
	BaseBackoff    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:        4,
		QueueSize:      256,
		MaxRetries:     2,
		JobTimeout:     20 * time.Second,
		AttemptTimeout: 8 * time.Second,
		BaseBackoff:    time.Second,
	}
}

type Dispatcher struct {
	store      ReportStore
	crime      predictor.CrimeClassifier
	escalation predictor.EscalationPredictor
	local      LocalWriter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time

	cfg          Config
	autoEscalate bool

	mu          sync.RWMutex
	started     bool
	stopped     bool
	jobs        chan Job
	completions chan Completion
	wg          sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithLocalWriter(w LocalWriter) Option {
	return func(d *Dispatcher) {
		d.local = w
	}
}

// WithConfig overrides sizing and timing. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) {
		if cfg.Workers > 0 {
			d.cfg.Workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			d.cfg.QueueSize = cfg.QueueSize
		}
		if cfg.MaxRetries > 0 {
			d.cfg.MaxRetries = cfg.MaxRetries
		}
		if cfg.JobTimeout > 0 {
			d.cfg.JobTimeout = cfg.JobTimeout
		}
		if cfg.AttemptTimeout > 0 {
			d.cfg.AttemptTimeout = cfg.AttemptTimeout
		}
		if cfg.BaseBackoff > 0 {
			d.cfg.BaseBackoff = cfg.BaseBackoff
		}
	}
}

// WithAutoEscalation chains an escalation job after every successful crime
// classification.
func WithAutoEscalation(enabled bool) Option {
	return func(d *Dispatcher) {
		d.autoEscalate = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(store ReportStore, crime predictor.CrimeClassifier, escalation predictor.EscalationPredictor, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("report store is required")
	}
	if crime == nil || escalation == nil {
		return nil, errors.New("crime classifier and escalation predictor are required")
	}
	d := &Dispatcher{
		store:      store,
		crime:      crime,
		escalation: escalation,
		logger:     slog.New(slog.DiscardHandler),
		tracer:     tracing.Tracer("enrichment"),
		now:        time.Now,
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.jobs = make(chan Job, d.cfg.QueueSize)
	d.completions = make(chan Completion, d.cfg.QueueSize)
	return d, nil
}

// Completions delivers finished jobs. Delivery is best effort: completions
// nobody reads are dropped once the buffer is full. The channel closes
// after Stop.
func (d *Dispatcher) Completions() <-chan Completion {
	return d.completions
}

// Start launches the workers. When ctx ends each worker runs the jobs
// already queued and exits; a job in progress keeps its own timeout.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for range d.cfg.Workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.InfoContext(ctx, "classification dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
	)
}

// Stop refuses new jobs, lets workers drain what is queued and waits for
// them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	if n := len(d.jobs); n > 0 {
		d.logger.Warn("classification jobs dropped at shutdown", "jobs", n)
	}
	close(d.completions)
}

// Run starts the workers and stops them when ctx ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(ctx)
	<-ctx.Done()
	d.Stop()
	return nil
}

// Enqueue schedules a job without blocking.
func (d *Dispatcher) Enqueue(reportID id.ReportID, kind Kind) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.metrics.IncrementEnqueued(kind.String(), "stopped")
		return ErrStopped
	}
	select {
	case d.jobs <- Job{ReportID: reportID, Kind: kind}:
		d.metrics.IncrementEnqueued(kind.String(), "accepted")
		return nil
	default:
		d.metrics.IncrementEnqueued(kind.String(), "full")
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain(jobCtx)
			return
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(jobCtx, job)
		}
	}
}

// drain runs whatever is queued without waiting for more.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(ctx, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(parent context.Context, job Job) {
	d.metrics.JobStarted()
	defer d.metrics.JobFinished()
	start := d.now()

	ctx, cancel := context.WithTimeout(parent, d.cfg.JobTimeout)
	defer cancel()
	ctx, span := d.tracer.Start(ctx, "enrichment.job", trace.WithAttributes(
		attribute.String("report_id", job.ReportID.String()),
		attribute.String("kind", job.Kind.String()),
	))
	defer span.End()

	patch, err := d.execute(ctx, &job)
	if err == nil {
		err = d.write(ctx, patch)
	}

	completion := Completion{Job: job, Duration: d.now().Sub(start)}
	switch {
	case err == nil:
		completion.Outcome = OutcomeSucceeded
		completion.Patch = &patch
		if d.local != nil {
			d.local.RecordLocal(ctx, patch)
		}
		d.logger.InfoContext(ctx, "classification job succeeded",
			"report_id", job.ReportID.String(),
			"kind", job.Kind.String(),
			"attempt", job.Attempts,
		)
	case errors.Is(err, sentinel.ErrStale):
		completion.Outcome = OutcomeSuperseded
		d.logger.DebugContext(ctx, "classification result superseded by newer work",
			"report_id", job.ReportID.String(),
			"kind", job.Kind.String(),
		)
	default:
		completion.Outcome = OutcomeAbandoned
		completion.Job.LastErr = err
		tracing.RecordError(span, err)
		d.logger.DebugContext(ctx, "classification job abandoned",
			"report_id", job.ReportID.String(),
			"kind", job.Kind.String(),
			"attempt", job.Attempts,
			"error", err,
		)
	}
	d.metrics.ObserveJob(job.Kind.String(), string(completion.Outcome), completion.Duration)
	d.complete(completion)

	if completion.Outcome == OutcomeSucceeded && job.Kind == KindCrimeType && d.autoEscalate {
		if err := d.Enqueue(job.ReportID, KindEscalation); err != nil {
			d.logger.DebugContext(ctx, "escalation job not scheduled",
				"report_id", job.ReportID.String(),
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) complete(c Completion) {
	select {
	case d.completions <- c:
	default:
	}
}

// execute loads the report and calls the predictor, retrying retryable
// failures with exponential backoff inside the job budget.
func (d *Dispatcher) execute(ctx context.Context, job *Job) (models.Patch, error) {
	report, err := d.store.Get(ctx, job.ReportID)
	if err != nil {
		return models.Patch{}, err
	}

	backoff := d.cfg.BaseBackoff
	for {
		job.Attempts++
		d.metrics.IncrementAttempt(job.Kind.String())
		patch, err := d.attempt(ctx, job.Kind, report)
		if err == nil {
			return patch, nil
		}
		job.LastErr = err
		if !predictor.IsRetryable(err) || job.Attempts > d.cfg.MaxRetries {
			return models.Patch{}, err
		}
		d.logger.DebugContext(ctx, "classification attempt failed, retrying",
			"report_id", job.ReportID.String(),
			"kind", job.Kind.String(),
			"attempt", job.Attempts,
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Patch{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (d *Dispatcher) attempt(ctx context.Context, kind Kind, report *models.Report) (models.Patch, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	patch := models.Patch{ReportID: report.ID}
	switch kind {
	case KindCrimeType:
		res, err := d.crime.Classify(ctx, predictor.NewClassifyRequest(report.Text, report.LocationRef, report.IncidentTime()))
		if err != nil {
			return patch, err
		}
		patch.CrimeClassification = &models.CrimeClassification{
			Type:         res.CrimeType,
			Confidence:   res.Confidence,
			Reasoning:    res.Reasoning,
			ClassifiedAt: d.now().UTC(),
		}
	case KindEscalation:
		crimeType := unknownCrimeType
		if report.CrimeClassification != nil && report.CrimeClassification.Type != "" {
			crimeType = report.CrimeClassification.Type
		}
		res, err := d.escalation.PredictEscalation(ctx, predictor.EscalationRequest{
			Text:            report.Text,
			LocationRef:     report.LocationRef,
			CrimeType:       crimeType,
			OccurredAt:      report.IncidentTime(),
			IsUserSubmitted: true,
		})
		if err != nil {
			return patch, err
		}
		patch.Escalation = &models.Escalation{
			RiskLevel:     res.RiskLevel,
			Confidence:    res.Confidence,
			Probabilities: res.Probabilities,
			Reasoning:     res.Reasoning,
			PredictedAt:   d.now().UTC(),
		}
	default:
		return patch, ErrUnknownKind
	}
	return patch, nil
}

func (d *Dispatcher) write(ctx context.Context, patch models.Patch) error {
	switch {
	case patch.CrimeClassification != nil:
		return d.store.PatchCrimeClassification(ctx, patch.ReportID, *patch.CrimeClassification)
	case patch.Escalation != nil:
		return d.store.PatchEscalation(ctx, patch.ReportID, *patch.Escalation)
	}
	return ErrUnknownKind
}
