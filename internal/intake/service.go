// Package intake turns a submitter's draft into either a committed report
// or a quarantined one. Nothing becomes visible to reviewers before the
// authenticity check has had its say.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	credmodels "crimewatch/internal/credibility/models"
	"crimewatch/internal/credibility/policy"
	credservice "crimewatch/internal/credibility/service"
	"crimewatch/internal/enrichment"
	"crimewatch/internal/intake/metrics"
	"crimewatch/internal/notify"
	"crimewatch/internal/platform/tracing"
	"crimewatch/internal/predictor"
	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
	"crimewatch/pkg/platform/sentinel"
	"crimewatch/pkg/requestcontext"
)

type Ledger interface {
	GetScore(ctx context.Context, submitterID id.SubmitterID) (*credmodels.Score, error)
	ApplyDelta(ctx context.Context, submitterID id.SubmitterID, delta int, reportID id.ReportID, reason string) (credservice.Result, error)
}

type ReportStore interface {
	Create(ctx context.Context, r *models.Report) error
	Get(ctx context.Context, reportID id.ReportID) (*models.Report, error)
}

type QuarantineStore interface {
	Put(ctx context.Context, rec *models.QuarantineRecord) error
	Get(ctx context.Context, recordID id.ReportID) (*models.QuarantineRecord, error)
}

type Dispatcher interface {
	Enqueue(reportID id.ReportID, kind enrichment.Kind) error
}

type Notifier interface {
	Publish(ctx context.Context, event notify.CommitEvent)
}

type Service struct {
	ledger       Ledger
	authenticity predictor.Authenticity
	reports      ReportStore
	quarantine   QuarantineStore
	dispatcher   Dispatcher
	notifier     Notifier
	policy       policy.Policy

	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
	verifyTimeout time.Duration

	inflight sync.Map
}

type Option func(*Service)

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithPolicy sets the reward policy. The default is policy.DefaultBanded.
func WithPolicy(p policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.verifyTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the request-scoped time used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(ledger Ledger, authenticity predictor.Authenticity, reports ReportStore, quarantine QuarantineStore, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("credibility ledger is required")
	}
	if authenticity == nil {
		return nil, errors.New("authenticity classifier is required")
	}
	if reports == nil || quarantine == nil {
		return nil, errors.New("report and quarantine stores are required")
	}
	s := &Service{
		ledger:        ledger,
		authenticity:  authenticity,
		reports:       reports,
		quarantine:    quarantine,
		policy:        policy.DefaultBanded(),
		logger:        slog.New(slog.DiscardHandler),
		tracer:        tracing.Tracer("intake"),
		verifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit runs a draft through the pipeline. Suspended and rejected
// submissions are outcomes, not errors; errors mean nothing was decided.
//
// A draft carrying a ReportID that was already decided returns the stored
// outcome without calling the classifier again.
func (s *Service) Submit(ctx context.Context, draft models.Draft) (*Outcome, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "intake.submit", trace.WithAttributes(
		attribute.String("submitter_id", draft.SubmitterID.String()),
	))
	defer span.End()

	draft.Normalize()
	if err := draft.Validate(s.clock(ctx)); err != nil {
		s.metrics.IncrementValidationError()
		return nil, err
	}

	if draft.ReportID.IsNil() {
		draft.ReportID = id.NewReportID()
	} else {
		if _, busy := s.inflight.LoadOrStore(draft.ReportID, struct{}{}); busy {
			return nil, dErrors.New(dErrors.CodeConflict, "a submission with this id is already in progress")
		}
		defer s.inflight.Delete(draft.ReportID)

		outcome, err := s.replay(ctx, draft)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
		if outcome != nil {
			span.SetAttributes(attribute.Bool("replayed", true))
			return outcome, nil
		}
	}
	span.SetAttributes(attribute.String("report_id", draft.ReportID.String()))

	outcome, err := s.run(ctx, &submission{draft: draft, state: statePendingVerification})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", string(outcome.Status)))
	s.metrics.ObserveOutcome(string(outcome.Status), time.Since(start))
	return outcome, nil
}

func (s *Service) clock(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requestcontext.Now(ctx)
}

// replay returns the recorded outcome for a report id that was already
// decided, or nil if the id is new. The recorded delta is applied again;
// the ledger ignores it if the first attempt already landed.
func (s *Service) replay(ctx context.Context, draft models.Draft) (*Outcome, error) {
	var (
		outcome *Outcome
		reason  string
	)

	report, err := s.reports.Get(ctx, draft.ReportID)
	switch {
	case err == nil:
		if report.SubmitterID != draft.SubmitterID {
			return nil, dErrors.New(dErrors.CodeConflict, "report id is already in use")
		}
		outcome = &Outcome{
			Status:       StatusCommitted,
			ReportID:     report.ID,
			Reasoning:    report.Authenticity.Reasoning,
			Confidence:   report.Authenticity.Confidence,
			ManualReview: report.Authenticity.ManualReview,
			Delta:        report.Authenticity.CredibilityDelta,
			Replayed:     true,
		}
		reason = reasonVerified
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "report store unavailable")
	}

	if outcome == nil {
		rec, err := s.quarantine.Get(ctx, draft.ReportID)
		switch {
		case err == nil:
			if rec.SubmitterID != draft.SubmitterID {
				return nil, dErrors.New(dErrors.CodeConflict, "report id is already in use")
			}
			outcome = &Outcome{
				Status:     StatusRejected,
				ReportID:   rec.ID,
				Reasoning:  rec.Reasoning,
				Confidence: rec.Confidence,
				Delta:      rec.CredibilityDelta,
				Replayed:   true,
			}
			reason = reasonFabricated
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, nil
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "quarantine store unavailable")
		}
	}

	if outcome.Delta != 0 {
		res, err := s.ledger.ApplyDelta(ctx, draft.SubmitterID, outcome.Delta, draft.ReportID, reason)
		if err == nil {
			outcome.Score = res.Score
			s.logReplay(ctx, outcome, res.Applied)
			return outcome, nil
		}
		s.metrics.IncrementLedgerWarning()
		outcome.Warning = "credibility update is pending"
		s.logger.ErrorContext(ctx, "credibility update failed on replay",
			"report_id", draft.ReportID.String(),
			"submitter_id", draft.SubmitterID.String(),
			"delta", outcome.Delta,
			"error", err,
		)
	}

	score, err := s.ledger.GetScore(ctx, draft.SubmitterID)
	if err != nil {
		return nil, err
	}
	outcome.Score = score.Value
	s.logReplay(ctx, outcome, false)
	return outcome, nil
}

func (s *Service) logReplay(ctx context.Context, outcome *Outcome, deltaApplied bool) {
	s.logger.InfoContext(ctx, "submission replayed",
		"report_id", outcome.ReportID.String(),
		"status", string(outcome.Status),
		"delta_applied", deltaApplied,
	)
}
