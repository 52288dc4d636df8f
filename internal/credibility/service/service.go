// Package service is the Credibility Ledger: the single owner of submitter
// trust scores. Writes are idempotent per report id, so the intake pipeline
// can retry them freely.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crimewatch/internal/credibility/metrics"
	"crimewatch/internal/credibility/models"
	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
	"crimewatch/pkg/platform/sentinel"
)

type Store interface {
	Get(ctx context.Context, submitterID id.SubmitterID) (*models.Score, error)
	Apply(ctx context.Context, submitterID id.SubmitterID, entry models.Entry) (int, bool, error)
}

// Result is the outcome of ApplyDelta. Applied is false when the report id
// had already adjusted the score.
type Result struct {
	Score   int
	Applied bool
}

type Service struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

type Option func(*Service)

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

// WithRetry sets how many times a failed store write is attempted and the
// initial backoff between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		s.backoff = backoff
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("credibility store is required")
	}
	s := &Service{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		attempts: 3,
		backoff:  100 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetScore returns the submitter's standing. Unknown submitters start at
// models.InitialScore with no history.
func (s *Service) GetScore(ctx context.Context, submitterID id.SubmitterID) (*models.Score, error) {
	score, err := s.store.Get(ctx, submitterID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewScore(submitterID), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "credibility ledger unavailable")
	}
	return score, nil
}

// ApplyDelta adjusts the score by delta, keyed by reportID. A repeated
// reportID is a no-op. Store failures are retried with exponential backoff;
// when all attempts fail the error carries CodeUnavailable.
func (s *Service) ApplyDelta(ctx context.Context, submitterID id.SubmitterID, delta int, reportID id.ReportID, reason string) (Result, error) {
	entry := models.Entry{
		ReportID:  reportID,
		Requested: delta,
		Reason:    reason,
		AppliedAt: s.now().UTC(),
	}

	var lastErr error
	wait := s.backoff
	for attempt := 1; attempt <= s.attempts; attempt++ {
		score, applied, err := s.store.Apply(ctx, submitterID, entry)
		if err == nil {
			s.metrics.IncrementApplied(delta, applied)
			if applied && score <= models.MinScore {
				s.metrics.IncrementBlocked()
				s.logger.InfoContext(ctx, "submitter reached zero credibility",
					"submitter_id", submitterID.String(),
					"report_id", reportID.String(),
				)
			}
			return Result{Score: score, Applied: applied}, nil
		}
		lastErr = err
		if attempt == s.attempts {
			break
		}
		s.metrics.IncrementRetry()
		s.logger.WarnContext(ctx, "credibility write failed, retrying",
			"submitter_id", submitterID.String(),
			"report_id", reportID.String(),
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return Result{}, dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "credibility ledger write abandoned")
		case <-time.After(wait):
		}
		wait *= 2
	}

	s.metrics.IncrementExhausted()
	s.logger.ErrorContext(ctx, "credibility write exhausted retries",
		"submitter_id", submitterID.String(),
		"report_id", reportID.String(),
		"delta", delta,
		"error", lastErr,
	)
	return Result{}, dErrors.Wrap(lastErr, dErrors.CodeUnavailable, "credibility ledger write failed")
}
