package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crimewatch/internal/credibility/policy"
	"crimewatch/internal/enrichment"
	"crimewatch/internal/notify"
	"crimewatch/internal/predictor"
	"crimewatch/internal/report/models"
	dErrors "crimewatch/pkg/domain-errors"
	"crimewatch/pkg/platform/sentinel"
)

type state string

const (
	statePendingVerification state = "pending_verification"
	stateCommitted           state = "committed"
	stateRejected            state = "rejected"
	stateSuspended           state = "suspended"
)

const manualReviewReasoning = "Authenticity check unavailable; report committed pending manual review."

// Ledger reasons, also used when a retried submission re-applies its delta.
const (
	reasonFabricated = "fabricated report"
	reasonVerified   = "verified report"
)

// submission is one draft moving through the pipeline. Every transition
// leaves PendingVerification exactly once.
type submission struct {
	draft   models.Draft
	state   state
	score   int
	outcome *Outcome
}

func (sub *submission) transition(to state) error {
	if sub.state != statePendingVerification {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("submission %s cannot move from %s to %s", sub.draft.ReportID, sub.state, to))
	}
	sub.state = to
	return nil
}

func (s *Service) run(ctx context.Context, sub *submission) (*Outcome, error) {
	if err := s.checkStanding(ctx, sub); err != nil {
		return nil, err
	}
	if sub.state == stateSuspended {
		return sub.outcome, nil
	}

	verdict, verifyErr := s.verify(ctx, sub)
	var err error
	switch {
	case verifyErr != nil:
		err = s.commitForManualReview(ctx, sub, verifyErr)
	case verdict.IsFake:
		err = s.quarantineDraft(ctx, sub, verdict)
	default:
		err = s.commit(ctx, sub, verdict)
	}
	if err != nil {
		return nil, err
	}
	return sub.outcome, nil
}

// checkStanding reads the submitter's score. A blocked submitter is
// suspended with no side effects.
func (s *Service) checkStanding(ctx context.Context, sub *submission) error {
	score, err := s.ledger.GetScore(ctx, sub.draft.SubmitterID)
	if err != nil {
		return err
	}
	sub.score = score.Value
	if !score.Blocked() {
		return nil
	}
	if err := sub.transition(stateSuspended); err != nil {
		return err
	}
	sub.outcome = &Outcome{
		Status:    StatusSuspended,
		Reasoning: SuspendedReasoning,
		Score:     score.Value,
	}
	s.logger.InfoContext(ctx, "submission refused for blocked submitter",
		"submitter_id", sub.draft.SubmitterID.String(),
		"score", score.Value,
	)
	return nil
}

func (s *Service) verify(ctx context.Context, sub *submission) (*predictor.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	verdict, err := s.authenticity.Verify(ctx, predictor.VerifyRequest{
		Text:           sub.draft.Text,
		SubmitterScore: sub.score,
		LocationRef:    sub.draft.LocationRef,
		OccurredAt:     sub.draft.OccurredAt,
	})
	if err != nil {
		return nil, err
	}
	if verdict == nil {
		return nil, predictor.NewError(predictor.ErrorBadData, "authenticity", "empty verdict", nil)
	}
	return verdict, nil
}

// quarantineDraft records a fabricated submission and applies its penalty.
func (s *Service) quarantineDraft(ctx context.Context, sub *submission, verdict *predictor.Verdict) error {
	delta := s.policy.Delta(policy.Verdict{IsFake: true, Confidence: verdict.Confidence, SuggestedDelta: verdict.SuggestedDelta})
	rec := &models.QuarantineRecord{
		ID:               sub.draft.ReportID,
		SubmitterID:      sub.draft.SubmitterID,
		Text:             sub.draft.Text,
		LocationRef:      sub.draft.LocationRef,
		Reasoning:        verdict.Reasoning,
		Confidence:       verdict.Confidence,
		CredibilityDelta: delta,
		QuarantinedAt:    s.clock(ctx).UTC(),
	}
	if err := s.quarantine.Put(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "report id is already in use")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "quarantine store unavailable")
	}
	if err := sub.transition(stateRejected); err != nil {
		return err
	}

	sub.outcome = &Outcome{
		Status:     StatusRejected,
		ReportID:   rec.ID,
		Reasoning:  verdict.Reasoning,
		Confidence: verdict.Confidence,
		Delta:      delta,
		Score:      sub.score,
	}
	s.logger.InfoContext(ctx, "submission quarantined",
		"report_id", rec.ID.String(),
		"submitter_id", rec.SubmitterID.String(),
		"confidence", verdict.Confidence,
	)
	s.adjustCredibility(ctx, sub, delta, reasonFabricated)
	return nil
}

// commit makes a verified report visible and rewards the submitter.
func (s *Service) commit(ctx context.Context, sub *submission, verdict *predictor.Verdict) error {
	delta := s.policy.Delta(policy.Verdict{Confidence: verdict.Confidence, SuggestedDelta: verdict.SuggestedDelta})
	now := s.clock(ctx).UTC()
	report := s.newReport(sub, now, models.Authenticity{
		Confidence:       verdict.Confidence,
		Reasoning:        verdict.Reasoning,
		VerifiedAt:       now,
		Method:           models.MethodClassifier,
		CredibilityDelta: delta,
	})
	if err := s.create(ctx, report); err != nil {
		return err
	}
	if err := sub.transition(stateCommitted); err != nil {
		return err
	}

	sub.outcome = &Outcome{
		Status:     StatusCommitted,
		ReportID:   report.ID,
		Reasoning:  verdict.Reasoning,
		Confidence: verdict.Confidence,
		Delta:      delta,
		Score:      sub.score,
	}
	s.adjustCredibility(ctx, sub, delta, reasonVerified)
	s.afterCommit(ctx, sub, report)
	return nil
}

// commitForManualReview commits without a verdict. The submitter's score
// is left alone until a human has looked at the report.
func (s *Service) commitForManualReview(ctx context.Context, sub *submission, cause error) error {
	s.metrics.IncrementVerifyFailure(string(predictor.GetCategory(cause)))
	s.logger.WarnContext(ctx, "authenticity check failed, committing for manual review",
		"report_id", sub.draft.ReportID.String(),
		"error", cause,
	)

	now := s.clock(ctx).UTC()
	report := s.newReport(sub, now, models.Authenticity{
		Reasoning:    manualReviewReasoning,
		VerifiedAt:   now,
		ManualReview: true,
		Method:       models.MethodManualReview,
	})
	if err := s.create(ctx, report); err != nil {
		return err
	}
	if err := sub.transition(stateCommitted); err != nil {
		return err
	}
	sub.outcome = &Outcome{
		Status:       StatusCommitted,
		ReportID:     report.ID,
		Reasoning:    manualReviewReasoning,
		ManualReview: true,
		Score:        sub.score,
	}
	s.afterCommit(ctx, sub, report)
	return nil
}

func (s *Service) newReport(sub *submission, now time.Time, auth models.Authenticity) *models.Report {
	return &models.Report{
		ID:           sub.draft.ReportID,
		SubmitterID:  sub.draft.SubmitterID,
		Text:         sub.draft.Text,
		LocationRef:  sub.draft.LocationRef,
		OccurredAt:   sub.draft.OccurredAt,
		SubmittedAt:  now,
		Status:       models.StatusCommitted,
		Authenticity: auth,
		MediaRef:     sub.draft.MediaRef,
	}
}

func (s *Service) create(ctx context.Context, report *models.Report) error {
	if err := s.reports.Create(ctx, report); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "report id is already in use")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "report store unavailable")
	}
	s.logger.InfoContext(ctx, "report committed",
		"report_id", report.ID.String(),
		"submitter_id", report.SubmitterID.String(),
		"manual_review", report.Authenticity.ManualReview,
	)
	return nil
}

// adjustCredibility applies the delta once per report. A ledger that stays
// down leaves the outcome standing with a warning.
func (s *Service) adjustCredibility(ctx context.Context, sub *submission, delta int, reason string) {
	if delta == 0 {
		return
	}
	res, err := s.ledger.ApplyDelta(ctx, sub.draft.SubmitterID, delta, sub.draft.ReportID, reason)
	if err != nil {
		s.metrics.IncrementLedgerWarning()
		sub.outcome.Warning = "credibility update is pending"
		s.logger.ErrorContext(ctx, "credibility update failed after retries",
			"report_id", sub.draft.ReportID.String(),
			"submitter_id", sub.draft.SubmitterID.String(),
			"delta", delta,
			"error", err,
		)
		return
	}
	sub.outcome.Score = res.Score
}

func (s *Service) afterCommit(ctx context.Context, sub *submission, report *models.Report) {
	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(report.ID, enrichment.KindCrimeType); err != nil {
			s.metrics.IncrementEnqueueFailure()
			s.logger.WarnContext(ctx, "crime classification not scheduled",
				"report_id", report.ID.String(),
				"error", err,
			)
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, notify.CommitEvent{
			ReportID:     report.ID,
			SubmitterID:  report.SubmitterID,
			SessionID:    sub.draft.SessionID,
			LocationRef:  report.LocationRef,
			Preview:      notify.Preview(report.Text),
			ManualReview: report.Authenticity.ManualReview,
			CommittedAt:  report.SubmittedAt,
		})
	}
}
