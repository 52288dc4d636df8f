package predictor

import "context"

// Disabled stands in for a predictor with no configured endpoint. Every
// call fails without being retryable, so the intake pipeline commits for
// manual review and the dispatcher abandons its jobs at once.
type Disabled struct {
	Name string
}

func (d Disabled) err() error {
	return NewError(ErrorInternal, d.Name, "not configured", ErrNotConfigured)
}

func (d Disabled) Verify(context.Context, VerifyRequest) (*Verdict, error) {
	return nil, d.err()
}

func (d Disabled) Classify(context.Context, ClassifyRequest) (*Classification, error) {
	return nil, d.err()
}

func (d Disabled) PredictEscalation(context.Context, EscalationRequest) (*EscalationPrediction, error) {
	return nil, d.err()
}
