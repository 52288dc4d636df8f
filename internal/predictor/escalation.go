package predictor

import (
	"context"

	"crimewatch/internal/report/models"
)

// EscalationClient calls POST {base}/predict-escalation. A failed or
// malformed prediction is an error, never a default risk level.
type EscalationClient struct {
	c *client
}

func NewEscalationClient(baseURL string, opts ...Option) *EscalationClient {
	return &EscalationClient{c: newClient("escalation", baseURL, opts...)}
}

type escalationWire struct {
	RiskLevel     string                `json:"risk_level"`
	Confidence    float64               `json:"confidence"`
	Probabilities *models.Probabilities `json:"probabilities"`
	Reasoning     string                `json:"reasoning"`
}

func (e *EscalationClient) PredictEscalation(ctx context.Context, req EscalationRequest) (*EscalationPrediction, error) {
	var out escalationWire
	if err := e.c.post(ctx, "/predict-escalation", req, &out); err != nil {
		return nil, err
	}
	level, err := models.ParseRiskLevel(out.RiskLevel)
	if err != nil {
		return nil, NewError(ErrorBadData, e.c.name, "invalid risk level", err)
	}
	if !validConfidence(out.Confidence) {
		return nil, NewError(ErrorBadData, e.c.name, "confidence out of range", nil)
	}
	if out.Probabilities == nil {
		return nil, NewError(ErrorBadData, e.c.name, "missing probabilities", nil)
	}
	p := *out.Probabilities
	if !validConfidence(p.Low) || !validConfidence(p.Medium) || !validConfidence(p.High) {
		return nil, NewError(ErrorBadData, e.c.name, "probability out of range", nil)
	}
	return &EscalationPrediction{
		RiskLevel:     level,
		Confidence:    out.Confidence,
		Probabilities: p,
		Reasoning:     out.Reasoning,
	}, nil
}
