// Package predictor holds the contracts and HTTP clients for the external
// services that judge and enrich reports: the authenticity classifier, the
// crime-type classifier and the escalation-risk predictor.
package predictor

//go:generate mockgen -source=predictor.go -destination=mocks/mocks.go -package=mocks Authenticity,CrimeClassifier,EscalationPredictor

import (
	"context"
	"time"

	"crimewatch/internal/report/models"
)

type VerifyRequest struct {
	Text           string    `json:"text"`
	SubmitterScore int       `json:"submitter_score"`
	LocationRef    string    `json:"location_ref"`
	OccurredAt     time.Time `json:"occurred_at,omitzero"`
}

// Verdict is the authenticity classifier's judgement. SuggestedDelta is the
// credibility adjustment it proposes; the reward policy has the final say.
type Verdict struct {
	IsFake         bool    `json:"is_fake"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	SuggestedDelta int     `json:"suggested_delta"`
}

type ClassifyRequest struct {
	Text        string `json:"text"`
	LocationRef string `json:"location_ref"`
	PartOfDay   string `json:"part_of_day"`
	DayOfWeek   string `json:"day_of_week"`
	Month       string `json:"month"`
}

type Classification struct {
	CrimeType  string  `json:"crime_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type EscalationRequest struct {
	Text            string    `json:"text"`
	LocationRef     string    `json:"location_ref"`
	CrimeType       string    `json:"crime_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	IsUserSubmitted bool      `json:"is_user_submitted"`
}

type EscalationPrediction struct {
	RiskLevel     models.RiskLevel     `json:"risk_level"`
	Confidence    float64              `json:"confidence"`
	Probabilities models.Probabilities `json:"probabilities"`
	Reasoning     string               `json:"reasoning"`
}

type Authenticity interface {
	Verify(ctx context.Context, req VerifyRequest) (*Verdict, error)
}

type CrimeClassifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)
}

type EscalationPredictor interface {
	PredictEscalation(ctx context.Context, req EscalationRequest) (*EscalationPrediction, error)
}

// NewClassifyRequest derives the time features the crime classifier expects
// from the incident time.
func NewClassifyRequest(text, locationRef string, occurredAt time.Time) ClassifyRequest {
	return ClassifyRequest{
		Text:        text,
		LocationRef: locationRef,
		PartOfDay:   PartOfDay(occurredAt),
		DayOfWeek:   DayOfWeek(occurredAt),
		Month:       Month(occurredAt),
	}
}
