package handler

import (
	"time"

	credmodels "crimewatch/internal/credibility/models"
	"crimewatch/internal/intake"
	"crimewatch/internal/notify"
	"crimewatch/internal/report/models"
)

type SubmitResponse struct {
	Status           intake.Status `json:"status"`
	ReportID         string        `json:"report_id,omitempty"`
	Reasoning        string        `json:"reasoning,omitempty"`
	Confidence       float64       `json:"confidence"`
	ManualReview     bool          `json:"manual_review"`
	CredibilityDelta int           `json:"credibility_delta"`
	CredibilityScore int           `json:"credibility_score"`
	Warning          string        `json:"warning,omitempty"`
	Replayed         bool          `json:"replayed,omitempty"`
}

func toSubmitResponse(o *intake.Outcome) SubmitResponse {
	resp := SubmitResponse{
		Status:           o.Status,
		Reasoning:        o.Reasoning,
		Confidence:       o.Confidence,
		ManualReview:     o.ManualReview,
		CredibilityDelta: o.Delta,
		CredibilityScore: o.Score,
		Warning:          o.Warning,
		Replayed:         o.Replayed,
	}
	if !o.ReportID.IsNil() {
		resp.ReportID = o.ReportID.String()
	}
	return resp
}

type AuthenticityResponse struct {
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	Method       string    `json:"method"`
	ManualReview bool      `json:"manual_review"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// CrimeClassificationResponse always carries Status; the other fields are
// present only once the report has been analyzed.
type CrimeClassificationResponse struct {
	Status       models.EnrichmentStatus `json:"status"`
	Type         string                  `json:"type,omitempty"`
	Confidence   *float64                `json:"confidence,omitempty"`
	Reasoning    string                  `json:"reasoning,omitempty"`
	ClassifiedAt *time.Time              `json:"classified_at,omitempty"`
}

type EscalationResponse struct {
	Status        models.EnrichmentStatus `json:"status"`
	RiskLevel     models.RiskLevel        `json:"risk_level,omitempty"`
	Confidence    *float64                `json:"confidence,omitempty"`
	Probabilities *models.Probabilities   `json:"probabilities,omitempty"`
	Reasoning     string                  `json:"reasoning,omitempty"`
	PredictedAt   *time.Time              `json:"predicted_at,omitempty"`
}

type ReportResponse struct {
	ID                  string                      `json:"id"`
	SubmitterID         string                      `json:"submitter_id"`
	Text                string                      `json:"text"`
	LocationRef         string                      `json:"location_ref"`
	OccurredAt          *time.Time                  `json:"occurred_at,omitempty"`
	SubmittedAt         time.Time                   `json:"submitted_at"`
	Status              models.Status               `json:"status"`
	MediaRef            string                      `json:"media_ref,omitempty"`
	Authenticity        AuthenticityResponse        `json:"authenticity"`
	CrimeClassification CrimeClassificationResponse `json:"crime_classification"`
	Escalation          EscalationResponse          `json:"escalation"`
}

func toReportResponse(r *models.Report) ReportResponse {
	resp := ReportResponse{
		ID:          r.ID.String(),
		SubmitterID: r.SubmitterID.String(),
		Text:        r.Text,
		LocationRef: r.LocationRef,
		SubmittedAt: r.SubmittedAt,
		Status:      r.Status,
		MediaRef:    r.MediaRef,
		Authenticity: AuthenticityResponse{
			Confidence:   r.Authenticity.Confidence,
			Reasoning:    r.Authenticity.Reasoning,
			Method:       r.Authenticity.Method,
			ManualReview: r.Authenticity.ManualReview,
			VerifiedAt:   r.Authenticity.VerifiedAt,
		},
		CrimeClassification: CrimeClassificationResponse{Status: r.CrimeStatus()},
		Escalation:          EscalationResponse{Status: r.EscalationStatus()},
	}
	if !r.OccurredAt.IsZero() {
		t := r.OccurredAt
		resp.OccurredAt = &t
	}
	if c := r.CrimeClassification; c != nil {
		resp.CrimeClassification.Type = c.Type
		resp.CrimeClassification.Confidence = &c.Confidence
		resp.CrimeClassification.Reasoning = c.Reasoning
		resp.CrimeClassification.ClassifiedAt = &c.ClassifiedAt
	}
	if e := r.Escalation; e != nil {
		resp.Escalation.RiskLevel = e.RiskLevel
		resp.Escalation.Confidence = &e.Confidence
		resp.Escalation.Probabilities = &e.Probabilities
		resp.Escalation.Reasoning = e.Reasoning
		resp.Escalation.PredictedAt = &e.PredictedAt
	}
	return resp
}

type ClassificationAccepted struct {
	ReportID string `json:"report_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
}

type CredibilityEntryResponse struct {
	ReportID  string    `json:"report_id"`
	Requested int       `json:"requested"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	AppliedAt time.Time `json:"applied_at"`
}

type CredibilityResponse struct {
	SubmitterID string                     `json:"submitter_id"`
	Score       int                        `json:"score"`
	Blocked     bool                       `json:"blocked"`
	History     []CredibilityEntryResponse `json:"history"`
}

func toCredibilityResponse(s *credmodels.Score) CredibilityResponse {
	resp := CredibilityResponse{
		SubmitterID: s.SubmitterID.String(),
		Score:       s.Value,
		Blocked:     s.Blocked(),
		History:     make([]CredibilityEntryResponse, 0, len(s.History)),
	}
	for _, e := range s.History {
		resp.History = append(resp.History, CredibilityEntryResponse{
			ReportID:  e.ReportID.String(),
			Requested: e.Requested,
			Delta:     e.Delta,
			Reason:    e.Reason,
			AppliedAt: e.AppliedAt,
		})
	}
	return resp
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	Mobile    bool      `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionResponse(s *notify.Session) SessionResponse {
	return SessionResponse{
		SessionID: s.ID.String(),
		Device:    s.Label,
		Mobile:    s.Mobile,
		CreatedAt: s.CreatedAt,
	}
}

type EventsResponse struct {
	Events []notify.CommitEvent `json:"events"`
}
