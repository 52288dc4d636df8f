package models

import (
	"time"

	id "crimewatch/pkg/domain"
)

// Status is the terminal outcome of a submission.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
)

// Verification methods recorded on Authenticity.
const (
	MethodClassifier   = "classifier"
	MethodManualReview = "manual_review"
)

// Authenticity is the verdict recorded when a report is committed. A
// manual-review verdict means the classifier was unavailable and a human
// has yet to look at the report. CredibilityDelta is the ledger change the
// verdict earned; it is re-applied when the submission is retried.
type Authenticity struct {
	IsFake           bool      `json:"is_fake"`
	Confidence       float64   `json:"confidence"`
	Reasoning        string    `json:"reasoning"`
	VerifiedAt       time.Time `json:"verified_at"`
	ManualReview     bool      `json:"manual_review"`
	Method           string    `json:"method"`
	CredibilityDelta int       `json:"credibility_delta,omitempty"`
}

type CrimeClassification struct {
	Type         string    `json:"type"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// Report is a committed incident report. CrimeClassification and Escalation
// are filled in later by the dispatcher; nil means not yet analyzed.
// ObservedAt is set on snapshots read from the live feed and records when
// the store state was read.
type Report struct {
	ID                  id.ReportID
	SubmitterID         id.SubmitterID
	Text                string
	LocationRef         string
	OccurredAt          time.Time
	SubmittedAt         time.Time
	Status              Status
	Authenticity        Authenticity
	CrimeClassification *CrimeClassification
	Escalation          *Escalation
	MediaRef            string
	ObservedAt          time.Time
}

// Clone returns a deep copy so callers never share enrichment pointers.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.CrimeClassification != nil {
		c := *r.CrimeClassification
		out.CrimeClassification = &c
	}
	if r.Escalation != nil {
		e := *r.Escalation
		out.Escalation = &e
	}
	return &out
}

// IncidentTime is the time the incident happened, falling back to the
// submission time when the submitter did not give one.
func (r *Report) IncidentTime() time.Time {
	if !r.OccurredAt.IsZero() {
		return r.OccurredAt
	}
	return r.SubmittedAt
}

// Filter selects reports from List and Subscribe. The zero value matches all.
type Filter struct {
	SubmitterID id.SubmitterID
}

func (f Filter) Matches(r *Report) bool {
	return f.SubmitterID.IsNil() || f.SubmitterID == r.SubmitterID
}

// EnrichmentStatus is how an optional enrichment group is presented.
// Absent enrichment is never shown as a default value.
type EnrichmentStatus string

const (
	EnrichmentAnalyzed       EnrichmentStatus = "analyzed"
	EnrichmentNotYetAnalyzed EnrichmentStatus = "not_yet_analyzed"
)

func (r *Report) CrimeStatus() EnrichmentStatus {
	if r.CrimeClassification == nil {
		return EnrichmentNotYetAnalyzed
	}
	return EnrichmentAnalyzed
}

func (r *Report) EscalationStatus() EnrichmentStatus {
	if r.Escalation == nil {
		return EnrichmentNotYetAnalyzed
	}
	return EnrichmentAnalyzed
}
