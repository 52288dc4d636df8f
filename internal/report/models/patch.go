package models

import (
	"time"

	id "crimewatch/pkg/domain"
)

// FieldGroup names an independently written part of a Report.
type FieldGroup string

const (
	FieldCrimeClassification FieldGroup = "crime_classification"
	FieldEscalation          FieldGroup = "escalation"
)

// Patch is a field-scoped enrichment write. Exactly one group is set.
type Patch struct {
	ReportID            id.ReportID
	CrimeClassification *CrimeClassification
	Escalation          *Escalation
}

func (p Patch) Field() FieldGroup {
	if p.CrimeClassification != nil {
		return FieldCrimeClassification
	}
	return FieldEscalation
}

// WorkedAt is the work timestamp of the patched group.
func (p Patch) WorkedAt() time.Time {
	switch {
	case p.CrimeClassification != nil:
		return p.CrimeClassification.ClassifiedAt
	case p.Escalation != nil:
		return p.Escalation.PredictedAt
	}
	return time.Time{}
}
