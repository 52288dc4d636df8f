package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
)

const (
	MaxTextLength     = 5000
	MaxLocationLength = 512
)

// Draft is a submission before verification. ReportID is optional; a
// client that retries with the same id gets the original outcome back.
type Draft struct {
	ReportID    id.ReportID
	SubmitterID id.SubmitterID
	SessionID   id.SessionID
	Text        string
	LocationRef string
	OccurredAt  time.Time
	MediaRef    string
}

// Normalize trims free-text fields in place.
func (d *Draft) Normalize() {
	d.Text = strings.TrimSpace(d.Text)
	d.LocationRef = strings.TrimSpace(d.LocationRef)
	d.MediaRef = strings.TrimSpace(d.MediaRef)
}

// Validate checks the draft against now. It has no side effects.
func (d *Draft) Validate(now time.Time) error {
	if d.SubmitterID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "submitter is required")
	}
	if d.Text == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if utf8.RuneCountInString(d.Text) > MaxTextLength {
		return dErrors.New(dErrors.CodeValidation, "text is too long")
	}
	if d.LocationRef == "" {
		return dErrors.New(dErrors.CodeValidation, "location is required")
	}
	if utf8.RuneCountInString(d.LocationRef) > MaxLocationLength {
		return dErrors.New(dErrors.CodeValidation, "location is too long")
	}
	if !d.OccurredAt.IsZero() && d.OccurredAt.After(now.Add(time.Minute)) {
		return dErrors.New(dErrors.CodeValidation, "occurred_at must not be in the future")
	}
	return nil
}

// QuarantineRecord is a rejected submission. It is terminal: never mutated
// and never promoted into the report store.
type QuarantineRecord struct {
	ID               id.ReportID
	SubmitterID      id.SubmitterID
	Text             string
	LocationRef      string
	Reasoning        string
	Confidence       float64
	CredibilityDelta int
	QuarantinedAt    time.Time
}
