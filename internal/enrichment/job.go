package enrichment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
)

// Kind selects which predictor a job calls and which field group it writes.
type Kind string

const (
	KindCrimeType  Kind = "crime_type"
	KindEscalation Kind = "escalation"
)

// ParseKind accepts the kind names used in URLs ("crime_type", "escalation").
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCrimeType:
		return KindCrimeType, nil
	case KindEscalation:
		return KindEscalation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	return string(k)
}

var (
	ErrQueueFull   = errors.New("classification queue is full")
	ErrStopped     = errors.New("dispatcher stopped")
	ErrUnknownKind = errors.New("unknown classification kind")
)

// Job is ephemeral. Its only durable effect is a field-scoped write to the
// report it names.
type Job struct {
	ReportID id.ReportID
	Kind     Kind
	Attempts int
	LastErr  error
}

// Outcome of a finished job.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeAbandoned  Outcome = "abandoned"
)

// Completion reports a finished job. Patch is set when the job wrote its
// field group.
type Completion struct {
	Job      Job
	Outcome  Outcome
	Patch    *models.Patch
	Duration time.Duration
}
