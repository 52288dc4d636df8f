package intake

import (
	id "crimewatch/pkg/domain"
)

// Status is the terminal result of a submission.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

// SuspendedReasoning is returned verbatim to submitters who are blocked.
const SuspendedReasoning = "Your credibility score has reached 0 due to multiple fake reports. You are temporarily blocked from submitting new reports."

// Outcome is what a submitter learns about their submission.
//
// Warning is set when the outcome stands but a side effect did not finish,
// for example a credibility update that exhausted its retries.
type Outcome struct {
	Status       Status
	ReportID     id.ReportID
	Reasoning    string
	Confidence   float64
	ManualReview bool
	Delta        int
	Score        int
	Warning      string
	Replayed     bool
}
