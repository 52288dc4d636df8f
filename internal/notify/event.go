// Package notify fans committed reports out to active reviewer sessions.
//
// Each session holds a small ring buffer of recent commits that drops the
// oldest entry when full, so a reviewer who does not poll for a while sees
// only the most recent commits.
package notify

import (
	"time"

	id "crimewatch/pkg/domain"
)

// CommitEvent announces a report that just became visible.
type CommitEvent struct {
	ReportID     id.ReportID    `json:"report_id"`
	SubmitterID  id.SubmitterID `json:"submitter_id"`
	SessionID    id.SessionID   `json:"-"`
	LocationRef  string         `json:"location_ref"`
	Preview      string         `json:"preview"`
	ManualReview bool           `json:"manual_review"`
	CommittedAt  time.Time      `json:"committed_at"`
}

const previewLength = 140

// Preview shortens report text for notifications.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength-1]) + "…"
}
