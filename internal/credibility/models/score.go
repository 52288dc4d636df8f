package models

import (
	"time"

	id "crimewatch/pkg/domain"
)

const (
	InitialScore = 100
	MinScore     = 0
	MaxScore     = 100
)

// Entry is one applied adjustment. Requested is what the caller asked for;
// Delta is what actually moved the score after clamping, so the score always
// equals clamp(InitialScore + sum of Delta).
type Entry struct {
	ReportID  id.ReportID `json:"report_id"`
	Requested int         `json:"requested"`
	Delta     int         `json:"delta"`
	Reason    string      `json:"reason"`
	AppliedAt time.Time   `json:"applied_at"`
}

// Score is a submitter's trust standing with its history, oldest first.
type Score struct {
	SubmitterID id.SubmitterID
	Value       int
	History     []Entry
}

// NewScore is the standing of a submitter with no history.
func NewScore(submitterID id.SubmitterID) *Score {
	return &Score{SubmitterID: submitterID, Value: InitialScore}
}

// Blocked reports whether new submissions must be refused.
func (s *Score) Blocked() bool {
	return s.Value <= MinScore
}

// HasEntry reports whether reportID already adjusted this score.
func (s *Score) HasEntry(reportID id.ReportID) bool {
	for _, e := range s.History {
		if e.ReportID == reportID {
			return true
		}
	}
	return false
}

func Clamp(v int) int {
	return max(MinScore, min(MaxScore, v))
}
