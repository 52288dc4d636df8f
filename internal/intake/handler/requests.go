package handler

import (
	"strings"
	"time"

	dErrors "crimewatch/pkg/domain-errors"
)

type SubmitReportRequest struct {
	Text        string     `json:"text"`
	LocationRef string     `json:"location_ref"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	MediaRef    string     `json:"media_ref,omitempty"`
}

func (r *SubmitReportRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if strings.TrimSpace(r.LocationRef) == "" {
		return dErrors.New(dErrors.CodeValidation, "location_ref is required")
	}
	return nil
}
