package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
)

func TestDraftValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := func() Draft {
		return Draft{
			SubmitterID: id.SubmitterID(uuid.New()),
			Text:        "Two people broke a shop window on Main St",
			LocationRef: "main-st-12",
		}
	}

	tests := []struct {
		name   string
		mutate func(d *Draft)
		ok     bool
	}{
		{"valid", func(d *Draft) {}, true},
		{"missing submitter", func(d *Draft) { d.SubmitterID = id.SubmitterID{} }, false},
		{"empty text", func(d *Draft) { d.Text = "" }, false},
		{"oversized text", func(d *Draft) { d.Text = string(make([]rune, MaxTextLength+1)) }, false},
		{"missing location", func(d *Draft) { d.LocationRef = "" }, false},
		{"future occurrence", func(d *Draft) { d.OccurredAt = now.Add(time.Hour) }, false},
		{"past occurrence", func(d *Draft) { d.OccurredAt = now.Add(-time.Hour) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			err := d.Validate(now)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestDraftNormalize(t *testing.T) {
	d := Draft{Text: "  hello  ", LocationRef: "\tloc\n"}
	d.Normalize()
	assert.Equal(t, "hello", d.Text)
	assert.Equal(t, "loc", d.LocationRef)
}

func TestReportClone_DoesNotShareEnrichment(t *testing.T) {
	r := &Report{CrimeClassification: &CrimeClassification{Type: "Theft"}}
	c := r.Clone()
	c.CrimeClassification.Type = "Assault"
	assert.Equal(t, "Theft", r.CrimeClassification.Type)
}

func TestParseRiskLevel(t *testing.T) {
	lvl, err := ParseRiskLevel("HIGH")
	assert.NoError(t, err)
	assert.Equal(t, RiskHigh, lvl)

	_, err = ParseRiskLevel("severe")
	assert.Error(t, err)
}
