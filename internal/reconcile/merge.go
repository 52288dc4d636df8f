package reconcile

import (
	"time"

	"crimewatch/internal/report/models"
)

// Merge combines a locally held overlay with a snapshot from the feed.
//
// Fields outside the enrichment race always come from incoming. Each field
// group (authenticity, crime classification, escalation) is resolved on
// its own: the value with the newer work timestamp wins, and a tie goes to
// incoming. When incoming lacks a group that the overlay holds, the
// overlay value survives only if it was written after incoming was
// observed; an older overlay value means the store has since dropped it.
//
// Neither argument is modified and the result shares no pointers with them.
func Merge(overlay, incoming models.Report) models.Report {
	out := *incoming.Clone()
	out.Authenticity = mergeAuthenticity(overlay.Authenticity, incoming.Authenticity, incoming.ObservedAt)
	out.CrimeClassification = mergeGroup(overlay.CrimeClassification, incoming.CrimeClassification, incoming.ObservedAt,
		func(c *models.CrimeClassification) time.Time { return c.ClassifiedAt })
	out.Escalation = mergeGroup(overlay.Escalation, incoming.Escalation, incoming.ObservedAt,
		func(e *models.Escalation) time.Time { return e.PredictedAt })
	return out
}

func mergeGroup[T any](overlay, incoming *T, observedAt time.Time, workedAt func(*T) time.Time) *T {
	switch {
	case overlay == nil && incoming == nil:
		return nil
	case overlay == nil:
		return clonePtr(incoming)
	case incoming == nil:
		if workedAt(overlay).After(observedAt) {
			return clonePtr(overlay)
		}
		return nil
	case workedAt(overlay).After(workedAt(incoming)):
		return clonePtr(overlay)
	default:
		return clonePtr(incoming)
	}
}

func mergeAuthenticity(overlay, incoming models.Authenticity, observedAt time.Time) models.Authenticity {
	if overlay.VerifiedAt.IsZero() {
		return incoming
	}
	if incoming.VerifiedAt.IsZero() {
		if overlay.VerifiedAt.After(observedAt) {
			return overlay
		}
		return incoming
	}
	if overlay.VerifiedAt.After(incoming.VerifiedAt) {
		return overlay
	}
	return incoming
}

func clonePtr[T any](v *T) *T {
	c := *v
	return &c
}

// caughtUp reports whether the overlay has nothing left to add: for every
// group it holds, incoming either carries that value or a newer one, or was
// observed after the value was written.
func caughtUp(overlay, incoming models.Report) bool {
	if c := overlay.CrimeClassification; c != nil && c.ClassifiedAt.After(incoming.ObservedAt) {
		if incoming.CrimeClassification == nil || c.ClassifiedAt.After(incoming.CrimeClassification.ClassifiedAt) {
			return false
		}
	}
	if e := overlay.Escalation; e != nil && e.PredictedAt.After(incoming.ObservedAt) {
		if incoming.Escalation == nil || e.PredictedAt.After(incoming.Escalation.PredictedAt) {
			return false
		}
	}
	return true
}

// retained reports whether merged kept any overlay value incoming lacked
// or had older.
func retained(merged, incoming models.Report) bool {
	if merged.CrimeClassification != nil &&
		(incoming.CrimeClassification == nil || merged.CrimeClassification.ClassifiedAt.After(incoming.CrimeClassification.ClassifiedAt)) {
		return true
	}
	if merged.Escalation != nil &&
		(incoming.Escalation == nil || merged.Escalation.PredictedAt.After(incoming.Escalation.PredictedAt)) {
		return true
	}
	return merged.Authenticity.VerifiedAt.After(incoming.Authenticity.VerifiedAt)
}
