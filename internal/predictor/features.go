package predictor

import "time"

const unknownFeature = "Unknown"

// PartOfDay buckets the hour: 06-12 Morning, 12-18 Afternoon, 18-24 Evening,
// otherwise Night. A zero time is Unknown.
func PartOfDay(t time.Time) string {
	if t.IsZero() {
		return unknownFeature
	}
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return "Morning"
	case h >= 12 && h < 18:
		return "Afternoon"
	case h >= 18:
		return "Evening"
	default:
		return "Night"
	}
}

func DayOfWeek(t time.Time) string {
	if t.IsZero() {
		return unknownFeature
	}
	return t.Weekday().String()
}

func Month(t time.Time) string {
	if t.IsZero() {
		return unknownFeature
	}
	return t.Month().String()
}
