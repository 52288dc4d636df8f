package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartOfDay(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 7, 4, h, 30, 0, 0, time.UTC) }
	cases := map[int]string{
		0: "Night", 5: "Night", 6: "Morning", 11: "Morning",
		12: "Afternoon", 17: "Afternoon", 18: "Evening", 23: "Evening",
	}
	for hour, want := range cases {
		assert.Equal(t, want, PartOfDay(at(hour)), "hour %d", hour)
	}
	assert.Equal(t, "Unknown", PartOfDay(time.Time{}))
}

func TestNewClassifyRequest(t *testing.T) {
	req := NewClassifyRequest("text", "loc", time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, "Evening", req.PartOfDay)
	assert.Equal(t, "Saturday", req.DayOfWeek)
	assert.Equal(t, "July", req.Month)

	req = NewClassifyRequest("text", "loc", time.Time{})
	assert.Equal(t, "Unknown", req.DayOfWeek)
}
