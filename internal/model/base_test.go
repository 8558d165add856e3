package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func window(start, end string) TimeWindow {
	s, _ := time.Parse(time.RFC3339, start)
	e, _ := time.Parse(time.RFC3339, end)
	return TimeWindow{Start: s, End: e}
}

func TestTimeWindowOverlaps(t *testing.T) {
	a := window("2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")

	assert.True(t, a.Overlaps(window("2026-09-01T10:30:00Z", "2026-09-01T11:30:00Z")))
	assert.True(t, a.Overlaps(window("2026-09-01T09:30:00Z", "2026-09-01T10:30:00Z")))
	assert.True(t, a.Overlaps(window("2026-09-01T10:15:00Z", "2026-09-01T10:45:00Z")))
	assert.True(t, a.Overlaps(window("2026-09-01T09:00:00Z", "2026-09-01T12:00:00Z")))

	// Touching windows share a boundary instant but do not conflict.
	assert.False(t, a.Overlaps(window("2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z")))
	assert.False(t, a.Overlaps(window("2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z")))
	assert.False(t, a.Overlaps(window("2026-09-01T12:00:00Z", "2026-09-01T13:00:00Z")))
}

func TestTimeWindowExpand(t *testing.T) {
	a := window("2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z")
	b := a.Expand(10*time.Minute, 15*time.Minute)

	assert.Equal(t, window("2026-09-01T09:50:00Z", "2026-09-01T11:15:00Z"), b)
	// The original is untouched.
	assert.Equal(t, window("2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z"), a)
}

func TestTimeWindowValid(t *testing.T) {
	assert.True(t, window("2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z").Valid())
	assert.False(t, window("2026-09-01T11:00:00Z", "2026-09-01T10:00:00Z").Valid())
	assert.False(t, window("2026-09-01T10:00:00Z", "2026-09-01T10:00:00Z").Valid())
}

func TestHoldExpired(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2026-09-01T10:00:00Z")
	h := &BookingHold{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, h.Expired(now))
	assert.True(t, h.Expired(now.Add(5*time.Minute)))
	assert.True(t, h.Expired(now.Add(6*time.Minute)))
}
