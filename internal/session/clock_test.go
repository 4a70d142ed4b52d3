package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsedSeconds(t *testing.T) {
	start := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, ElapsedSeconds(start, start))
	assert.Equal(t, 5, ElapsedSeconds(start, start.Add(5*time.Second)))
	// Partial seconds truncate.
	assert.Equal(t, 5, ElapsedSeconds(start, start.Add(5900*time.Millisecond)))
	// Clock skew clamps to zero instead of going negative.
	assert.Equal(t, 0, ElapsedSeconds(start, start.Add(-3*time.Second)))
}

func TestElapsedMs(t *testing.T) {
	start := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), ElapsedMs(start, start))
	assert.Equal(t, int64(1500), ElapsedMs(start, start.Add(1500*time.Millisecond)))
	assert.Equal(t, int64(0), ElapsedMs(start, start.Add(-time.Second)))
}

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	assert.Equal(t, 20, Remaining(start, start, 20))
	assert.Equal(t, 15, Remaining(start, start.Add(5*time.Second), 20))
	assert.Equal(t, 0, Remaining(start, start.Add(20*time.Second), 20))
	// Past the limit stays at zero.
	assert.Equal(t, 0, Remaining(start, start.Add(45*time.Second), 20))
	// A sub-second overshoot still counts the started second as remaining.
	assert.Equal(t, 1, Remaining(start, start.Add(19500*time.Millisecond), 20))
}
