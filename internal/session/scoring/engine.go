// Package scoring implements the time-decayed answer scoring shared by the
// host (aggregate results) and participant clients (own feedback). Both must
// compute identical results from the same inputs, so everything here is
// deterministic and side-effect free.
package scoring

import "math"

// Score computes the points awarded for a single answer.
//
// An incorrect answer is worth nothing. A correct answer decays linearly from
// maxPoints at elapsedMs=0 down to floor(maxPoints/2) at elapsedMs=durationMs;
// it never drops below that floor, so a correct answer that barely beat the
// clock still pays half.
//
// elapsedMs must be derived from the authoritative question start timestamp,
// never from a client-local countdown.
func Score(isCorrect bool, maxPoints int, elapsedMs, durationMs int64) int {
	if !isCorrect {
		return 0
	}
	if maxPoints <= 0 {
		return 0
	}

	minPoints := maxPoints / 2
	if durationMs <= 0 {
		return minPoints
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	reduction := float64(elapsedMs) * float64(maxPoints-minPoints) / float64(durationMs)
	awarded := int(math.Round(float64(maxPoints) - reduction))
	if awarded < minPoints {
		return minPoints
	}
	return awarded
}

// MinPoints returns the floor a correct answer can decay to.
func MinPoints(maxPoints int) int {
	if maxPoints <= 0 {
		return 0
	}
	return maxPoints / 2
}
