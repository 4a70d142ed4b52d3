package session

import "time"

// Timing helpers for the question countdown. All of them are pure: callers
// pass the observation time explicitly, so host, participants and tests
// compute identical values from the same authoritative timestamp.

// ElapsedSeconds returns whole seconds elapsed since startedAt, clamped at
// zero when now precedes startedAt.
func ElapsedSeconds(startedAt, now time.Time) int {
	if now.Before(startedAt) {
		return 0
	}
	return int(now.Sub(startedAt) / time.Second)
}

// ElapsedMs returns milliseconds elapsed since startedAt, clamped at zero.
// Scoring runs on this value.
func ElapsedMs(startedAt, now time.Time) int64 {
	if now.Before(startedAt) {
		return 0
	}
	return now.Sub(startedAt).Milliseconds()
}

// Remaining returns the seconds left on a question that opened at startedAt
// with the given time limit. Never negative.
func Remaining(startedAt, now time.Time, durationSeconds int) int {
	remaining := durationSeconds - ElapsedSeconds(startedAt, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
