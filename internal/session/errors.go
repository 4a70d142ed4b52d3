package session

import "errors"

var (
	// ErrInvalidTransition signals state machine misuse, e.g. advancing a
	// session that never started or restarting a finished one. Fatal to the
	// attempted operation; never retried.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSessionNotJoinable is returned when joining a session that already
	// started or finished.
	ErrSessionNotJoinable = errors.New("session is not joinable")

	// ErrAlreadyAnswered is returned on a duplicate submission; the prior
	// answer stands.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrQuestionClosed rejects a submission that arrived after the question
	// timer expired. The answer is discarded, not scored as zero.
	ErrQuestionClosed = errors.New("question time expired")

	// ErrSessionNotFound indicates the session id or PIN matched nothing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrParticipantNotFound indicates an unknown participant id, including a
	// stale anonymous capability token.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrNotHost rejects a session transition requested by anyone but the
	// owning host. The host is the single writer of session state.
	ErrNotHost = errors.New("only the host may drive the session")

	// ErrInvalidOption indicates the submitted option does not belong to the
	// current question.
	ErrInvalidOption = errors.New("option does not belong to question")

	// ErrNicknameInvalid rejects empty or oversized nicknames.
	ErrNicknameInvalid = errors.New("nickname must be 1-20 characters")

	// ErrPINExhausted is returned when PIN generation cannot find a free code
	// within its retry budget.
	ErrPINExhausted = errors.New("could not allocate a unique game pin")
)
