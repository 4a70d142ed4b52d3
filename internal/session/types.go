package session

import (
	"time"

	"github.com/google/uuid"
)

// GameSession lifecycle states. Transitions only ever move forward:
// waiting -> started -> finished.
const (
	StatusWaiting  = "waiting"
	StatusStarted  = "started"
	StatusFinished = "finished"
)

// GameSession is one live run of a quiz, owned and driven by a single host.
type GameSession struct {
	ID                       uuid.UUID
	QuizID                   uuid.UUID
	HostID                   uuid.UUID
	PIN                      string
	Status                   string
	CurrentQuestionIndex     int
	CurrentQuestionStartedAt *time.Time
	StartedAt                *time.Time
	FinishedAt               *time.Time
	CreatedAt                time.Time
}

// Participant is one joined player. UserID is nil for anonymous players, who
// hold their participant id client-side as a capability token instead.
type Participant struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	UserID     *uuid.UUID
	Nickname   string
	TotalScore int
	IsActive   bool
	JoinedAt   time.Time
}

// Answer is one participant's response to one question. At most one exists
// per (session, participant, question); rows are never updated while the
// session is live.
type Answer struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	ParticipantID    uuid.UUID
	QuestionID       uuid.UUID
	SelectedOptionID uuid.UUID
	TimeTakenMs      int64
	PointsEarned     int
	IsCorrect        bool
	CreatedAt        time.Time
}

// OptionTally is the answer count for a single option.
type OptionTally struct {
	OptionID uuid.UUID
	Count    int
}

// ParticipantOutcome records whether a participant answered a question
// correctly and what it earned them.
type ParticipantOutcome struct {
	ParticipantID uuid.UUID
	Nickname      string
	IsCorrect     bool
	PointsEarned  int
}

// Tally is the per-question aggregation used to render results. It is
// advisory display data: eventually consistent with concurrent writes.
type Tally struct {
	QuestionID uuid.UUID
	Options    []OptionTally
	Outcomes   []ParticipantOutcome
}
