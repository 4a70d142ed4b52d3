package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/internal/quiz"
)

// SessionStore persists GameSession rows. The transition methods are
// conditional single-row updates: they report whether the expected prior
// state matched, so callers can distinguish a lost race from a contract
// violation. Index and start timestamp always move in the same UPDATE, so
// observers never see one without the other.
type SessionStore interface {
	Create(ctx context.Context, s *GameSession) error
	Get(ctx context.Context, id uuid.UUID) (*GameSession, error)
	GetByPIN(ctx context.Context, pin string) (*GameSession, error)
	PINActive(ctx context.Context, pin string) (bool, error)

	// Start moves waiting -> started, resetting the index to 0.
	Start(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// Advance moves the index fromIndex -> fromIndex+1 while started.
	Advance(ctx context.Context, id uuid.UUID, fromIndex int, now time.Time) (bool, error)
	// Finish moves started -> finished.
	Finish(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// ParticipantStore persists Participant rows.
type ParticipantStore interface {
	Create(ctx context.Context, p *Participant) error
	Get(ctx context.Context, id uuid.UUID) (*Participant, error)
	// GetByUser returns nil, nil when the identity has no row in the session.
	GetByUser(ctx context.Context, sessionID, userID uuid.UUID) (*Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Participant, error)
	CountActive(ctx context.Context, sessionID uuid.UUID) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ReconcileTotals rewrites every total_score in the session as the sum of
	// that participant's answers. Recovery path for partial failures; the
	// answers are the source of truth, the counter is a cache.
	ReconcileTotals(ctx context.Context, sessionID uuid.UUID) error
}

// AnswerStore persists Answer rows.
type AnswerStore interface {
	// InsertScored inserts the answer and increments the participant's
	// total_score in one transaction; neither applies without the other.
	// Returns ErrAlreadyAnswered when the (session, participant, question)
	// uniqueness constraint rejects the insert.
	InsertScored(ctx context.Context, a *Answer) error
	// GetForParticipant returns nil, nil when the participant has not
	// answered the question.
	GetForParticipant(ctx context.Context, sessionID, participantID, questionID uuid.UUID) (*Answer, error)
	CountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error)
	OptionCounts(ctx context.Context, sessionID, questionID uuid.UUID) ([]OptionTally, error)
	Outcomes(ctx context.Context, sessionID, questionID uuid.UUID) ([]ParticipantOutcome, error)
}

// QuizLoader loads quiz content. Quizzes are read-only to this package.
type QuizLoader interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*quiz.Quiz, error)
}

// ChangePublisher pushes row change events onto the notification channel.
type ChangePublisher interface {
	Publish(ctx context.Context, evt notify.Event) error
}
