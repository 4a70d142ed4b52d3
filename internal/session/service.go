package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/internal/quiz"
)

// Service is the facade the transport layer talks to. It composes the state
// machine, the ledger and PIN allocation, and assembles the full snapshots
// reconnecting clients recover from.
type Service struct {
	State  *StateMachine
	Ledger *Ledger

	sessions  SessionStore
	quizzes   QuizLoader
	pins      *PINGenerator
	publisher ChangePublisher
	clock     func() time.Time
	logger    zerolog.Logger
}

func NewService(
	state *StateMachine,
	ledger *Ledger,
	pins *PINGenerator,
	sessions SessionStore,
	quizzes QuizLoader,
	publisher ChangePublisher,
	clock func() time.Time,
	logger zerolog.Logger,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		State:     state,
		Ledger:    ledger,
		sessions:  sessions,
		quizzes:   quizzes,
		pins:      pins,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With().Str("component", "session.service").Logger(),
	}
}

// Create opens a new waiting session for the given quiz, owned by its host,
// with a freshly allocated PIN. Only the quiz owner may host it.
func (s *Service) Create(ctx context.Context, quizID, hostID uuid.UUID) (*GameSession, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("loading quiz %s: %w", quizID, err)
	}
	if q.OwnerID != hostID {
		return nil, ErrNotHost
	}

	pin, err := s.pins.Generate(ctx)
	if err != nil {
		return nil, err
	}

	sess := &GameSession{
		ID:        uuid.New(),
		QuizID:    quizID,
		HostID:    hostID,
		PIN:       pin,
		Status:    StatusWaiting,
		CreatedAt: s.clock(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	sessionsCreatedTotal.Inc()
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("quiz_id", quizID.String()).
		Str("pin", pin).
		Msg("session created")
	publish(ctx, s.publisher, s.logger, sessionEvent(notify.OpInsert, sess))
	return sess, nil
}

// Get returns the session by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*GameSession, error) {
	return s.sessions.Get(ctx, id)
}

// GetByPIN returns the non-finished session holding the PIN.
func (s *Service) GetByPIN(ctx context.Context, pin string) (*GameSession, error) {
	return s.sessions.GetByPIN(ctx, pin)
}

// Quiz returns the quiz content for a session.
func (s *Service) Quiz(ctx context.Context, quizID uuid.UUID) (*quiz.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// Snapshot is the complete current state of a session as one consistent-ish
// read. Clients apply it on (re)connect before processing incremental
// events, which closes the gap left by missed notifications.
type Snapshot struct {
	Session         *GameSession
	Quiz            *quiz.Quiz
	CurrentQuestion *quiz.Question
	YourAnswer      *Answer
	Participants    []Participant
	Leaderboard     []Participant
	Now             time.Time
}

// Snapshot assembles the recovery state for one viewer. forParticipant may be
// uuid.Nil for the host or a spectator; when set, the viewer's own answer to
// the current question is included.
func (s *Service) Snapshot(ctx context.Context, sessionID uuid.UUID, forParticipant uuid.UUID) (*Snapshot, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q, err := s.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return nil, fmt.Errorf("loading quiz %s: %w", sess.QuizID, err)
	}

	snap := &Snapshot{Session: sess, Quiz: q, Now: s.clock()}

	if sess.Status == StatusStarted {
		if current, ok := q.QuestionAt(sess.CurrentQuestionIndex); ok {
			snap.CurrentQuestion = current
			if forParticipant != uuid.Nil {
				a, err := s.Ledger.answers.GetForParticipant(ctx, sessionID, forParticipant, current.ID)
				if err != nil {
					return nil, fmt.Errorf("loading participant answer: %w", err)
				}
				snap.YourAnswer = a
			}
		}
	}

	snap.Participants, err = s.Ledger.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap.Leaderboard, err = s.Ledger.Leaderboard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
