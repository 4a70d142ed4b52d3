package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
)

// StateMachine drives the session lifecycle. Every transition is a single
// conditional row update, so concurrent host commands collapse to one winner
// and the losers observe the already-applied state instead of corrupting it.
type StateMachine struct {
	sessions     SessionStore
	participants ParticipantStore
	quizzes      QuizLoader
	publisher    ChangePublisher
	clock        func() time.Time
	logger       zerolog.Logger
}

func NewStateMachine(
	sessions SessionStore,
	participants ParticipantStore,
	quizzes QuizLoader,
	publisher ChangePublisher,
	clock func() time.Time,
	logger zerolog.Logger,
) *StateMachine {
	if clock == nil {
		clock = time.Now
	}
	return &StateMachine{
		sessions:     sessions,
		participants: participants,
		quizzes:      quizzes,
		publisher:    publisher,
		clock:        clock,
		logger:       logger.With().Str("component", "session.state").Logger(),
	}
}

// Start moves the session from waiting to started, opening question zero.
// Starting an already started session is a no-op returning current state.
// A quiz with no questions starts and finishes in the same call, leaving a
// valid completed session.
func (m *StateMachine) Start(ctx context.Context, sessionID, requesterID uuid.UUID) (*GameSession, error) {
	s, err := m.authorized(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case StatusStarted:
		return s, nil
	case StatusFinished:
		return nil, fmt.Errorf("start finished session %s: %w", sessionID, ErrInvalidTransition)
	}

	q, err := m.quizzes.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return nil, fmt.Errorf("loading quiz %s: %w", s.QuizID, err)
	}

	now := m.clock()
	matched, err := m.sessions.Start(ctx, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("starting session %s: %w", sessionID, err)
	}
	if !matched {
		// Lost a race with a concurrent start of the same session.
		return m.reload(ctx, sessionID)
	}

	sessionsStartedTotal.Inc()
	m.logger.Info().
		Str("session_id", sessionID.String()).
		Int("questions", len(q.Questions)).
		Msg("session started")

	if len(q.Questions) == 0 {
		if _, err := m.sessions.Finish(ctx, sessionID, now); err != nil {
			return nil, fmt.Errorf("finishing empty session %s: %w", sessionID, err)
		}
	}

	s, err = m.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	publish(ctx, m.publisher, m.logger, sessionEvent(notify.OpUpdate, s))
	return s, nil
}

// Advance moves the session from the question the host observed at fromIndex
// to the next one. A stale fromIndex (double click, reordered delivery) is a
// no-op returning current state. Advancing past the last question finishes
// the session.
func (m *StateMachine) Advance(ctx context.Context, sessionID, requesterID uuid.UUID, fromIndex int) (*GameSession, error) {
	s, err := m.authorized(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case StatusWaiting:
		return nil, fmt.Errorf("advance waiting session %s: %w", sessionID, ErrInvalidTransition)
	case StatusFinished:
		return s, nil
	}

	if s.CurrentQuestionIndex != fromIndex {
		return s, nil
	}

	q, err := m.quizzes.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return nil, fmt.Errorf("loading quiz %s: %w", s.QuizID, err)
	}
	if fromIndex+1 >= len(q.Questions) {
		return m.Finish(ctx, sessionID, requesterID)
	}

	matched, err := m.sessions.Advance(ctx, sessionID, fromIndex, m.clock())
	if err != nil {
		return nil, fmt.Errorf("advancing session %s: %w", sessionID, err)
	}
	s, err = m.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if matched {
		m.logger.Info().
			Str("session_id", sessionID.String()).
			Int("question_index", s.CurrentQuestionIndex).
			Msg("advanced to next question")
		publish(ctx, m.publisher, m.logger, sessionEvent(notify.OpUpdate, s))
	}
	return s, nil
}

// Finish moves the session from started to finished and reconciles the score
// counters against the answer rows. Finishing twice is a no-op; finishing a
// session that never started is a contract violation.
func (m *StateMachine) Finish(ctx context.Context, sessionID, requesterID uuid.UUID) (*GameSession, error) {
	s, err := m.authorized(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case StatusWaiting:
		return nil, fmt.Errorf("finish waiting session %s: %w", sessionID, ErrInvalidTransition)
	case StatusFinished:
		return s, nil
	}

	matched, err := m.sessions.Finish(ctx, sessionID, m.clock())
	if err != nil {
		return nil, fmt.Errorf("finishing session %s: %w", sessionID, err)
	}
	if matched {
		if err := m.participants.ReconcileTotals(ctx, sessionID); err != nil {
			m.logger.Error().Err(err).
				Str("session_id", sessionID.String()).
				Msg("failed to reconcile score totals")
		}
		sessionsFinishedTotal.Inc()
		m.logger.Info().Str("session_id", sessionID.String()).Msg("session finished")
	}

	s, err = m.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if matched {
		publish(ctx, m.publisher, m.logger, sessionEvent(notify.OpUpdate, s))
	}
	return s, nil
}

func (m *StateMachine) authorized(ctx context.Context, sessionID, requesterID uuid.UUID) (*GameSession, error) {
	s, err := m.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.HostID != requesterID {
		return nil, ErrNotHost
	}
	return s, nil
}

func (m *StateMachine) reload(ctx context.Context, sessionID uuid.UUID) (*GameSession, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return s, nil
}
