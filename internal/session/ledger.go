package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/internal/quiz"
	"github.com/quizlive/quizlive/internal/session/scoring"
)

// Ledger owns the participant roster and the answer records of live sessions.
// Joins happen only while waiting; answers are accepted only for the current
// question while its countdown is open, and at most once per participant.
type Ledger struct {
	sessions     SessionStore
	participants ParticipantStore
	answers      AnswerStore
	quizzes      QuizLoader
	publisher    ChangePublisher
	clock        func() time.Time
	logger       zerolog.Logger

	maxNicknameLength int
}

func NewLedger(
	sessions SessionStore,
	participants ParticipantStore,
	answers AnswerStore,
	quizzes QuizLoader,
	publisher ChangePublisher,
	clock func() time.Time,
	maxNicknameLength int,
	logger zerolog.Logger,
) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if maxNicknameLength <= 0 {
		maxNicknameLength = 20
	}
	return &Ledger{
		sessions:          sessions,
		participants:      participants,
		answers:           answers,
		quizzes:           quizzes,
		publisher:         publisher,
		clock:             clock,
		logger:            logger.With().Str("component", "session.ledger").Logger(),
		maxNicknameLength: maxNicknameLength,
	}
}

// Join adds a player to the session behind the given PIN. Only sessions still
// waiting accept joins. For an authenticated user who already joined, the
// existing participant is returned unchanged, so reconnecting through join is
// harmless. Anonymous players always get a fresh participant; their client
// keeps the id to resume with later.
func (l *Ledger) Join(ctx context.Context, pin, nickname string, userID *uuid.UUID) (*Participant, *GameSession, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || len([]rune(nickname)) > l.maxNicknameLength {
		return nil, nil, ErrNicknameInvalid
	}

	s, err := l.sessions.GetByPIN(ctx, pin)
	if err != nil {
		return nil, nil, err
	}
	if s.Status != StatusWaiting {
		return nil, nil, fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrSessionNotJoinable)
	}

	if userID != nil {
		existing, err := l.participants.GetByUser(ctx, s.ID, *userID)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up participant: %w", err)
		}
		if existing != nil {
			return existing, s, nil
		}
	}

	p := &Participant{
		ID:        uuid.New(),
		SessionID: s.ID,
		UserID:    userID,
		Nickname:  nickname,
		IsActive:  true,
		JoinedAt:  l.clock(),
	}
	if err := l.participants.Create(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("creating participant: %w", err)
	}

	participantsJoinedTotal.Inc()
	l.logger.Info().
		Str("session_id", s.ID.String()).
		Str("participant_id", p.ID.String()).
		Str("nickname", p.Nickname).
		Msg("participant joined")
	publish(ctx, l.publisher, l.logger, participantEvent(notify.OpInsert, p))
	return p, s, nil
}

// Resume re-attaches a returning participant, typically after a dropped
// connection. The participant must belong to the session; resuming works in
// any session state, including finished, so late viewers still get results.
func (l *Ledger) Resume(ctx context.Context, sessionID, participantID uuid.UUID) (*Participant, error) {
	p, err := l.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.SessionID != sessionID {
		return nil, ErrParticipantNotFound
	}
	if !p.IsActive {
		if err := l.participants.SetActive(ctx, participantID, true); err != nil {
			return nil, fmt.Errorf("reactivating participant: %w", err)
		}
		p.IsActive = true
		publish(ctx, l.publisher, l.logger, participantEvent(notify.OpUpdate, p))
	}
	return p, nil
}

// MarkInactive records that a participant's connection dropped. Their answers
// and score survive; Resume undoes it.
func (l *Ledger) MarkInactive(ctx context.Context, participantID uuid.UUID) error {
	p, err := l.participants.Get(ctx, participantID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	if err := l.participants.SetActive(ctx, participantID, false); err != nil {
		return fmt.Errorf("deactivating participant: %w", err)
	}
	p.IsActive = false
	publish(ctx, l.publisher, l.logger, participantEvent(notify.OpUpdate, p))
	return nil
}

// SubmitAnswer validates and scores one response against the question open
// right now. Elapsed time is measured on the server clock against the
// authoritative question start, never trusted from the client. The insert
// and the score increment commit together; a duplicate submission surfaces
// as ErrAlreadyAnswered with the original row intact.
func (l *Ledger) SubmitAnswer(ctx context.Context, sessionID, participantID, questionID, optionID uuid.UUID) (*Answer, error) {
	s, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusStarted {
		return nil, fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrQuestionClosed)
	}

	p, err := l.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.SessionID != sessionID {
		return nil, ErrParticipantNotFound
	}

	q, err := l.quizzes.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return nil, fmt.Errorf("loading quiz %s: %w", s.QuizID, err)
	}
	current, ok := q.QuestionAt(s.CurrentQuestionIndex)
	if !ok || current.ID != questionID {
		// The session moved on; the submission targets a closed question.
		return nil, ErrQuestionClosed
	}
	if s.CurrentQuestionStartedAt == nil {
		return nil, ErrQuestionClosed
	}

	now := l.clock()
	if Remaining(*s.CurrentQuestionStartedAt, now, current.TimeLimit) <= 0 {
		answersRejectedTotal.WithLabelValues("closed").Inc()
		return nil, ErrQuestionClosed
	}

	opt, ok := current.Option(optionID)
	if !ok {
		answersRejectedTotal.WithLabelValues("invalid_option").Inc()
		return nil, ErrInvalidOption
	}

	elapsedMs := ElapsedMs(*s.CurrentQuestionStartedAt, now)
	points := scoring.Score(opt.IsCorrect, current.Points, elapsedMs, int64(current.TimeLimit)*1000)

	a := &Answer{
		ID:               uuid.New(),
		SessionID:        sessionID,
		ParticipantID:    participantID,
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		TimeTakenMs:      elapsedMs,
		PointsEarned:     points,
		IsCorrect:        opt.IsCorrect,
		CreatedAt:        now,
	}
	if err := l.answers.InsertScored(ctx, a); err != nil {
		if errors.Is(err, ErrAlreadyAnswered) {
			answersRejectedTotal.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	answersScoredTotal.Inc()
	l.logger.Debug().
		Str("session_id", sessionID.String()).
		Str("participant_id", participantID.String()).
		Str("question_id", questionID.String()).
		Int("points", points).
		Bool("correct", opt.IsCorrect).
		Msg("answer scored")

	publish(ctx, l.publisher, l.logger, answerEvent(notify.OpInsert, a))
	p.TotalScore += points
	publish(ctx, l.publisher, l.logger, participantEvent(notify.OpUpdate, p))
	return a, nil
}

// AllAnswered reports whether every active participant has answered the given
// question. A session with no active participants is never "all answered";
// the countdown alone closes the question then.
func (l *Ledger) AllAnswered(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	active, err := l.participants.CountActive(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("counting active participants: %w", err)
	}
	if active == 0 {
		return false, nil
	}
	answered, err := l.answers.CountForQuestion(ctx, sessionID, questionID)
	if err != nil {
		return false, fmt.Errorf("counting answers: %w", err)
	}
	return answered >= active, nil
}

// TallyQuestion aggregates a closed question for the results screen: how
// many picked each option and who got it right. Advisory display data; a
// straggler write racing the tally shows up in the final reconciled scores
// even if it misses this snapshot.
func (l *Ledger) TallyQuestion(ctx context.Context, sessionID uuid.UUID, question *quiz.Question) (*Tally, error) {
	counts, err := l.answers.OptionCounts(ctx, sessionID, question.ID)
	if err != nil {
		return nil, fmt.Errorf("counting options: %w", err)
	}
	// Zero-fill so every option renders even when nobody picked it.
	byOption := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		byOption[c.OptionID] = c.Count
	}
	options := make([]OptionTally, 0, len(question.Options))
	for _, opt := range question.Options {
		options = append(options, OptionTally{OptionID: opt.ID, Count: byOption[opt.ID]})
	}

	outcomes, err := l.answers.Outcomes(ctx, sessionID, question.ID)
	if err != nil {
		return nil, fmt.Errorf("loading outcomes: %w", err)
	}
	return &Tally{QuestionID: question.ID, Options: options, Outcomes: outcomes}, nil
}

// Leaderboard returns the session's participants ranked by total score,
// ties broken by join order.
func (l *Ledger) Leaderboard(ctx context.Context, sessionID uuid.UUID) ([]Participant, error) {
	ps, err := l.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].TotalScore != ps[j].TotalScore {
			return ps[i].TotalScore > ps[j].TotalScore
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})
	return ps, nil
}

// Participants returns the session roster in join order.
func (l *Ledger) Participants(ctx context.Context, sessionID uuid.UUID) ([]Participant, error) {
	return l.participants.ListBySession(ctx, sessionID)
}
