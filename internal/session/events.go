package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
)

// Row images published on the change-notification channel. Field names match
// the storage columns so consumers can treat payloads and re-fetched rows
// interchangeably.

type sessionRow struct {
	ID                       string     `json:"id"`
	QuizID                   string     `json:"quiz_id"`
	HostID                   string     `json:"host_id"`
	PIN                      string     `json:"pin"`
	Status                   string     `json:"status"`
	CurrentQuestionIndex     int        `json:"current_question_index"`
	CurrentQuestionStartedAt *time.Time `json:"current_question_started_at"`
	StartedAt                *time.Time `json:"started_at"`
	FinishedAt               *time.Time `json:"finished_at"`
}

type participantRow struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	UserID     *string `json:"user_id"`
	Nickname   string  `json:"nickname"`
	TotalScore int     `json:"total_score"`
	IsActive   bool    `json:"is_active"`
}

type answerRow struct {
	ID               string `json:"id"`
	SessionID        string `json:"session_id"`
	ParticipantID    string `json:"participant_id"`
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	TimeTakenMs      int64  `json:"time_taken"`
	PointsEarned     int    `json:"points_earned"`
	IsCorrect        bool   `json:"is_correct"`
}

func sessionEvent(op string, s *GameSession) notify.Event {
	row, _ := json.Marshal(sessionRow{
		ID:                       s.ID.String(),
		QuizID:                   s.QuizID.String(),
		HostID:                   s.HostID.String(),
		PIN:                      s.PIN,
		Status:                   s.Status,
		CurrentQuestionIndex:     s.CurrentQuestionIndex,
		CurrentQuestionStartedAt: s.CurrentQuestionStartedAt,
		StartedAt:                s.StartedAt,
		FinishedAt:               s.FinishedAt,
	})
	return notify.Event{Table: notify.TableSessions, Op: op, SessionID: s.ID, Row: row}
}

func participantEvent(op string, p *Participant) notify.Event {
	var userID *string
	if p.UserID != nil {
		s := p.UserID.String()
		userID = &s
	}
	row, _ := json.Marshal(participantRow{
		ID:         p.ID.String(),
		SessionID:  p.SessionID.String(),
		UserID:     userID,
		Nickname:   p.Nickname,
		TotalScore: p.TotalScore,
		IsActive:   p.IsActive,
	})
	return notify.Event{Table: notify.TableParticipants, Op: op, SessionID: p.SessionID, Row: row}
}

func answerEvent(op string, a *Answer) notify.Event {
	row, _ := json.Marshal(answerRow{
		ID:               a.ID.String(),
		SessionID:        a.SessionID.String(),
		ParticipantID:    a.ParticipantID.String(),
		QuestionID:       a.QuestionID.String(),
		SelectedOptionID: a.SelectedOptionID.String(),
		TimeTakenMs:      a.TimeTakenMs,
		PointsEarned:     a.PointsEarned,
		IsCorrect:        a.IsCorrect,
	})
	return notify.Event{Table: notify.TableAnswers, Op: op, SessionID: a.SessionID, Row: row}
}

// publish pushes an event, logging instead of failing the mutation that
// already committed. Reconnecting clients recover via the full state fetch.
func publish(ctx context.Context, pub ChangePublisher, logger zerolog.Logger, evt notify.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.Warn().Err(err).
			Str("table", evt.Table).
			Str("op", evt.Op).
			Str("session_id", evt.SessionID.String()).
			Msg("failed to publish change event")
	}
}
